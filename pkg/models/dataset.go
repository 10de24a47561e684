package models

// Dataset is a full read of one organization's contacts.
type Dataset struct {
	OrganizationID string
	Structures     []*Structure
	Personnes      []*Personne
	Liaisons       []*Liaison

	// Undecodable lists the documents that exist but could not be read.
	Undecodable []UndecodableDocument
}

// UndecodableDocument is a stored document that does not fit its model.
type UndecodableDocument struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Error      string `json:"error"`
}

// ActivePersonneIDs returns every personne id referenced by an active liaison.
func (d *Dataset) ActivePersonneIDs() map[string]bool {
	attached := make(map[string]bool, len(d.Liaisons))
	for _, l := range d.Liaisons {
		if l.Actif {
			attached[l.PersonneID] = true
		}
	}
	return attached
}

// UndecodableIDs returns the ids of the unreadable documents of one collection.
func (d *Dataset) UndecodableIDs(collection string) map[string]bool {
	ids := make(map[string]bool)
	for _, u := range d.Undecodable {
		if u.Collection == collection {
			ids[u.ID] = true
		}
	}
	return ids
}
