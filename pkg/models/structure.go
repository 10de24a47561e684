package models

import "time"

// StructureTypes lists the known structure categories. Other values are kept as entered.
var StructureTypes = []string{"festival", "salle", "label", "media", "institution", "association", "autre"}

const DefaultStructureType = "autre"

// Structure is an organizational contact (venue, festival, label...).
type Structure struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId"`
	RaisonSociale  string   `json:"raisonSociale"`
	Type           string   `json:"type,omitempty"`
	Adresse        string   `json:"adresse,omitempty"`
	CodePostal     string   `json:"codePostal,omitempty"`
	Ville          string   `json:"ville,omitempty"`
	Pays           string   `json:"pays,omitempty"`
	Email          string   `json:"email,omitempty"`
	Telephone1     string   `json:"telephone1,omitempty"`
	Telephone2     string   `json:"telephone2,omitempty"`
	SiteWeb        string   `json:"siteWeb,omitempty"`
	Siret          string   `json:"siret,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	IsClient       bool     `json:"isClient"`
	Notes          string   `json:"notes,omitempty"`
	Source         string   `json:"source,omitempty"`

	// LegacyPersonneIDs is the embedded association list of the flat model.
	// Read-only: it is audited against active liaisons and never written.
	LegacyPersonneIDs []string `json:"personneIds,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StructureCandidate is an incoming structure to resolve against existing records.
type StructureCandidate struct {
	RaisonSociale string   `json:"raisonSociale" validate:"required,max=200"`
	Type          string   `json:"type,omitempty"`
	Adresse       string   `json:"adresse,omitempty"`
	CodePostal    string   `json:"codePostal,omitempty"`
	Ville         string   `json:"ville,omitempty"`
	Pays          string   `json:"pays,omitempty"`
	Email         string   `json:"email,omitempty"`
	Telephone1    string   `json:"telephone1,omitempty"`
	Telephone2    string   `json:"telephone2,omitempty"`
	SiteWeb       string   `json:"siteWeb,omitempty"`
	Siret         string   `json:"siret,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	IsClient      bool     `json:"isClient,omitempty"`
	Source        string   `json:"source,omitempty"`
	SourceRef     string   `json:"-"`
}
