package models

// Statistics are the contact totals of one organization.
type Statistics struct {
	TotalStructures      int `json:"totalStructures"`
	TotalPersonnes       int `json:"totalPersonnes"`
	TotalLiaisons        int `json:"totalLiaisons"`
	LiaisonsActives      int `json:"liaisonsActives"`
	PersonnesLibres      int `json:"personnesLibres"`
	Clients              int `json:"clients"`
	ContactsPrioritaires int `json:"contactsPrioritaires"`
	ContactsInteresses   int `json:"contactsInteresses"`
	UnreadableDocuments  int `json:"unreadableDocuments"`
}

type PersonneWithLiaison struct {
	Personne
	Liaison LiaisonInfo `json:"liaison"`
}

type StructureWithPersonnes struct {
	Structure
	Personnes []PersonneWithLiaison `json:"personnes"`
}

type StructureWithLiaison struct {
	Structure
	Liaison LiaisonInfo `json:"liaison"`
}

type PersonneWithStructures struct {
	Personne
	Structures []StructureWithLiaison `json:"structures"`
}

type StructureFilters struct {
	SearchTerm string   `json:"searchTerm,omitempty" query:"search"`
	Name       string   `json:"name,omitempty" query:"name"`
	IsClient   *bool    `json:"isClient,omitempty" query:"client"`
	Type       string   `json:"type,omitempty" query:"type"`
	Tags       []string `json:"tags,omitempty" query:"tag"`
}

type PersonneFilters struct {
	SearchTerm string   `json:"searchTerm,omitempty" query:"search"`
	Tags       []string `json:"tags,omitempty" query:"tag"`
}
