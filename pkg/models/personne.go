package models

import (
	"strings"
	"time"
)

// Personne is an individual contact.
type Personne struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId"`
	Prenom         string   `json:"prenom"`
	Nom            string   `json:"nom"`
	Email          string   `json:"email,omitempty"`
	MailDirect     string   `json:"mailDirect,omitempty"`
	Telephone      string   `json:"telephone,omitempty"`
	Tags           []string `json:"tags,omitempty"`

	// IsPersonneLibre caches "no active liaison". Only the liaison manager and
	// the repair engine write it.
	IsPersonneLibre bool `json:"isPersonneLibre"`

	// LegacyStructureIDs is the embedded association list of the flat model. Read-only.
	LegacyStructureIDs []string `json:"structureIds,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName returns "prenom nom" with blanks trimmed.
func (p *Personne) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.Prenom) + " " + strings.TrimSpace(p.Nom))
}

// ContactEmail is the email used for matching, falling back to mailDirect.
func (p *Personne) ContactEmail() string {
	if strings.TrimSpace(p.Email) != "" {
		return p.Email
	}
	return p.MailDirect
}
