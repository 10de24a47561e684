package models

import "time"

// Liaison joins one Structure and one Personne. Deactivated, never removed.
type Liaison struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	StructureID    string     `json:"structureId"`
	PersonneID     string     `json:"personneId"`
	Fonction       string     `json:"fonction,omitempty"`
	Actif          bool       `json:"actif"`
	Prioritaire    bool       `json:"prioritaire"`
	Interesse      bool       `json:"interesse"`
	DateDebut      *time.Time `json:"dateDebut,omitempty"`
	DateFin        *time.Time `json:"dateFin,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// LiaisonAttrs overrides liaison attributes on create or reactivation. Nil keeps the current value.
type LiaisonAttrs struct {
	Fonction    *string    `json:"fonction,omitempty"`
	Prioritaire *bool      `json:"prioritaire,omitempty"`
	Interesse   *bool      `json:"interesse,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	DateDebut   *time.Time `json:"dateDebut,omitempty"`
}

// LiaisonInfo is the per-pair attribute set embedded in query results.
type LiaisonInfo struct {
	ID          string     `json:"id"`
	Fonction    string     `json:"fonction,omitempty"`
	Actif       bool       `json:"actif"`
	Prioritaire bool       `json:"prioritaire"`
	Interesse   bool       `json:"interesse"`
	DateDebut   *time.Time `json:"dateDebut,omitempty"`
	DateFin     *time.Time `json:"dateFin,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

func (l *Liaison) Info() LiaisonInfo {
	return LiaisonInfo{
		ID:          l.ID,
		Fonction:    l.Fonction,
		Actif:       l.Actif,
		Prioritaire: l.Prioritaire,
		Interesse:   l.Interesse,
		DateDebut:   l.DateDebut,
		DateFin:     l.DateFin,
		Notes:       l.Notes,
	}
}
