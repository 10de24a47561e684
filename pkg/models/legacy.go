package models

import (
	"fmt"
	"strings"
)

// BundleKind discriminates legacy bundled records.
type BundleKind string

const (
	BundleKindStructure BundleKind = "structure"
	BundleKindPersonne  BundleKind = "personne"
	BundleKindMixed     BundleKind = "mixed"
)

// LegacyBundle is one record of the flat contact model: a structure with
// embedded people, a lone person, or a mixed programmateur record.
type LegacyBundle struct {
	ID         string           `json:"id" yaml:"id"`
	EntityType BundleKind       `json:"entityType" yaml:"entityType"`
	Structure  *LegacyStructure `json:"structure,omitempty" yaml:"structure,omitempty"`
	Personnes  []LegacyPersonne `json:"personnes,omitempty" yaml:"personnes,omitempty"`

	// DecodeError is set when the raw record could not be read. The bundle is then reported, never applied.
	DecodeError string `json:"-" yaml:"-"`
}

type LegacyStructure struct {
	RaisonSociale string   `json:"raisonSociale" yaml:"raisonSociale"`
	Type          string   `json:"type,omitempty" yaml:"type,omitempty"`
	Adresse       string   `json:"adresse,omitempty" yaml:"adresse,omitempty"`
	CodePostal    string   `json:"codePostal,omitempty" yaml:"codePostal,omitempty"`
	Ville         string   `json:"ville,omitempty" yaml:"ville,omitempty"`
	Pays          string   `json:"pays,omitempty" yaml:"pays,omitempty"`
	Email         string   `json:"email,omitempty" yaml:"email,omitempty"`
	Telephone1    string   `json:"telephone1,omitempty" yaml:"telephone1,omitempty"`
	Telephone2    string   `json:"telephone2,omitempty" yaml:"telephone2,omitempty"`
	SiteWeb       string   `json:"siteWeb,omitempty" yaml:"siteWeb,omitempty"`
	Siret         string   `json:"siret,omitempty" yaml:"siret,omitempty"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	IsClient      bool     `json:"isClient,omitempty" yaml:"isClient,omitempty"`
}

type LegacyPersonne struct {
	Prenom      string `json:"prenom,omitempty" yaml:"prenom,omitempty"`
	Nom         string `json:"nom,omitempty" yaml:"nom,omitempty"`
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
	MailDirect  string `json:"mailDirect,omitempty" yaml:"mailDirect,omitempty"`
	Telephone   string `json:"telephone,omitempty" yaml:"telephone,omitempty"`
	Fonction    string `json:"fonction,omitempty" yaml:"fonction,omitempty"`
	Prioritaire bool   `json:"prioritaire,omitempty" yaml:"prioritaire,omitempty"`
	Interesse   bool   `json:"interesse,omitempty" yaml:"interesse,omitempty"`
}

// Validate checks that the discriminant agrees with the populated parts.
func (b *LegacyBundle) Validate() error {
	if b.DecodeError != "" {
		return fmt.Errorf("bundle %s: entityType %q could not be decoded: %s", b.ID, b.EntityType, b.DecodeError)
	}
	switch b.EntityType {
	case BundleKindStructure:
		if b.Structure == nil {
			return fmt.Errorf("bundle %s: entityType structure requires a structure", b.ID)
		}
	case BundleKindMixed:
		if b.Structure == nil || len(b.Personnes) == 0 {
			return fmt.Errorf("bundle %s: entityType mixed requires a structure and at least one personne", b.ID)
		}
	case BundleKindPersonne:
		if b.Structure != nil {
			return fmt.Errorf("bundle %s: entityType personne cannot carry a structure", b.ID)
		}
		if len(b.Personnes) != 1 {
			return fmt.Errorf("bundle %s: entityType personne requires exactly one personne", b.ID)
		}
	default:
		return fmt.Errorf("bundle %s: unknown entityType %q", b.ID, b.EntityType)
	}
	return nil
}

// HasStructure reports whether the bundle should go through structure derivation.
func (b *LegacyBundle) HasStructure() bool {
	return b.EntityType != BundleKindPersonne && b.Structure != nil
}

// Candidate converts the embedded structure into a resolver candidate.
func (s *LegacyStructure) Candidate(sourceRef string) StructureCandidate {
	return StructureCandidate{
		RaisonSociale: strings.TrimSpace(s.RaisonSociale),
		Type:          strings.TrimSpace(s.Type),
		Adresse:       strings.TrimSpace(s.Adresse),
		CodePostal:    strings.TrimSpace(s.CodePostal),
		Ville:         strings.TrimSpace(s.Ville),
		Pays:          strings.TrimSpace(s.Pays),
		Email:         strings.TrimSpace(s.Email),
		Telephone1:    strings.TrimSpace(s.Telephone1),
		Telephone2:    strings.TrimSpace(s.Telephone2),
		SiteWeb:       strings.TrimSpace(s.SiteWeb),
		Siret:         strings.TrimSpace(s.Siret),
		Tags:          s.Tags,
		IsClient:      s.IsClient,
		Source:        "migration",
		SourceRef:     sourceRef,
	}
}

// Normalized trims the fields, splits a two-part nom when prenom is empty
// and falls back to mailDirect for the email.
func (p LegacyPersonne) Normalized() LegacyPersonne {
	out := p
	out.Prenom = strings.TrimSpace(p.Prenom)
	out.Nom = strings.TrimSpace(p.Nom)
	out.Email = strings.TrimSpace(p.Email)
	out.MailDirect = strings.TrimSpace(p.MailDirect)
	out.Fonction = strings.TrimSpace(p.Fonction)

	if out.Prenom == "" {
		if first, rest, ok := strings.Cut(out.Nom, " "); ok && strings.TrimSpace(rest) != "" {
			out.Prenom = first
			out.Nom = strings.TrimSpace(rest)
		}
	}
	if out.Email == "" {
		out.Email = out.MailDirect
	}
	return out
}

// Label is a short human reference for reports.
func (p LegacyPersonne) Label() string {
	name := strings.TrimSpace(strings.TrimSpace(p.Prenom) + " " + strings.TrimSpace(p.Nom))
	switch {
	case name != "" && p.Email != "":
		return fmt.Sprintf("%s <%s>", name, p.Email)
	case name != "":
		return name
	default:
		return p.Email
	}
}

// LegacyProgrammateur is the flat pre-relational contact carrying its structure inline.
type LegacyProgrammateur struct {
	ID                     string `json:"id" yaml:"id"`
	Prenom                 string `json:"prenom,omitempty" yaml:"prenom,omitempty"`
	Nom                    string `json:"nom,omitempty" yaml:"nom,omitempty"`
	Email                  string `json:"email,omitempty" yaml:"email,omitempty"`
	MailDirect             string `json:"mailDirect,omitempty" yaml:"mailDirect,omitempty"`
	Telephone              string `json:"telephone,omitempty" yaml:"telephone,omitempty"`
	Fonction               string `json:"fonction,omitempty" yaml:"fonction,omitempty"`
	StructureRaisonSociale string `json:"structureRaisonSociale,omitempty" yaml:"structureRaisonSociale,omitempty"`
	StructureType          string `json:"structureType,omitempty" yaml:"structureType,omitempty"`
	StructureAdresse       string `json:"structureAdresse,omitempty" yaml:"structureAdresse,omitempty"`
	StructureCodePostal    string `json:"structureCodePostal,omitempty" yaml:"structureCodePostal,omitempty"`
	StructureVille         string `json:"structureVille,omitempty" yaml:"structureVille,omitempty"`
	StructurePays          string `json:"structurePays,omitempty" yaml:"structurePays,omitempty"`
	StructureEmail         string `json:"structureEmail,omitempty" yaml:"structureEmail,omitempty"`
	StructureTelephone     string `json:"structureTelephone,omitempty" yaml:"structureTelephone,omitempty"`
	StructureSiteWeb       string `json:"structureSiteWeb,omitempty" yaml:"structureSiteWeb,omitempty"`
	StructureSiret         string `json:"structureSiret,omitempty" yaml:"structureSiret,omitempty"`
}

// ToBundle converts the flat record. Without a structure name it becomes a personne bundle.
func (p LegacyProgrammateur) ToBundle() LegacyBundle {
	personne := LegacyPersonne{
		Prenom:     p.Prenom,
		Nom:        p.Nom,
		Email:      p.Email,
		MailDirect: p.MailDirect,
		Telephone:  p.Telephone,
		Fonction:   p.Fonction,
	}

	if strings.TrimSpace(p.StructureRaisonSociale) == "" {
		return LegacyBundle{ID: p.ID, EntityType: BundleKindPersonne, Personnes: []LegacyPersonne{personne}}
	}

	return LegacyBundle{
		ID:         p.ID,
		EntityType: BundleKindMixed,
		Structure: &LegacyStructure{
			RaisonSociale: p.StructureRaisonSociale,
			Type:          p.StructureType,
			Adresse:       p.StructureAdresse,
			CodePostal:    p.StructureCodePostal,
			Ville:         p.StructureVille,
			Pays:          p.StructurePays,
			Email:         p.StructureEmail,
			Telephone1:    p.StructureTelephone,
			SiteWeb:       p.StructureSiteWeb,
			Siret:         p.StructureSiret,
		},
		Personnes: []LegacyPersonne{personne},
	}
}
