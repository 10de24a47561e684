package models

// Pair identifies a Structure/Personne association.
type Pair struct {
	StructureID string `json:"structureId"`
	PersonneID  string `json:"personneId"`
}

// Reference is either a LegacyEmbeddedRef or a RelationalLiaison.
type Reference interface {
	Pair() Pair
	isReference()
}

// RefSide is the document that holds a legacy embedded reference.
type RefSide string

const (
	RefSideStructure RefSide = "structure"
	RefSidePersonne  RefSide = "personne"
)

// LegacyEmbeddedRef is one id found in an embedded association array.
// OwnerID is the document carrying the array, TargetID the id listed in it.
type LegacyEmbeddedRef struct {
	Side     RefSide `json:"side"`
	OwnerID  string  `json:"ownerId"`
	TargetID string  `json:"targetId"`
}

func (r LegacyEmbeddedRef) Pair() Pair {
	if r.Side == RefSideStructure {
		return Pair{StructureID: r.OwnerID, PersonneID: r.TargetID}
	}
	return Pair{StructureID: r.TargetID, PersonneID: r.OwnerID}
}

// TargetSide is the entity kind the embedded id points at.
func (r LegacyEmbeddedRef) TargetSide() RefSide {
	if r.Side == RefSideStructure {
		return RefSidePersonne
	}
	return RefSideStructure
}

func (LegacyEmbeddedRef) isReference() {}

// RelationalLiaison is the join-record form of an association.
type RelationalLiaison struct {
	LiaisonID   string `json:"liaisonId"`
	StructureID string `json:"structureId"`
	PersonneID  string `json:"personneId"`
	Actif       bool   `json:"actif"`
}

func (r RelationalLiaison) Pair() Pair {
	return Pair{StructureID: r.StructureID, PersonneID: r.PersonneID}
}

func (RelationalLiaison) isReference() {}

// CollectReferences lists every association in both representations, legacy first.
func CollectReferences(structures []*Structure, personnes []*Personne, liaisons []*Liaison) []Reference {
	refs := make([]Reference, 0, len(liaisons))
	for _, s := range structures {
		for _, personneID := range s.LegacyPersonneIDs {
			if personneID == "" {
				continue
			}
			refs = append(refs, LegacyEmbeddedRef{Side: RefSideStructure, OwnerID: s.ID, TargetID: personneID})
		}
	}
	for _, p := range personnes {
		for _, structureID := range p.LegacyStructureIDs {
			if structureID == "" {
				continue
			}
			refs = append(refs, LegacyEmbeddedRef{Side: RefSidePersonne, OwnerID: p.ID, TargetID: structureID})
		}
	}
	for _, l := range liaisons {
		refs = append(refs, RelationalLiaison{LiaisonID: l.ID, StructureID: l.StructureID, PersonneID: l.PersonneID, Actif: l.Actif})
	}
	return refs
}
