// Package identity resolves incoming structures against existing ones without creating duplicates.
package identity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/normalizers"
)

var validate = validator.New()

// structureNamespace seeds the deterministic ids of structures created by the resolver.
var structureNamespace = uuid.MustParse("6f1c2a4e-8d3b-5e7f-9a1c-2b4d6e8f0a13")

type MatchKind string

const (
	MatchNone  MatchKind = ""
	MatchSiret MatchKind = "siret"
	MatchKey   MatchKind = "key"
)

// NormalizeKey builds the canonical key of a structure without siret:
// each part lowercased, trimmed and stripped of non-alphanumerics, then concatenated.
func NormalizeKey(raisonSociale, structureType, ville string) string {
	var b strings.Builder
	for _, part := range []string{raisonSociale, structureType, ville} {
		b.WriteString(normalizers.ApplyChain(part, "trim", "lowercase", "alphanumeric"))
	}
	return b.String()
}

// NormalizeSiret keeps the digits of a siret.
func NormalizeSiret(siret string) string {
	return normalizers.DigitsOnly(siret)
}

func effectiveType(t string) string {
	if strings.TrimSpace(t) == "" {
		return models.DefaultStructureType
	}
	return strings.TrimSpace(t)
}

// StructureKey is the identity key of a stored structure: siret when present, canonical key otherwise.
func StructureKey(s *models.Structure) string {
	if siret := NormalizeSiret(s.Siret); siret != "" {
		return "siret:" + siret
	}
	return "key:" + NormalizeKey(s.RaisonSociale, effectiveType(s.Type), s.Ville)
}

// CandidateKey is the identity key a candidate would get once created.
func CandidateKey(c models.StructureCandidate) string {
	if siret := NormalizeSiret(c.Siret); siret != "" {
		return "siret:" + siret
	}
	return "key:" + NormalizeKey(c.RaisonSociale, effectiveType(c.Type), c.Ville)
}

// StructureID derives the id of a structure created from a candidate, so that
// re-running a migration on the same input proposes the same document.
func StructureID(organizationID string, c models.StructureCandidate) string {
	return uuid.NewSHA1(structureNamespace, []byte(fmt.Sprintf("%s|%s", organizationID, CandidateKey(c)))).String()
}

// Index looks structures up by siret and by canonical key.
type Index struct {
	bySiret map[string][]*models.Structure
	byKey   map[string][]*models.Structure
}

func NewIndex(structures []*models.Structure) *Index {
	idx := &Index{
		bySiret: make(map[string][]*models.Structure),
		byKey:   make(map[string][]*models.Structure),
	}
	for _, s := range structures {
		idx.Add(s)
	}
	return idx
}

func (idx *Index) Add(s *models.Structure) {
	if siret := NormalizeSiret(s.Siret); siret != "" {
		idx.bySiret[siret] = append(idx.bySiret[siret], s)
	}
	key := NormalizeKey(s.RaisonSociale, effectiveType(s.Type), s.Ville)
	idx.byKey[key] = append(idx.byKey[key], s)
}

// Resolution is the outcome of resolving one candidate.
type Resolution struct {
	Structure *models.Structure
	MatchedBy MatchKind
	Created   bool
	// Changes holds the fields filled from the candidate on a match. Empty when nothing changed.
	Changes store.Document
}

// Resolve matches the candidate against the index: siret first, else canonical key.
// On a match only the empty fields of the existing structure are filled. Without a match
// a new structure is built; the caller persists it and adds it to the index.
func Resolve(organizationID string, candidate models.StructureCandidate, idx *Index, now time.Time) (*Resolution, error) {
	candidate.RaisonSociale = strings.TrimSpace(candidate.RaisonSociale)
	if err := validate.Struct(candidate); err != nil {
		return nil, toValidationError(err, candidate)
	}

	existing, kind, err := idx.match(candidate)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return &Resolution{Structure: newStructure(organizationID, candidate, now), Created: true}, nil
	}

	changes := merge(existing, candidate)
	if len(changes) > 0 {
		existing.UpdatedAt = now
		changes["updatedAt"] = now
	}
	return &Resolution{Structure: existing, MatchedBy: kind, Changes: changes}, nil
}

func (idx *Index) match(c models.StructureCandidate) (*models.Structure, MatchKind, error) {
	siret := NormalizeSiret(c.Siret)
	if siret != "" {
		matches := idx.bySiret[siret]
		if len(matches) > 1 {
			return nil, MatchNone, apperrors.NewConflictError("siret", siret, structureIDs(matches))
		}
		if len(matches) == 1 {
			return matches[0], MatchSiret, nil
		}
	}

	key := NormalizeKey(c.RaisonSociale, effectiveType(c.Type), c.Ville)
	var candidates []*models.Structure
	for _, s := range idx.byKey[key] {
		// a different siret is a different legal entity even under the same name
		if existing := NormalizeSiret(s.Siret); siret != "" && existing != "" && existing != siret {
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return nil, MatchNone, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], MatchKey, nil
}

func newStructure(organizationID string, c models.StructureCandidate, now time.Time) *models.Structure {
	return &models.Structure{
		ID:             StructureID(organizationID, c),
		OrganizationID: organizationID,
		RaisonSociale:  c.RaisonSociale,
		Type:           effectiveType(c.Type),
		Adresse:        c.Adresse,
		CodePostal:     c.CodePostal,
		Ville:          c.Ville,
		Pays:           c.Pays,
		Email:          c.Email,
		Telephone1:     c.Telephone1,
		Telephone2:     c.Telephone2,
		SiteWeb:        c.SiteWeb,
		Siret:          c.Siret,
		Tags:           dedupTags(c.Tags),
		IsClient:       c.IsClient,
		Source:         c.Source,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// merge fills the empty fields of s from c and returns the changed fields by json name.
func merge(s *models.Structure, c models.StructureCandidate) store.Document {
	changes := store.Document{}
	fill := func(field string, dst *string, src string) {
		if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
			*dst = src
			changes[field] = src
		}
	}

	fill("type", &s.Type, c.Type)
	fill("adresse", &s.Adresse, c.Adresse)
	fill("codePostal", &s.CodePostal, c.CodePostal)
	fill("ville", &s.Ville, c.Ville)
	fill("pays", &s.Pays, c.Pays)
	fill("email", &s.Email, c.Email)
	fill("telephone1", &s.Telephone1, c.Telephone1)
	fill("telephone2", &s.Telephone2, c.Telephone2)
	fill("siteWeb", &s.SiteWeb, c.SiteWeb)
	fill("siret", &s.Siret, c.Siret)

	if c.IsClient && !s.IsClient {
		s.IsClient = true
		changes["isClient"] = true
	}

	if merged := unionTags(s.Tags, c.Tags); len(merged) != len(s.Tags) {
		s.Tags = merged
		changes["tags"] = merged
	}
	return changes
}

func unionTags(existing, incoming []string) []string {
	out := append([]string(nil), existing...)
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range incoming {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return unionTags(nil, tags)
}

func structureIDs(structures []*models.Structure) []string {
	ids := make([]string, 0, len(structures))
	for _, s := range structures {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

// BlockedByUnreadable rejects a structure creation while stored structures could not be read:
// one of them may be the candidate's match.
func BlockedByUnreadable(sourceRef string, unreadable int) error {
	message := fmt.Sprintf("%d stored structure(s) could not be read, no structure is created until they are fixed", unreadable)
	return apperrors.NewValidationError("structure", "", message).WithRecord(sourceRef)
}

func toValidationError(err error, c models.StructureCandidate) error {
	field, message := "raisonSociale", "is required"
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		field = lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			message = "is required"
		case "max":
			message = fmt.Sprintf("must be at most %s characters", fe.Param())
		default:
			message = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return apperrors.NewValidationError("structure", field, message).WithRecord(c.SourceRef)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
