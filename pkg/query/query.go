// Package query joins structures, personnes and liaisons for the read side.
package query

import (
	"sort"
	"strings"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

type index struct {
	structures map[string]*models.Structure
	personnes  map[string]*models.Personne
	// active liaisons whose two ends exist
	byStructure map[string][]*models.Liaison
	byPersonne  map[string][]*models.Liaison
}

func newIndex(ds *models.Dataset) *index {
	idx := &index{
		structures:  make(map[string]*models.Structure, len(ds.Structures)),
		personnes:   make(map[string]*models.Personne, len(ds.Personnes)),
		byStructure: make(map[string][]*models.Liaison),
		byPersonne:  make(map[string][]*models.Liaison),
	}
	for _, s := range ds.Structures {
		idx.structures[s.ID] = s
	}
	for _, p := range ds.Personnes {
		idx.personnes[p.ID] = p
	}
	for _, l := range ds.Liaisons {
		if !l.Actif {
			continue
		}
		if idx.structures[l.StructureID] == nil || idx.personnes[l.PersonneID] == nil {
			continue
		}
		idx.byStructure[l.StructureID] = append(idx.byStructure[l.StructureID], l)
		idx.byPersonne[l.PersonneID] = append(idx.byPersonne[l.PersonneID], l)
	}
	return idx
}

// StructuresWithPersonnes joins each matching structure with its active personnes,
// prioritaire contacts first.
func StructuresWithPersonnes(ds *models.Dataset, filters models.StructureFilters) []models.StructureWithPersonnes {
	idx := newIndex(ds)

	out := make([]models.StructureWithPersonnes, 0, len(ds.Structures))
	for _, s := range ds.Structures {
		if !matchStructure(s, filters) {
			continue
		}

		personnes := make([]models.PersonneWithLiaison, 0, len(idx.byStructure[s.ID]))
		for _, l := range idx.byStructure[s.ID] {
			personnes = append(personnes, models.PersonneWithLiaison{
				Personne: *idx.personnes[l.PersonneID],
				Liaison:  l.Info(),
			})
		}
		sort.SliceStable(personnes, func(i, j int) bool {
			if personnes[i].Liaison.Prioritaire != personnes[j].Liaison.Prioritaire {
				return personnes[i].Liaison.Prioritaire
			}
			return lessFold(personnes[i].FullName(), personnes[j].FullName(), personnes[i].ID, personnes[j].ID)
		})

		out = append(out, models.StructureWithPersonnes{Structure: *s, Personnes: personnes})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return lessFold(out[i].RaisonSociale, out[j].RaisonSociale, out[i].ID, out[j].ID)
	})
	return out
}

// PersonnesLibres lists the personnes flagged libre that match the filters.
func PersonnesLibres(ds *models.Dataset, filters models.PersonneFilters) []*models.Personne {
	var out []*models.Personne
	for _, p := range ds.Personnes {
		if p.IsPersonneLibre && matchPersonne(p, filters) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessFold(out[i].FullName(), out[j].FullName(), out[i].ID, out[j].ID)
	})
	return out
}

// PersonneWithStructures joins a personne with the structures of its active liaisons.
func PersonneWithStructures(ds *models.Dataset, personneID string) (*models.PersonneWithStructures, error) {
	idx := newIndex(ds)
	p, ok := idx.personnes[personneID]
	if !ok {
		return nil, apperrors.NewNotFoundError("personne", personneID)
	}

	structures := make([]models.StructureWithLiaison, 0, len(idx.byPersonne[personneID]))
	for _, l := range idx.byPersonne[personneID] {
		structures = append(structures, models.StructureWithLiaison{
			Structure: *idx.structures[l.StructureID],
			Liaison:   l.Info(),
		})
	}
	sort.SliceStable(structures, func(i, j int) bool {
		return lessFold(structures[i].RaisonSociale, structures[j].RaisonSociale, structures[i].ID, structures[j].ID)
	})
	return &models.PersonneWithStructures{Personne: *p, Structures: structures}, nil
}

// ComputeStatistics totals one organization's contacts.
func ComputeStatistics(ds *models.Dataset) models.Statistics {
	stats := models.Statistics{
		TotalStructures: len(ds.Structures),
		TotalPersonnes:  len(ds.Personnes),
		TotalLiaisons:   len(ds.Liaisons),

		UnreadableDocuments: len(ds.Undecodable),
	}
	for _, s := range ds.Structures {
		if s.IsClient {
			stats.Clients++
		}
	}
	for _, p := range ds.Personnes {
		if p.IsPersonneLibre {
			stats.PersonnesLibres++
		}
	}
	for _, l := range ds.Liaisons {
		if !l.Actif {
			continue
		}
		stats.LiaisonsActives++
		if l.Prioritaire {
			stats.ContactsPrioritaires++
		}
		if l.Interesse {
			stats.ContactsInteresses++
		}
	}
	return stats
}

func matchStructure(s *models.Structure, f models.StructureFilters) bool {
	if f.Name != "" && !containsFold(s.RaisonSociale, f.Name) {
		return false
	}
	if f.IsClient != nil && s.IsClient != *f.IsClient {
		return false
	}
	if f.Type != "" && !strings.EqualFold(s.Type, f.Type) {
		return false
	}
	if !hasTags(s.Tags, f.Tags) {
		return false
	}
	if term := strings.TrimSpace(f.SearchTerm); term != "" {
		fields := append([]string{s.RaisonSociale, s.Email, s.Ville}, s.Tags...)
		return anyContainsFold(fields, term)
	}
	return true
}

func matchPersonne(p *models.Personne, f models.PersonneFilters) bool {
	if !hasTags(p.Tags, f.Tags) {
		return false
	}
	if term := strings.TrimSpace(f.SearchTerm); term != "" {
		return anyContainsFold([]string{p.FullName(), p.Email, p.MailDirect}, term)
	}
	return true
}

// hasTags is true when every wanted tag is present.
func hasTags(tags, wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, t := range tags {
			if strings.EqualFold(t, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func anyContainsFold(fields []string, term string) bool {
	for _, f := range fields {
		if containsFold(f, term) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func lessFold(a, b, idA, idB string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return idA < idB
}
