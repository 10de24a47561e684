// Package audit checks that the legacy embedded arrays, the liaisons and the
// cached isPersonneLibre flags of one organization agree.
package audit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

type adjacency map[string]map[string]bool

func (a adjacency) add(from, to string) {
	set, ok := a[from]
	if !ok {
		set = make(map[string]bool)
		a[from] = set
	}
	set[to] = true
}

func (a adjacency) has(from, to string) bool {
	return a[from][to]
}

// Analyze runs the full scan of one dataset in O(S+P+L).
func Analyze(ds *models.Dataset, now time.Time) *models.AuditReport {
	report := &models.AuditReport{
		OrganizationID: ds.OrganizationID,
		GeneratedAt:    now,
		Issues:         []models.Issue{},
		IssuesByType:   make(map[models.IssueType]int),
	}

	structures := make(map[string]*models.Structure, len(ds.Structures))
	for _, s := range ds.Structures {
		structures[s.ID] = s
	}
	personnes := make(map[string]*models.Personne, len(ds.Personnes))
	for _, p := range ds.Personnes {
		personnes[p.ID] = p
	}

	// unreadable documents exist: liaisons pointing at them are not orphans
	unreadableStructures := ds.UndecodableIDs(store.CollectionStructures)
	unreadablePersonnes := ds.UndecodableIDs(store.CollectionPersonnes)
	for _, u := range ds.Undecodable {
		addIssue(report, unreadableIssue(u))
	}

	// relational adjacency from active liaisons
	structurePersonnes := adjacency{}
	personneStructures := adjacency{}
	liaisonsByPair := make(map[models.Pair][]string)

	counts := &report.Counts
	counts.TotalStructures = len(ds.Structures)
	counts.TotalPersonnes = len(ds.Personnes)
	counts.TotalLiaisons = len(ds.Liaisons)

	refs := models.CollectReferences(ds.Structures, ds.Personnes, ds.Liaisons)
	var legacy []models.LegacyEmbeddedRef
	seenLegacy := make(map[models.LegacyEmbeddedRef]bool)

	for _, ref := range refs {
		switch r := ref.(type) {
		case models.LegacyEmbeddedRef:
			if !seenLegacy[r] {
				seenLegacy[r] = true
				legacy = append(legacy, r)
			}
		case models.RelationalLiaison:
			pair := r.Pair()
			liaisonsByPair[pair] = append(liaisonsByPair[pair], r.LiaisonID)

			_, structureExists := structures[r.StructureID]
			_, personneExists := personnes[r.PersonneID]
			structureExists = structureExists || unreadableStructures[r.StructureID]
			personneExists = personneExists || unreadablePersonnes[r.PersonneID]
			if !structureExists || !personneExists {
				addIssue(report, orphanIssue(r, structureExists, personneExists))
			}

			if !r.Actif {
				continue
			}
			counts.ActiveLiaisons++
			structurePersonnes.add(r.StructureID, r.PersonneID)
			personneStructures.add(r.PersonneID, r.StructureID)
			if structureExists && personneExists {
				counts.CoherentAssociations++
			}
		}
	}

	counts.LegacyReferences = len(legacy)
	for _, r := range legacy {
		pair := r.Pair()
		if structurePersonnes.has(pair.StructureID, pair.PersonneID) {
			continue
		}
		addIssue(report, unidirectionalIssue(r, structures, personnes))
	}

	for _, pair := range sortedPairs(liaisonsByPair) {
		ids := liaisonsByPair[pair]
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		addIssue(report, models.Issue{
			Type:        models.IssueDuplicateLiaison,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("%d liaisons join structure '%s' and personne '%s'", len(ids), pair.StructureID, pair.PersonneID),
			SourceType:  "structure",
			SourceID:    pair.StructureID,
			TargetType:  "personne",
			TargetID:    pair.PersonneID,
			Details:     map[string]any{"liaisonIds": ids},
		})
	}

	for _, s := range ds.Structures {
		if len(structurePersonnes[s.ID]) > 0 {
			counts.StructuresWithPersonnes++
		} else {
			counts.StructuresWithoutPersonnes++
		}
	}
	for _, p := range ds.Personnes {
		attached := len(personneStructures[p.ID]) > 0
		if attached {
			counts.PersonnesWithStructures++
		} else {
			counts.PersonnesWithoutStructures++
		}
		if p.IsPersonneLibre == attached {
			addIssue(report, libreDriftIssue(p, attached))
		}
	}

	counts.UnidirectionalReferences = report.IssuesByType[models.IssueUnidirectionalReference]
	counts.OrphanReferences = report.IssuesByType[models.IssueOrphanReference]
	counts.LibreFlagDrifts = report.IssuesByType[models.IssueLibreFlagDrift]
	counts.DuplicateLiaisons = report.IssuesByType[models.IssueDuplicateLiaison]
	counts.UnreadableDocuments = report.IssuesByType[models.IssueUnreadableDocument]
	report.Recommendations = recommendations(counts)
	return report
}

func addIssue(report *models.AuditReport, issue models.Issue) {
	report.Issues = append(report.Issues, issue)
	report.IssuesByType[issue.Type]++
}

func unreadableIssue(u models.UndecodableDocument) models.Issue {
	sourceType := strings.TrimSuffix(u.Collection, "s")
	return models.Issue{
		Type:        models.IssueUnreadableDocument,
		Severity:    models.SeverityHigh,
		Description: fmt.Sprintf("Document '%s' in %s could not be read: %s", u.ID, u.Collection, u.Error),
		SourceType:  sourceType,
		SourceID:    u.ID,
		Details:     map[string]any{"collection": u.Collection, "error": u.Error},
	}
}

func orphanIssue(r models.RelationalLiaison, structureExists, personneExists bool) models.Issue {
	var missing []string
	if !structureExists {
		missing = append(missing, "structure")
	}
	if !personneExists {
		missing = append(missing, "personne")
	}

	issue := models.Issue{
		Type:       models.IssueOrphanReference,
		Severity:   models.SeverityHigh,
		SourceType: "liaison",
		SourceID:   r.LiaisonID,
		LiaisonID:  r.LiaisonID,
		Details: map[string]any{
			"structureId": r.StructureID,
			"personneId":  r.PersonneID,
			"actif":       r.Actif,
			"missing":     missing,
		},
	}
	switch {
	case len(missing) == 2:
		issue.TargetType = "structure"
		issue.TargetID = r.StructureID
		issue.Description = fmt.Sprintf("Liaison '%s' points to missing structure '%s' and missing personne '%s'", r.LiaisonID, r.StructureID, r.PersonneID)
	case !structureExists:
		issue.TargetType = "structure"
		issue.TargetID = r.StructureID
		issue.Description = fmt.Sprintf("Liaison '%s' points to missing structure '%s'", r.LiaisonID, r.StructureID)
	default:
		issue.TargetType = "personne"
		issue.TargetID = r.PersonneID
		issue.Description = fmt.Sprintf("Liaison '%s' points to missing personne '%s'", r.LiaisonID, r.PersonneID)
	}
	return issue
}

func unidirectionalIssue(r models.LegacyEmbeddedRef, structures map[string]*models.Structure, personnes map[string]*models.Personne) models.Issue {
	targetExists := false
	var description string
	if r.Side == models.RefSideStructure {
		_, targetExists = personnes[r.TargetID]
		description = fmt.Sprintf("Structure '%s' lists personne '%s' but no active liaison links them", label(structures[r.OwnerID], r.OwnerID), r.TargetID)
	} else {
		_, targetExists = structures[r.TargetID]
		description = fmt.Sprintf("Personne '%s' lists structure '%s' but no active liaison links them", personneLabel(personnes[r.OwnerID], r.OwnerID), r.TargetID)
	}

	return models.Issue{
		Type:        models.IssueUnidirectionalReference,
		Severity:    models.SeverityMedium,
		Description: description,
		SourceType:  string(r.Side),
		SourceID:    r.OwnerID,
		TargetType:  string(r.TargetSide()),
		TargetID:    r.TargetID,
		Details:     map[string]any{"targetExists": targetExists},
	}
}

func libreDriftIssue(p *models.Personne, attached bool) models.Issue {
	description := fmt.Sprintf("Personne '%s' is flagged libre but has an active liaison", personneLabel(p, p.ID))
	if !attached {
		description = fmt.Sprintf("Personne '%s' has no active liaison but is not flagged libre", personneLabel(p, p.ID))
	}
	return models.Issue{
		Type:        models.IssueLibreFlagDrift,
		Severity:    models.SeverityLow,
		Description: description,
		SourceType:  "personne",
		SourceID:    p.ID,
		Details: map[string]any{
			"isPersonneLibre": p.IsPersonneLibre,
			"expected":        !attached,
		},
	}
}

func label(s *models.Structure, id string) string {
	if s == nil || s.RaisonSociale == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", s.RaisonSociale, id)
}

func personneLabel(p *models.Personne, id string) string {
	if p == nil || p.FullName() == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", p.FullName(), id)
}

func sortedPairs(m map[models.Pair][]string) []models.Pair {
	pairs := make([]models.Pair, 0, len(m))
	for pair := range m {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].StructureID != pairs[j].StructureID {
			return pairs[i].StructureID < pairs[j].StructureID
		}
		return pairs[i].PersonneID < pairs[j].PersonneID
	})
	return pairs
}

func recommendations(c *models.AuditCounts) []string {
	var out []string
	if c.UnreadableDocuments > 0 {
		out = append(out, fmt.Sprintf("Fix %d unreadable document(s) by hand: the repair job resolves no structure while one is unreadable", c.UnreadableDocuments))
	}
	if c.OrphanReferences > 0 {
		out = append(out, fmt.Sprintf("Review %d orphan liaison(s) manually: they are reported, never pruned automatically", c.OrphanReferences))
	}
	if c.UnidirectionalReferences > 0 {
		out = append(out, fmt.Sprintf("Run the repair job to derive liaisons for %d legacy reference(s), or clear the legacy arrays once verified", c.UnidirectionalReferences))
	}
	if c.LibreFlagDrifts > 0 {
		out = append(out, fmt.Sprintf("Run the repair job to correct %d isPersonneLibre flag(s)", c.LibreFlagDrifts))
	}
	if c.DuplicateLiaisons > 0 {
		out = append(out, fmt.Sprintf("Merge %d duplicated structure/personne pair(s) into a single liaison", c.DuplicateLiaisons))
	}
	return out
}
