package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonWalka/app-booking-2-sub017/internal/repositories"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store/memory"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/logging"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

var now = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func TestAnalyze_UnidirectionalReferenceReportedOnce(t *testing.T) {
	ds := &models.Dataset{
		OrganizationID: "org",
		Structures: []*models.Structure{
			{ID: "s1", RaisonSociale: "Festival Test", LegacyPersonneIDs: []string{"x", "x", "p2"}},
		},
		Personnes: []*models.Personne{
			{ID: "x", Prenom: "Xavier", IsPersonneLibre: true},
			{ID: "p2", Prenom: "Paula"},
		},
		Liaisons: []*models.Liaison{
			{ID: "l1", StructureID: "s1", PersonneID: "p2", Actif: true},
		},
	}

	report := Analyze(ds, now)

	issues := report.IssuesOfType(models.IssueUnidirectionalReference)
	require.Len(t, issues, 1)
	assert.Equal(t, "structure", issues[0].SourceType)
	assert.Equal(t, "s1", issues[0].SourceID)
	assert.Equal(t, "personne", issues[0].TargetType)
	assert.Equal(t, "x", issues[0].TargetID)
	assert.Equal(t, models.SeverityMedium, issues[0].Severity)
	assert.Contains(t, issues[0].Description, "Festival Test")

	assert.Equal(t, 2, report.Counts.LegacyReferences)
	assert.Equal(t, 1, report.Counts.CoherentAssociations)
	assert.Equal(t, 1, report.Counts.UnidirectionalReferences)
	assert.Empty(t, report.IssuesOfType(models.IssueLibreFlagDrift))
}

func TestAnalyze_InactiveLiaisonDoesNotSatisfyLegacyReference(t *testing.T) {
	ds := &models.Dataset{
		Structures: []*models.Structure{{ID: "s1"}},
		Personnes:  []*models.Personne{{ID: "p1", LegacyStructureIDs: []string{"s1"}, IsPersonneLibre: true}},
		Liaisons:   []*models.Liaison{{ID: "l1", StructureID: "s1", PersonneID: "p1", Actif: false}},
	}

	report := Analyze(ds, now)

	issues := report.IssuesOfType(models.IssueUnidirectionalReference)
	require.Len(t, issues, 1)
	assert.Equal(t, "personne", issues[0].SourceType)
	assert.Equal(t, "s1", issues[0].TargetID)
	assert.Equal(t, 0, report.Counts.ActiveLiaisons)
}

func TestAnalyze_OrphanReferences(t *testing.T) {
	ds := &models.Dataset{
		Structures: []*models.Structure{{ID: "s1"}},
		Personnes:  []*models.Personne{{ID: "p1"}},
		Liaisons: []*models.Liaison{
			{ID: "ok", StructureID: "s1", PersonneID: "p1", Actif: true},
			{ID: "no-structure", StructureID: "gone", PersonneID: "p1", Actif: true},
			{ID: "no-personne", StructureID: "s1", PersonneID: "gone", Actif: false},
			{ID: "no-both", StructureID: "a", PersonneID: "b", Actif: true},
		},
	}

	report := Analyze(ds, now)

	orphans := report.IssuesOfType(models.IssueOrphanReference)
	require.Len(t, orphans, 3)
	assert.Equal(t, "no-structure", orphans[0].LiaisonID)
	assert.Equal(t, "structure", orphans[0].TargetType)
	assert.Equal(t, "personne", orphans[1].TargetType)
	assert.Equal(t, []string{"structure", "personne"}, orphans[2].Details["missing"])
	for _, o := range orphans {
		assert.Equal(t, models.SeverityHigh, o.Severity)
	}
	assert.Equal(t, 3, report.Counts.OrphanReferences)
	assert.Equal(t, 1, report.Counts.CoherentAssociations)
	assert.NotEmpty(t, report.Recommendations)
}

func TestAnalyze_LibreDriftAndDuplicates(t *testing.T) {
	ds := &models.Dataset{
		Structures: []*models.Structure{{ID: "s1"}, {ID: "s2"}},
		Personnes: []*models.Personne{
			{ID: "attached-but-libre", IsPersonneLibre: true},
			{ID: "free-but-not-libre", IsPersonneLibre: false},
			{ID: "fine", IsPersonneLibre: true},
		},
		Liaisons: []*models.Liaison{
			{ID: "l1", StructureID: "s1", PersonneID: "attached-but-libre", Actif: true},
			{ID: "l2", StructureID: "s1", PersonneID: "attached-but-libre", Actif: false},
		},
	}

	report := Analyze(ds, now)

	drifts := report.IssuesOfType(models.IssueLibreFlagDrift)
	require.Len(t, drifts, 2)
	assert.Equal(t, "attached-but-libre", drifts[0].SourceID)
	assert.Equal(t, "free-but-not-libre", drifts[1].SourceID)

	dups := report.IssuesOfType(models.IssueDuplicateLiaison)
	require.Len(t, dups, 1)
	assert.Equal(t, []string{"l1", "l2"}, dups[0].Details["liaisonIds"])

	assert.Equal(t, 1, report.Counts.StructuresWithPersonnes)
	assert.Equal(t, 1, report.Counts.StructuresWithoutPersonnes)
	assert.Equal(t, 1, report.Counts.PersonnesWithStructures)
	assert.Equal(t, 2, report.Counts.PersonnesWithoutStructures)
	assert.False(t, report.Consistent())
}

func TestAuditor_RunOnStore(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(memory.New(), logging.Discard())
	require.NoError(t, repos.Structures.Insert(ctx, "org", &models.Structure{ID: "s1", RaisonSociale: "Le Périscope"}))
	require.NoError(t, repos.Personnes.Insert(ctx, "org", &models.Personne{ID: "p1", IsPersonneLibre: false}))
	require.NoError(t, repos.Liaisons.Insert(ctx, "org", &models.Liaison{ID: "l1", StructureID: "s1", PersonneID: "p1", Actif: true}))
	require.NoError(t, repos.Structures.Insert(ctx, "other", &models.Structure{ID: "s9", LegacyPersonneIDs: []string{"p1"}}))

	report, err := NewAuditor(repos, logging.Discard()).Run(ctx, "org")
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "other organizations are not scanned")
	assert.Equal(t, 1, report.Counts.ActiveLiaisons)
	assert.Equal(t, "org", report.OrganizationID)
}

func TestAnalyze_UnreadableDocumentsAreNotOrphans(t *testing.T) {
	ds := &models.Dataset{
		Personnes: []*models.Personne{{ID: "p1", IsPersonneLibre: false}},
		Liaisons: []*models.Liaison{
			{ID: "l1", StructureID: "s-bad", PersonneID: "p1", Actif: true},
			{ID: "l2", StructureID: "gone", PersonneID: "p1", Actif: false},
		},
		Undecodable: []models.UndecodableDocument{
			{Collection: store.CollectionStructures, ID: "s-bad", Error: "json: cannot unmarshal"},
		},
	}

	report := Analyze(ds, now)

	unreadable := report.IssuesOfType(models.IssueUnreadableDocument)
	require.Len(t, unreadable, 1)
	assert.Equal(t, "structure", unreadable[0].SourceType)
	assert.Equal(t, "s-bad", unreadable[0].SourceID)
	assert.Equal(t, models.SeverityHigh, unreadable[0].Severity)

	orphans := report.IssuesOfType(models.IssueOrphanReference)
	require.Len(t, orphans, 1)
	assert.Equal(t, "l2", orphans[0].LiaisonID)

	assert.Equal(t, 1, report.Counts.UnreadableDocuments)
	assert.Equal(t, 1, report.Counts.OrphanReferences)
	assert.Equal(t, 1, report.Counts.CoherentAssociations)
	assert.Empty(t, report.IssuesOfType(models.IssueLibreFlagDrift))
}

func TestAuditor_LenientDocumentsAreCounted(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	repos := repositories.New(s, logging.Discard())
	_, err := s.Insert(ctx, "org", store.CollectionStructures, store.Document{
		"id": "s1", "raisonSociale": "Festival Test", "createdAt": "", "isClient": "true",
	})
	require.NoError(t, err)
	require.NoError(t, repos.Personnes.Insert(ctx, "org", &models.Personne{ID: "p1"}))
	require.NoError(t, repos.Liaisons.Insert(ctx, "org", &models.Liaison{ID: "l1", StructureID: "s1", PersonneID: "p1", Actif: true}))

	report, err := NewAuditor(repos, logging.Discard()).Run(ctx, "org")
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 1, report.Counts.TotalStructures)
	assert.Zero(t, report.Counts.OrphanReferences)
}
