package liaison

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonWalka/app-booking-2-sub017/internal/repositories"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store/memory"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/events"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/logging"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

const org = "org-1"

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type recordedEvent struct {
	kind string
	id   string
}

type fakeEmitter struct {
	events []recordedEvent
}

func (f *fakeEmitter) EmitLiaison(_ context.Context, eventType events.EventType, l *models.Liaison) error {
	f.events = append(f.events, recordedEvent{kind: string(eventType), id: l.ID})
	return nil
}

func (f *fakeEmitter) EmitPersonneLibreChanged(_ context.Context, _, personneID string, _ bool) error {
	f.events = append(f.events, recordedEvent{kind: string(events.PersonneLibreChanged), id: personneID})
	return nil
}

type fixture struct {
	store   *memory.Store
	repos   *repositories.Repositories
	manager *Manager
	emitter *fakeEmitter
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), emitter: &fakeEmitter{}, clock: t0}
	f.repos = repositories.New(f.store, logging.Discard())
	f.manager = NewManager(f.repos.Structures, f.repos.Personnes, f.repos.Liaisons, f.emitter, logging.Discard()).
		WithClock(func() time.Time { return f.clock })

	ctx := context.Background()
	require.NoError(t, f.repos.Structures.Insert(ctx, org, &models.Structure{ID: "s1", RaisonSociale: "La Cigale"}))
	require.NoError(t, f.repos.Structures.Insert(ctx, org, &models.Structure{ID: "s2", RaisonSociale: "Le Trianon"}))
	require.NoError(t, f.repos.Personnes.Insert(ctx, org, &models.Personne{ID: "p1", Prenom: "Léa", Nom: "Martin", IsPersonneLibre: true}))
	require.NoError(t, f.repos.Personnes.Insert(ctx, org, &models.Personne{ID: "p2", Prenom: "Tom", Nom: "Durand", IsPersonneLibre: true}))
	return f
}

func (f *fixture) personne(t *testing.T, id string) *models.Personne {
	t.Helper()
	p, err := f.repos.Personnes.GetByID(context.Background(), org, id)
	require.NoError(t, err)
	return p
}

func TestCreateOrReactivateLiaison_CreatesWithDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p1", models.LiaisonAttrs{})
	require.NoError(t, err)
	assert.True(t, l.Actif)
	assert.False(t, l.Prioritaire)
	assert.False(t, l.Interesse)
	assert.Equal(t, ID(org, "s1", "p1"), l.ID)
	require.NotNil(t, l.DateDebut)

	assert.False(t, f.personne(t, "p1").IsPersonneLibre, "recomputed after create")
	assert.Equal(t, []recordedEvent{
		{kind: "liaison.created", id: l.ID},
		{kind: "personne.libre_changed", id: "p1"},
	}, f.emitter.events)
}

func TestCreateOrReactivateLiaison_IdempotentOnActivePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prioritaire := true

	first, err := f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p1", models.LiaisonAttrs{})
	require.NoError(t, err)
	second, err := f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p1", models.LiaisonAttrs{Prioritaire: &prioritaire})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Prioritaire, "active liaison returned unchanged")

	all, err := f.repos.Liaisons.List(ctx, org)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateOrReactivateLiaison_ReactivatesInactivePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p1", models.LiaisonAttrs{})
	require.NoError(t, err)

	f.clock = t0.Add(time.Hour)
	_, err = f.manager.DeactivateLiaison(ctx, org, created.ID)
	require.NoError(t, err)
	assert.True(t, f.personne(t, "p1").IsPersonneLibre)

	f.clock = t0.Add(2 * time.Hour)
	fonction := "programmateur"
	reactivated, err := f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p1", models.LiaisonAttrs{Fonction: &fonction})
	require.NoError(t, err)
	assert.Equal(t, created.ID, reactivated.ID)

	stored, err := f.repos.Liaisons.GetByID(ctx, org, created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Actif)
	assert.Equal(t, "programmateur", stored.Fonction)
	assert.Nil(t, stored.DateFin)
	require.NotNil(t, stored.DateDebut)
	assert.True(t, stored.DateDebut.Equal(f.clock))
	assert.False(t, f.personne(t, "p1").IsPersonneLibre)
}

func TestCreateOrReactivateLiaison_UnknownEntity(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.CreateOrReactivateLiaison(context.Background(), org, "missing", "p1", models.LiaisonAttrs{})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.manager.CreateOrReactivateLiaison(context.Background(), "other-org", "s1", "p1", models.LiaisonAttrs{})
	assert.True(t, apperrors.IsNotFound(err), "entities of another organization do not resolve")
}

func TestDeactivateLiaison_KeepsPersonneAttachedToOtherStructure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p1", models.LiaisonAttrs{})
	require.NoError(t, err)
	_, err = f.manager.CreateOrReactivateLiaison(ctx, org, "s2", "p1", models.LiaisonAttrs{})
	require.NoError(t, err)

	l, err := f.manager.DeactivateLiaison(ctx, org, a.ID)
	require.NoError(t, err)
	assert.False(t, l.Actif)
	require.NotNil(t, l.DateFin)
	assert.False(t, f.personne(t, "p1").IsPersonneLibre)

	f.clock = t0.Add(time.Hour)
	again, err := f.manager.DeactivateLiaison(ctx, org, a.ID)
	require.NoError(t, err)
	assert.True(t, again.UpdatedAt.Equal(t0), "deactivating an inactive liaison writes nothing")
}

func TestSetPrioritaire_NonExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p1", models.LiaisonAttrs{})
	require.NoError(t, err)
	_, err = f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p2", models.LiaisonAttrs{})
	require.NoError(t, err)

	_, err = f.manager.SetPrioritaire(ctx, org, "s1", "p1")
	require.NoError(t, err)
	_, err = f.manager.SetPrioritaire(ctx, org, "s1", "p2")
	require.NoError(t, err)

	liaisons, err := f.repos.Liaisons.ListByStructure(ctx, org, "s1")
	require.NoError(t, err)
	require.Len(t, liaisons, 2)
	for _, l := range liaisons {
		assert.True(t, l.Prioritaire, "liaison %s", l.ID)
	}

	_, err = f.manager.SetPrioritaire(ctx, org, "s2", "p2")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSetPrioritaire_InactiveLiaisonKeepsItsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.manager.CreateOrReactivateLiaison(ctx, org, "s1", "p1", models.LiaisonAttrs{})
	require.NoError(t, err)
	_, err = f.manager.DeactivateLiaison(ctx, org, l.ID)
	require.NoError(t, err)

	f.clock = t0.Add(time.Hour)
	marked, err := f.manager.SetPrioritaire(ctx, org, "s1", "p1")
	require.NoError(t, err)
	assert.Equal(t, l.ID, marked.ID)
	assert.True(t, marked.Prioritaire)
	assert.False(t, marked.Actif)

	stored, err := f.repos.Liaisons.GetByID(ctx, org, l.ID)
	require.NoError(t, err)
	assert.True(t, stored.Prioritaire)
	assert.False(t, stored.Actif, "setting the flag never reactivates")
	assert.True(t, f.personne(t, "p1").IsPersonneLibre)
}

func TestRecomputeIsPersonneLibre_FixesDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// liaison written without the recompute step, as a crash between the two writes would leave it
	_, err := f.store.Insert(ctx, org, store.CollectionLiaisons, store.Document{"id": "l-raw", "structureId": "s1", "personneId": "p2"})
	require.NoError(t, err)
	assert.True(t, f.personne(t, "p2").IsPersonneLibre)

	libre, err := f.manager.RecomputeIsPersonneLibre(ctx, org, "p2")
	require.NoError(t, err)
	assert.False(t, libre, "a liaison without actif counts as active")
	assert.False(t, f.personne(t, "p2").IsPersonneLibre)
}

func TestDecide(t *testing.T) {
	inactive := &models.Liaison{ID: "old", StructureID: "s", PersonneID: "p", Actif: false, CreatedAt: t0}
	active := &models.Liaison{ID: "cur", StructureID: "s", PersonneID: "p", Actif: true, CreatedAt: t0.Add(time.Hour)}
	other := &models.Liaison{ID: "x", StructureID: "s2", PersonneID: "p", Actif: true}

	assert.Equal(t, ActionCreate, Decide(org, "s", "p", []*models.Liaison{other}, models.LiaisonAttrs{}, t0).Action)
	assert.Equal(t, ActionReactivate, Decide(org, "s", "p", []*models.Liaison{inactive}, models.LiaisonAttrs{}, t0).Action)

	d := Decide(org, "s", "p", []*models.Liaison{inactive, active}, models.LiaisonAttrs{}, t0)
	assert.Equal(t, ActionNone, d.Action)
	assert.Equal(t, "cur", d.Liaison.ID)

	assert.False(t, inactive.Actif, "decide never mutates its inputs")
}
