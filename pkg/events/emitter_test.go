package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxpkg "github.com/MoonWalka/app-booking-2-sub017/pkg/context"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/kafka"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/logging"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

type fakePublisher struct {
	liaisons  []*kafka.LiaisonEvent
	personnes []*kafka.PersonneEvent
}

func (f *fakePublisher) PublishLiaisonEvents(_ context.Context, events []*kafka.LiaisonEvent) error {
	f.liaisons = append(f.liaisons, events...)
	return nil
}

func (f *fakePublisher) PublishPersonneEvent(_ context.Context, event *kafka.PersonneEvent) error {
	f.personnes = append(f.personnes, event)
	return nil
}

func TestEmitter_EmitLiaisonCarriesRunID(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEmitter(pub, logging.Discard())
	ctx := ctxpkg.SetRunID(context.Background(), "run-1")

	require.NoError(t, e.EmitLiaison(ctx, LiaisonCreated, &models.Liaison{ID: "l1", OrganizationID: "org", StructureID: "s1", PersonneID: "p1", Actif: true}))
	require.NoError(t, e.EmitPersonneLibreChanged(ctx, "org", "p1", false))

	require.Len(t, pub.liaisons, 1)
	assert.Equal(t, "liaison.created", pub.liaisons[0].EventType)
	assert.Equal(t, "run-1", pub.liaisons[0].RunID)
	require.Len(t, pub.personnes, 1)
	assert.False(t, pub.personnes[0].IsPersonneLibre)
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var e *Emitter
	assert.NoError(t, e.EmitLiaison(context.Background(), LiaisonDeactivated, &models.Liaison{ID: "l1"}))
	assert.NoError(t, NewEmitter(nil, logging.Discard()).EmitPersonneLibreChanged(context.Background(), "org", "p1", true))
}
