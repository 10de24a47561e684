// Package events emits contact lifecycle events
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	ctxpkg "github.com/MoonWalka/app-booking-2-sub017/pkg/context"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/kafka"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

type EventType string

const (
	LiaisonCreated       EventType = "liaison.created"
	LiaisonReactivated   EventType = "liaison.reactivated"
	LiaisonDeactivated   EventType = "liaison.deactivated"
	PersonneLibreChanged EventType = "personne.libre_changed"
)

// Publisher is implemented by kafka.Producer.
type Publisher interface {
	PublishLiaisonEvents(ctx context.Context, events []*kafka.LiaisonEvent) error
	PublishPersonneEvent(ctx context.Context, event *kafka.PersonneEvent) error
}

// Emitter turns contact changes into events. A nil Emitter or one without
// publisher drops every event.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) enabled() bool {
	return e != nil && e.publisher != nil
}

// EmitLiaison emits one liaison event
func (e *Emitter) EmitLiaison(ctx context.Context, eventType EventType, l *models.Liaison) error {
	return e.EmitLiaisons(ctx, eventType, []*models.Liaison{l})
}

// EmitLiaisons emits one event per liaison in a single batch
func (e *Emitter) EmitLiaisons(ctx context.Context, eventType EventType, liaisons []*models.Liaison) error {
	if !e.enabled() || len(liaisons) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLiaisons")
	defer span.End()

	runID := ctxpkg.GetRunID(ctx)
	batch := make([]*kafka.LiaisonEvent, 0, len(liaisons))
	for _, l := range liaisons {
		batch = append(batch, &kafka.LiaisonEvent{
			EventType:      string(eventType),
			OrganizationID: l.OrganizationID,
			LiaisonID:      l.ID,
			StructureID:    l.StructureID,
			PersonneID:     l.PersonneID,
			Fonction:       l.Fonction,
			Actif:          l.Actif,
			Prioritaire:    l.Prioritaire,
			Interesse:      l.Interesse,
			RunID:          runID,
		})
	}

	if err := e.publisher.PublishLiaisonEvents(ctx, batch); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s events", eventType)
		return err
	}
	return nil
}

// EmitPersonneLibreChanged emits a personne.libre_changed event
func (e *Emitter) EmitPersonneLibreChanged(ctx context.Context, organizationID, personneID string, libre bool) error {
	if !e.enabled() {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitPersonneLibreChanged")
	defer span.End()

	event := &kafka.PersonneEvent{
		EventType:       string(PersonneLibreChanged),
		OrganizationID:  organizationID,
		PersonneID:      personneID,
		IsPersonneLibre: libre,
		RunID:           ctxpkg.GetRunID(ctx),
	}

	if err := e.publisher.PublishPersonneEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit personne.libre_changed event")
		return err
	}
	return nil
}
