package liaison

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/events"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

type StructureReader interface {
	GetByID(ctx context.Context, organizationID, id string) (*models.Structure, error)
}

type PersonneStore interface {
	GetByID(ctx context.Context, organizationID, id string) (*models.Personne, error)
	UpdateFields(ctx context.Context, organizationID, id string, fields store.Document) error
}

type LiaisonStore interface {
	GetByID(ctx context.Context, organizationID, id string) (*models.Liaison, error)
	ListByPersonne(ctx context.Context, organizationID, personneID string) ([]*models.Liaison, error)
	FindByPair(ctx context.Context, organizationID, structureID, personneID string) ([]*models.Liaison, error)
	Insert(ctx context.Context, organizationID string, l *models.Liaison) error
	UpdateFields(ctx context.Context, organizationID, id string, fields store.Document) error
}

// EventEmitter is implemented by events.Emitter.
type EventEmitter interface {
	EmitLiaison(ctx context.Context, eventType events.EventType, l *models.Liaison) error
	EmitPersonneLibreChanged(ctx context.Context, organizationID, personneID string, libre bool) error
}

// Manager writes liaisons and keeps the isPersonneLibre cache in step with them.
// The liaison write and the flag recompute are two separate store writes.
type Manager struct {
	structures StructureReader
	personnes  PersonneStore
	liaisons   LiaisonStore
	emitter    EventEmitter
	logger     ectologger.Logger
	now        func() time.Time
}

func NewManager(structures StructureReader, personnes PersonneStore, liaisons LiaisonStore, emitter EventEmitter, logger ectologger.Logger) *Manager {
	return &Manager{
		structures: structures,
		personnes:  personnes,
		liaisons:   liaisons,
		emitter:    emitter,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the manager clock.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CreateOrReactivateLiaison links a structure and a personne. An active liaison of
// the pair is returned unchanged, an inactive one is reactivated with attrs merged,
// otherwise a new active liaison is inserted.
func (m *Manager) CreateOrReactivateLiaison(ctx context.Context, organizationID, structureID, personneID string, attrs models.LiaisonAttrs) (*models.Liaison, error) {
	ctx, span := tracing.StartSpan(ctx, "liaison.Manager.CreateOrReactivateLiaison")
	defer span.End()

	log := m.logger.WithContext(ctx).WithFields(map[string]any{
		"organization_id": organizationID,
		"structure_id":    structureID,
		"personne_id":     personneID,
	})

	if _, err := m.structures.GetByID(ctx, organizationID, structureID); err != nil {
		return nil, err
	}
	if _, err := m.personnes.GetByID(ctx, organizationID, personneID); err != nil {
		return nil, err
	}

	var decision Decision
	for attempt := 0; ; attempt++ {
		existing, err := m.liaisons.FindByPair(ctx, organizationID, structureID, personneID)
		if err != nil {
			return nil, err
		}

		decision = Decide(organizationID, structureID, personneID, existing, attrs, m.now())
		if decision.Action != ActionCreate {
			break
		}

		err = m.liaisons.Insert(ctx, organizationID, decision.Liaison)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrDuplicateID) && attempt == 0 {
			continue
		}
		log.WithError(err).Error("Failed to create liaison")
		return nil, err
	}

	switch decision.Action {
	case ActionCreate:
		log.WithField("liaison_id", decision.Liaison.ID).Info("Created liaison")
		m.emit(ctx, events.LiaisonCreated, decision.Liaison)
	case ActionReactivate:
		if err := m.liaisons.UpdateFields(ctx, organizationID, decision.Liaison.ID, decision.Changes); err != nil {
			log.WithError(err).Error("Failed to reactivate liaison")
			return nil, err
		}
		log.WithField("liaison_id", decision.Liaison.ID).Info("Reactivated liaison")
		m.emit(ctx, events.LiaisonReactivated, decision.Liaison)
	}

	if _, err := m.RecomputeIsPersonneLibre(ctx, organizationID, personneID); err != nil {
		return decision.Liaison, err
	}
	return decision.Liaison, nil
}

// DeactivateLiaison soft-deletes a liaison and recomputes its personne's flag.
// Deactivating an inactive liaison writes nothing but still recomputes.
func (m *Manager) DeactivateLiaison(ctx context.Context, organizationID, liaisonID string) (*models.Liaison, error) {
	ctx, span := tracing.StartSpan(ctx, "liaison.Manager.DeactivateLiaison")
	defer span.End()

	l, err := m.liaisons.GetByID(ctx, organizationID, liaisonID)
	if err != nil {
		return nil, err
	}

	if l.Actif {
		now := m.now()
		changes := store.Document{
			"actif":     false,
			"dateFin":   now,
			"updatedAt": now,
		}
		if err := m.liaisons.UpdateFields(ctx, organizationID, liaisonID, changes); err != nil {
			m.logger.WithContext(ctx).WithError(err).WithField("liaison_id", liaisonID).Error("Failed to deactivate liaison")
			return nil, err
		}
		l.Actif = false
		l.DateFin = &now
		l.UpdatedAt = now
		m.logger.WithContext(ctx).WithField("liaison_id", liaisonID).Info("Deactivated liaison")
		m.emit(ctx, events.LiaisonDeactivated, l)
	}

	if _, err := m.RecomputeIsPersonneLibre(ctx, organizationID, l.PersonneID); err != nil {
		return l, err
	}
	return l, nil
}

// SetPrioritaire marks the liaison of the pair as prioritaire: the active one, else
// the most recently updated inactive one, which stays inactive. Other liaisons of
// the structure keep their flag: several personnes may be prioritaire.
func (m *Manager) SetPrioritaire(ctx context.Context, organizationID, structureID, personneID string) (*models.Liaison, error) {
	ctx, span := tracing.StartSpan(ctx, "liaison.Manager.SetPrioritaire")
	defer span.End()

	pair, err := m.liaisons.FindByPair(ctx, organizationID, structureID, personneID)
	if err != nil {
		return nil, err
	}

	target := pairLiaison(pair)
	if target == nil {
		return nil, apperrors.NewNotFoundError("liaison", structureID+"/"+personneID)
	}
	if target.Prioritaire {
		return target, nil
	}

	now := m.now()
	if err := m.liaisons.UpdateFields(ctx, organizationID, target.ID, store.Document{"prioritaire": true, "updatedAt": now}); err != nil {
		return nil, err
	}
	target.Prioritaire = true
	target.UpdatedAt = now
	m.logger.WithContext(ctx).WithFields(map[string]any{
		"liaison_id": target.ID,
		"actif":      target.Actif,
	}).Info("Set liaison prioritaire")
	return target, nil
}

func pairLiaison(pair []*models.Liaison) *models.Liaison {
	var latest *models.Liaison
	for _, l := range pair {
		if l.Actif {
			return l
		}
		if latest == nil || l.UpdatedAt.After(latest.UpdatedAt) {
			latest = l
		}
	}
	return latest
}

// RecomputeIsPersonneLibre sets isPersonneLibre to "no active liaison" from the
// current liaisons of the personne. The personne is only written when the flag changes.
func (m *Manager) RecomputeIsPersonneLibre(ctx context.Context, organizationID, personneID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "liaison.Manager.RecomputeIsPersonneLibre")
	defer span.End()

	p, err := m.personnes.GetByID(ctx, organizationID, personneID)
	if err != nil {
		return false, err
	}
	liaisons, err := m.liaisons.ListByPersonne(ctx, organizationID, personneID)
	if err != nil {
		return false, err
	}

	libre := IsLibre(liaisons)
	if p.IsPersonneLibre == libre {
		return libre, nil
	}

	if err := m.personnes.UpdateFields(ctx, organizationID, personneID, store.Document{"isPersonneLibre": libre, "updatedAt": m.now()}); err != nil {
		m.logger.WithContext(ctx).WithError(err).WithField("personne_id", personneID).Error("Failed to update isPersonneLibre")
		return libre, err
	}

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"personne_id":       personneID,
		"is_personne_libre": libre,
	}).Debug("Recomputed isPersonneLibre")

	if m.emitter != nil {
		if err := m.emitter.EmitPersonneLibreChanged(ctx, organizationID, personneID, libre); err != nil {
			m.logger.WithContext(ctx).WithError(err).Warn("Personne event not delivered")
		}
	}
	return libre, nil
}

func (m *Manager) emit(ctx context.Context, eventType events.EventType, l *models.Liaison) {
	if m.emitter == nil {
		return
	}
	if err := m.emitter.EmitLiaison(ctx, eventType, l); err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("Liaison event not delivered")
	}
}
