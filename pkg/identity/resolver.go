package identity

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

// StructureStore is the subset of the structure repository the resolver needs.
// ListAll also returns the stored documents that could not be decoded.
type StructureStore interface {
	ListAll(ctx context.Context, organizationID string) ([]*models.Structure, []models.UndecodableDocument, error)
	Insert(ctx context.Context, organizationID string, s *models.Structure) error
	UpdateFields(ctx context.Context, organizationID, id string, fields store.Document) error
}

type Resolver struct {
	structures StructureStore
	logger     ectologger.Logger
	now        func() time.Time
}

func NewResolver(structures StructureStore, logger ectologger.Logger) *Resolver {
	return &Resolver{
		structures: structures,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the resolver clock.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// FindOrCreateStructure returns the structure matching the candidate, merging the
// candidate's missing fields into it, or creates it. Submitting the same candidate
// twice returns the same id.
func (r *Resolver) FindOrCreateStructure(ctx context.Context, organizationID string, candidate models.StructureCandidate) (*models.Structure, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Resolver.FindOrCreateStructure")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"organization_id": organizationID,
		"raison_sociale":  candidate.RaisonSociale,
	})

	var res *Resolution
	for attempt := 0; ; attempt++ {
		existing, unreadable, err := r.structures.ListAll(ctx, organizationID)
		if err != nil {
			return nil, err
		}

		res, err = Resolve(organizationID, candidate, NewIndex(existing), r.now())
		if err != nil {
			log.WithError(err).Warn("Structure candidate rejected")
			return nil, err
		}
		if !res.Created {
			break
		}
		if len(unreadable) > 0 {
			err := BlockedByUnreadable(candidate.SourceRef, len(unreadable))
			log.WithError(err).Warn("Structure creation blocked")
			return nil, err
		}

		err = r.structures.Insert(ctx, organizationID, res.Structure)
		if err == nil {
			log.WithField("structure_id", res.Structure.ID).Info("Created structure")
			return res.Structure, nil
		}
		// created concurrently under the same identity key: resolve again once
		if errors.Is(err, store.ErrDuplicateID) && attempt == 0 {
			continue
		}
		log.WithError(err).Error("Failed to create structure")
		return nil, err
	}

	if len(res.Changes) > 0 {
		if err := r.structures.UpdateFields(ctx, organizationID, res.Structure.ID, res.Changes); err != nil {
			log.WithError(err).Error("Failed to merge structure fields")
			return nil, err
		}
		log.WithFields(map[string]any{
			"structure_id": res.Structure.ID,
			"matched_by":   string(res.MatchedBy),
			"fields":       len(res.Changes) - 1,
		}).Info("Merged candidate into existing structure")
	}
	return res.Structure, nil
}
