package query

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/metrics"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

type DatasetLoader interface {
	LoadDataset(ctx context.Context, organizationID string) (*models.Dataset, error)
}

// StatsCache keeps computed statistics per organization.
type StatsCache interface {
	GetStatistics(ctx context.Context, organizationID string) (*models.Statistics, bool, error)
	SetStatistics(ctx context.Context, organizationID string, stats *models.Statistics) error
	InvalidateStatistics(ctx context.Context, organizationID string) error
}

// Facade serves the relational read side from a full organization read.
type Facade struct {
	loader DatasetLoader
	cache  StatsCache
	logger ectologger.Logger
}

func NewFacade(loader DatasetLoader, logger ectologger.Logger) *Facade {
	return &Facade{loader: loader, logger: logger}
}

func (f *Facade) WithCache(cache StatsCache) *Facade {
	f.cache = cache
	return f
}

func (f *Facade) GetStructuresWithPersonnes(ctx context.Context, organizationID string, filters models.StructureFilters) ([]models.StructureWithPersonnes, error) {
	ctx, span := tracing.StartSpan(ctx, "query.Facade.GetStructuresWithPersonnes")
	defer span.End()

	ds, err := f.loader.LoadDataset(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return StructuresWithPersonnes(ds, filters), nil
}

func (f *Facade) GetPersonnesLibres(ctx context.Context, organizationID string, filters models.PersonneFilters) ([]*models.Personne, error) {
	ctx, span := tracing.StartSpan(ctx, "query.Facade.GetPersonnesLibres")
	defer span.End()

	ds, err := f.loader.LoadDataset(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return PersonnesLibres(ds, filters), nil
}

func (f *Facade) GetPersonneWithStructures(ctx context.Context, organizationID, personneID string) (*models.PersonneWithStructures, error) {
	ctx, span := tracing.StartSpan(ctx, "query.Facade.GetPersonneWithStructures")
	defer span.End()

	ds, err := f.loader.LoadDataset(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return PersonneWithStructures(ds, personneID)
}

// Statistics returns the cached statistics when present. Cache failures fall
// back to computing them.
func (f *Facade) Statistics(ctx context.Context, organizationID string) (*models.Statistics, error) {
	ctx, span := tracing.StartSpan(ctx, "query.Facade.Statistics")
	defer span.End()

	if f.cache != nil {
		cached, ok, err := f.cache.GetStatistics(ctx, organizationID)
		switch {
		case err != nil:
			metrics.RecordStatisticsCache("error")
			f.logger.WithContext(ctx).WithError(err).Warn("Statistics cache read failed")
		case ok:
			metrics.RecordStatisticsCache("hit")
			return cached, nil
		default:
			metrics.RecordStatisticsCache("miss")
		}
	}

	ds, err := f.loader.LoadDataset(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	stats := ComputeStatistics(ds)

	if f.cache != nil {
		if err := f.cache.SetStatistics(ctx, organizationID, &stats); err != nil {
			f.logger.WithContext(ctx).WithError(err).Warn("Statistics cache write failed")
		}
	}
	return &stats, nil
}

// InvalidateStatistics drops the cached statistics of an organization.
func (f *Facade) InvalidateStatistics(ctx context.Context, organizationID string) error {
	if f.cache == nil {
		return nil
	}
	return f.cache.InvalidateStatistics(ctx, organizationID)
}
