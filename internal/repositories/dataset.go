package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

// Repositories groups the three contact repositories over one store.
type Repositories struct {
	Store      store.Store
	Structures *StructureRepository
	Personnes  *PersonneRepository
	Liaisons   *LiaisonRepository
}

func New(s store.Store, logger ectologger.Logger) *Repositories {
	return &Repositories{
		Store:      s,
		Structures: NewStructureRepository(s, logger),
		Personnes:  NewPersonneRepository(s, logger),
		Liaisons:   NewLiaisonRepository(s, logger),
	}
}

// LoadDataset reads every structure, personne and liaison of the organization.
// Documents that cannot be decoded are listed in Dataset.Undecodable.
func (r *Repositories) LoadDataset(ctx context.Context, organizationID string) (*models.Dataset, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.LoadDataset")
	defer span.End()

	structures, badStructures, err := r.Structures.listAll(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	personnes, badPersonnes, err := r.Personnes.listAll(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	liaisons, badLiaisons, err := r.Liaisons.listAll(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	undecodable := append(append(badStructures, badPersonnes...), badLiaisons...)
	return &models.Dataset{
		OrganizationID: organizationID,
		Structures:     structures,
		Personnes:      personnes,
		Liaisons:       liaisons,
		Undecodable:    undecodable,
	}, nil
}
