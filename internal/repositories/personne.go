package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

var personneFields = store.Coercion{
	Times: []string{"createdAt", "updatedAt"},
	Bools: []string{"isPersonneLibre"},
}

// PersonneRepository reads and writes Personne documents.
type PersonneRepository struct {
	collection[models.Personne]
}

func NewPersonneRepository(s store.Store, logger ectologger.Logger) *PersonneRepository {
	return &PersonneRepository{collection[models.Personne]{
		store:  s,
		logger: logger,
		name:   store.CollectionPersonnes,
		decode: lenient(personneFields, decodeInto[models.Personne]),
	}}
}

func (r *PersonneRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Personne, error) {
	return r.get(ctx, organizationID, id)
}

func (r *PersonneRepository) List(ctx context.Context, organizationID string) ([]*models.Personne, error) {
	return r.list(ctx, organizationID)
}

// ListLibres returns the personnes whose cached flag says they are unattached.
func (r *PersonneRepository) ListLibres(ctx context.Context, organizationID string) ([]*models.Personne, error) {
	return r.query(ctx, organizationID, "isPersonneLibre", true)
}

func (r *PersonneRepository) Insert(ctx context.Context, organizationID string, p *models.Personne) error {
	p.OrganizationID = organizationID
	return r.insert(ctx, organizationID, p.ID, p)
}

func (r *PersonneRepository) UpdateFields(ctx context.Context, organizationID, id string, fields store.Document) error {
	return r.update(ctx, organizationID, id, fields)
}
