package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

var structureFields = store.Coercion{
	Times: []string{"createdAt", "updatedAt"},
	Bools: []string{"isClient"},
}

// StructureRepository reads and writes Structure documents.
type StructureRepository struct {
	collection[models.Structure]
}

func NewStructureRepository(s store.Store, logger ectologger.Logger) *StructureRepository {
	return &StructureRepository{collection[models.Structure]{
		store:  s,
		logger: logger,
		name:   store.CollectionStructures,
		decode: lenient(structureFields, decodeInto[models.Structure]),
	}}
}

// GetByID returns apperrors.NotFoundError when the structure does not exist.
func (r *StructureRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Structure, error) {
	return r.get(ctx, organizationID, id)
}

func (r *StructureRepository) List(ctx context.Context, organizationID string) ([]*models.Structure, error) {
	return r.list(ctx, organizationID)
}

// ListAll also returns the documents that could not be decoded.
func (r *StructureRepository) ListAll(ctx context.Context, organizationID string) ([]*models.Structure, []models.UndecodableDocument, error) {
	return r.listAll(ctx, organizationID)
}

// FindBySiret matches the siret exactly as stored.
func (r *StructureRepository) FindBySiret(ctx context.Context, organizationID, siret string) ([]*models.Structure, error) {
	return r.query(ctx, organizationID, "siret", siret)
}

func (r *StructureRepository) Insert(ctx context.Context, organizationID string, s *models.Structure) error {
	s.OrganizationID = organizationID
	return r.insert(ctx, organizationID, s.ID, s)
}

func (r *StructureRepository) UpdateFields(ctx context.Context, organizationID, id string, fields store.Document) error {
	return r.update(ctx, organizationID, id, fields)
}
