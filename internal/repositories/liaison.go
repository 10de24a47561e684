package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

// LiaisonRepository reads and writes Liaison documents.
type LiaisonRepository struct {
	collection[models.Liaison]
}

func NewLiaisonRepository(s store.Store, logger ectologger.Logger) *LiaisonRepository {
	return &LiaisonRepository{collection[models.Liaison]{
		store:  s,
		logger: logger,
		name:   store.CollectionLiaisons,
		decode: DecodeLiaison,
	}}
}

var liaisonFields = store.Coercion{
	Times: []string{"createdAt", "updatedAt", "dateDebut", "dateFin"},
	Bools: []string{"actif", "prioritaire", "interesse"},
}

// DecodeLiaison reads a liaison document. A document without an actif key is
// active: only an explicit false deactivates a liaison.
func DecodeLiaison(doc store.Document) (*models.Liaison, error) {
	doc = liaisonFields.Apply(doc)
	l, err := decodeInto[models.Liaison](doc)
	if err != nil {
		return nil, err
	}
	if v, ok := doc["actif"]; !ok || v == nil {
		l.Actif = true
	}
	return l, nil
}

func (r *LiaisonRepository) GetByID(ctx context.Context, organizationID, id string) (*models.Liaison, error) {
	return r.get(ctx, organizationID, id)
}

func (r *LiaisonRepository) List(ctx context.Context, organizationID string) ([]*models.Liaison, error) {
	return r.list(ctx, organizationID)
}

func (r *LiaisonRepository) ListByPersonne(ctx context.Context, organizationID, personneID string) ([]*models.Liaison, error) {
	return r.query(ctx, organizationID, "personneId", personneID)
}

func (r *LiaisonRepository) ListByStructure(ctx context.Context, organizationID, structureID string) ([]*models.Liaison, error) {
	return r.query(ctx, organizationID, "structureId", structureID)
}

// FindByPair returns every liaison of the pair. More than one means the pair was duplicated.
func (r *LiaisonRepository) FindByPair(ctx context.Context, organizationID, structureID, personneID string) ([]*models.Liaison, error) {
	byPersonne, err := r.ListByPersonne(ctx, organizationID, personneID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Liaison, 0, 1)
	for _, l := range byPersonne {
		if l.StructureID == structureID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *LiaisonRepository) Insert(ctx context.Context, organizationID string, l *models.Liaison) error {
	l.OrganizationID = organizationID
	return r.insert(ctx, organizationID, l.ID, l)
}

func (r *LiaisonRepository) UpdateFields(ctx context.Context, organizationID, id string, fields store.Document) error {
	return r.update(ctx, organizationID, id, fields)
}
