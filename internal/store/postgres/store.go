// Package postgres stores contact documents as tenant-scoped JSONB rows.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/database"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

const table = "documents"

type Store struct {
	db             database.DB
	logger         ectologger.Logger
	maxOpsPerBatch int
	now            func() time.Time
}

func NewStore(db database.DB, logger ectologger.Logger, maxOpsPerBatch int) *Store {
	if maxOpsPerBatch <= 0 {
		maxOpsPerBatch = store.DefaultMaxOpsPerBatch
	}
	return &Store{
		db:             db,
		logger:         logger,
		maxOpsPerBatch: maxOpsPerBatch,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Validate() error {
	if s.db == nil {
		return errors.New("postgres store requires a database")
	}
	return nil
}

func (s *Store) MaxOpsPerBatch() int {
	return s.maxOpsPerBatch
}

func (s *Store) Get(ctx context.Context, organizationID, collection, id string) (store.Document, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.Get")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return nil, err
	}

	sb := database.NewSelectBuilder()
	sb.Select("data")
	sb.From(table)
	sb.Where(
		sb.Equal("organization_id", organizationID),
		sb.Equal("collection", collection),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var data database.JSONB[store.Document]
	if err := s.db.GetContext(ctx, &data, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(collection, id)
		}
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"organization_id": organizationID,
			"collection":      collection,
			"id":              id,
		}).Error("Failed to get document")
		return nil, apperrors.NewStoreError("get", collection, err)
	}
	return data.GetValue(), nil
}

func (s *Store) QueryByEquality(ctx context.Context, organizationID, collection, field string, value any) ([]store.Document, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.QueryByEquality")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return nil, err
	}

	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode equality filter on %s: %w", field, err)
	}

	sb := database.NewSelectBuilder()
	sb.Select("data")
	sb.From(table)
	sb.Where(
		sb.Equal("organization_id", organizationID),
		sb.Equal("collection", collection),
		sb.JSONContains("data", string(filter)),
	)
	sb.OrderBy("id")

	return s.selectDocuments(ctx, "query", collection, sb)
}

func (s *Store) List(ctx context.Context, organizationID, collection string) ([]store.Document, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.List")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return nil, err
	}

	sb := database.NewSelectBuilder()
	sb.Select("data")
	sb.From(table)
	sb.Where(
		sb.Equal("organization_id", organizationID),
		sb.Equal("collection", collection),
	)
	sb.OrderBy("id")

	return s.selectDocuments(ctx, "list", collection, sb)
}

func (s *Store) selectDocuments(ctx context.Context, op, collection string, sb *database.SelectBuilder) ([]store.Document, error) {
	query, args := sb.Build()
	var rows []database.JSONB[store.Document]
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("collection", collection).Errorf("Failed to %s documents", op)
		return nil, apperrors.NewStoreError(op, collection, err)
	}

	out := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.GetValue())
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, organizationID, collection string, doc store.Document) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.Insert")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return "", err
	}

	id := doc.ID()
	if id == "" {
		id = uuid.New().String()
	}

	query, args := s.insertQuery(organizationID, collection, id, doc)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("collection", collection).Error("Failed to insert document")
		return "", apperrors.NewStoreError("insert", collection, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return "", fmt.Errorf("%s/%s: %w", collection, id, store.ErrDuplicateID)
	}
	return id, nil
}

func (s *Store) UpdateFields(ctx context.Context, organizationID, collection, id string, fields store.Document) error {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.UpdateFields")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return err
	}

	query, args, err := s.updateQuery(organizationID, collection, id, fields)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("collection", collection).Error("Failed to update document")
		return apperrors.NewStoreError("update", collection, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewNotFoundError(collection, id)
	}
	return nil
}

// BatchedWrite commits each chunk in its own transaction. A failed chunk is rolled back
// and reported; the following chunks are still attempted.
func (s *Store) BatchedWrite(ctx context.Context, organizationID string, ops []store.Op) (*store.BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.BatchedWrite")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return nil, err
	}
	if err := store.ValidateOps(ops); err != nil {
		return nil, err
	}

	result := &store.BatchResult{}
	for i, chunk := range store.Chunk(ops, s.maxOpsPerBatch) {
		result.Batches++
		if err := s.writeChunk(ctx, organizationID, chunk); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"organization_id": organizationID,
				"batch":           i,
				"ops":             len(chunk),
			}).Error("Batch write failed, batch rolled back")
			result.Failures = append(result.Failures, store.BatchFailure{Batch: i, Ops: chunk, Err: store.BatchError(i, err)})
			continue
		}
		result.CommittedOps += len(chunk)
	}
	return result, nil
}

func (s *Store) writeChunk(ctx context.Context, organizationID string, chunk []store.Op) error {
	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, op := range chunk {
		if err := s.applyOp(txCtx, tx, organizationID, op); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.WithContext(ctx).WithError(rbErr).Error("Failed to roll back batch")
			}
			return err
		}
	}

	return tx.Commit(txCtx)
}

func (s *Store) applyOp(ctx context.Context, tx database.Tx, organizationID string, op store.Op) error {
	var (
		query string
		args  []any
		err   error
	)
	switch op.Kind {
	case store.OpInsert:
		query, args = s.insertQuery(organizationID, op.Collection, op.ID, op.Fields)
	case store.OpUpdate:
		query, args, err = s.updateQuery(organizationID, op.Collection, op.ID, op.Fields)
		if err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		if op.Kind == store.OpInsert {
			return fmt.Errorf("%s/%s: %w", op.Collection, op.ID, store.ErrDuplicateID)
		}
		return apperrors.NewNotFoundError(op.Collection, op.ID)
	}
	return nil
}

func (s *Store) insertQuery(organizationID, collection, id string, doc store.Document) (string, []any) {
	data := make(store.Document, len(doc)+2)
	for k, v := range doc {
		data[k] = v
	}
	data["id"] = id
	data["organizationId"] = organizationID

	now := s.now()
	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("organization_id", "collection", "id", "data", "created_at", "updated_at")
	ib.Values(organizationID, collection, id, database.JSONB[store.Document]{Data: data}, now, now)
	ib.OnConflictDoNothing()
	return ib.Build()
}

func (s *Store) updateQuery(organizationID, collection, id string, fields store.Document) (string, []any, error) {
	patch := make(store.Document, len(fields))
	for k, v := range fields {
		if k == "id" || k == "organizationId" {
			continue
		}
		patch[k] = v
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode update of %s/%s: %w", collection, id, err)
	}

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		fmt.Sprintf("data = data || %s::jsonb", ub.Var(string(patchJSON))),
		ub.Assign("updated_at", s.now()),
	)
	ub.Where(
		ub.Equal("organization_id", organizationID),
		ub.Equal("collection", collection),
		ub.Equal("id", id),
	)
	query, args := ub.Build()
	return query, args, nil
}
