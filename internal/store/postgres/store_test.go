package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/database"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/logging"
)

func newTestStore(t *testing.T, maxOps int) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.Discard()
	s := NewStore(database.NewDatabaseInstance(sqlx.NewDb(db, "postgres"), logger), logger, maxOps)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestStore_Get(t *testing.T) {
	s, mock := newTestStore(t, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM documents WHERE")).
		WithArgs("org", store.CollectionStructures, "s1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"s1","raisonSociale":"Festival Test"}`)))

	doc, err := s.Get(context.Background(), "org", store.CollectionStructures, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Festival Test", doc["raisonSociale"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNotFound(t *testing.T) {
	s, mock := newTestStore(t, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM documents WHERE")).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := s.Get(context.Background(), "org", store.CollectionPersonnes, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_QueryByEqualityUsesContainment(t *testing.T) {
	s, mock := newTestStore(t, 0)

	mock.ExpectQuery(regexp.QuoteMeta("data @> $3::jsonb")).
		WithArgs("org", store.CollectionLiaisons, `{"personneId":"p1"}`).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"l1","personneId":"p1"}`)).
			AddRow([]byte(`{"id":"l2","personneId":"p1"}`)))

	docs, err := s.QueryByEquality(context.Background(), "org", store.CollectionLiaisons, "personneId", "p1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "l2", docs[1].ID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRequiresOrganization(t *testing.T) {
	s, _ := newTestStore(t, 0)

	_, err := s.List(context.Background(), "", store.CollectionStructures)
	assert.ErrorIs(t, err, store.ErrMissingOrganization)
}

func TestStore_InsertDuplicate(t *testing.T) {
	s, mock := newTestStore(t, 0)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.Insert(context.Background(), "org", store.CollectionStructures, store.Document{"id": "s1"})
	assert.ErrorIs(t, err, store.ErrDuplicateID)
}

func TestStore_UpdateFieldsMergesPatch(t *testing.T) {
	s, mock := newTestStore(t, 0)

	mock.ExpectExec(regexp.QuoteMeta("data = data || $1::jsonb")).
		WithArgs(`{"isPersonneLibre":false}`, sqlmock.AnyArg(), "org", store.CollectionPersonnes, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateFields(context.Background(), "org", store.CollectionPersonnes, "p1", store.Document{
		"isPersonneLibre": false,
		"id":              "ignored",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_BatchedWriteRollsBackFailedChunk(t *testing.T) {
	s, mock := newTestStore(t, 2)

	ops := []store.Op{
		{Kind: store.OpInsert, Collection: store.CollectionLiaisons, ID: "l1", Fields: store.Document{"actif": true}},
		{Kind: store.OpInsert, Collection: store.CollectionLiaisons, ID: "l2", Fields: store.Document{"actif": true}},
		{Kind: store.OpUpdate, Collection: store.CollectionPersonnes, ID: "p1", Fields: store.Document{"isPersonneLibre": false}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := s.BatchedWrite(context.Background(), "org", ops)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, 1, result.CommittedOps)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 0, result.Failures[0].Batch)

	var storeErr *apperrors.StoreError
	require.ErrorAs(t, result.Failures[0].Err, &storeErr)
	assert.Equal(t, 0, storeErr.Batch)

	committed := result.CommittedIDs(ops, s.MaxOpsPerBatch())
	assert.True(t, committed["personnes/p1"])
	assert.False(t, committed["liaisons/l1"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_BatchedWriteMissingUpdateTargetFailsChunk(t *testing.T) {
	s, mock := newTestStore(t, 0)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	result, err := s.BatchedWrite(context.Background(), "org", []store.Op{
		{Kind: store.OpUpdate, Collection: store.CollectionPersonnes, ID: "ghost", Fields: store.Document{"nom": "X"}},
	})
	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.True(t, apperrors.IsNotFound(result.Failures[0].Err))
}
