package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
)

func TestStore_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Insert(ctx, "org-a", store.CollectionStructures, store.Document{"id": "s1", "raisonSociale": "Salle A"})
	require.NoError(t, err)
	assert.Equal(t, "s1", id)

	doc, err := s.Get(ctx, "org-a", store.CollectionStructures, "s1")
	require.NoError(t, err)
	assert.Equal(t, "org-a", doc["organizationId"])

	_, err = s.Get(ctx, "org-b", store.CollectionStructures, "s1")
	assert.True(t, apperrors.IsNotFound(err))

	docs, err := s.List(ctx, "org-b", store.CollectionStructures)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = s.List(ctx, "", store.CollectionStructures)
	assert.ErrorIs(t, err, store.ErrMissingOrganization)
}

func TestStore_QueryByEquality(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Insert(ctx, "org", store.CollectionLiaisons, store.Document{"id": "l1", "personneId": "p1", "actif": true})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "org", store.CollectionLiaisons, store.Document{"id": "l2", "personneId": "p1", "actif": false})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "org", store.CollectionLiaisons, store.Document{"id": "l3", "personneId": "p2", "actif": true})
	require.NoError(t, err)

	byPersonne, err := s.QueryByEquality(ctx, "org", store.CollectionLiaisons, "personneId", "p1")
	require.NoError(t, err)
	require.Len(t, byPersonne, 2)
	assert.Equal(t, "l1", byPersonne[0].ID())

	active, err := s.QueryByEquality(ctx, "org", store.CollectionLiaisons, "actif", true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestStore_UpdateFieldsDoesNotLeakReferences(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Insert(ctx, "org", store.CollectionPersonnes, store.Document{"id": "p1", "tags": []string{"jazz"}})
	require.NoError(t, err)

	require.NoError(t, s.UpdateFields(ctx, "org", store.CollectionPersonnes, "p1", store.Document{"isPersonneLibre": true, "organizationId": "other"}))

	doc, err := s.Get(ctx, "org", store.CollectionPersonnes, "p1")
	require.NoError(t, err)
	assert.Equal(t, true, doc["isPersonneLibre"])
	assert.Equal(t, "org", doc["organizationId"])

	doc["tags"].([]any)[0] = "mutated"
	again, err := s.Get(ctx, "org", store.CollectionPersonnes, "p1")
	require.NoError(t, err)
	assert.Equal(t, []any{"jazz"}, again["tags"])

	err = s.UpdateFields(ctx, "org", store.CollectionPersonnes, "missing", store.Document{"x": 1})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_BatchedWriteChunksAndIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	s := New(WithMaxOpsPerBatch(2), WithFault(func(batch int, _ []store.Op) error {
		if batch == 1 {
			return errors.New("transient failure")
		}
		return nil
	}))

	ops := make([]store.Op, 0, 5)
	for i := 0; i < 5; i++ {
		ops = append(ops, store.Op{
			Kind:       store.OpInsert,
			Collection: store.CollectionLiaisons,
			ID:         fmt.Sprintf("l%d", i),
			Fields:     store.Document{"actif": true},
		})
	}

	result, err := s.BatchedWrite(ctx, "org", ops)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 3, result.CommittedOps)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Batch)
	assert.True(t, apperrors.IsStore(result.Failures[0].Err))

	docs, err := s.List(ctx, "org", store.CollectionLiaisons)
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID())
	}
	assert.Equal(t, []string{"l0", "l1", "l4"}, ids)

	committed := result.CommittedIDs(ops, 2)
	assert.True(t, committed["liaisons/l0"])
	assert.False(t, committed["liaisons/l2"])
	assert.Len(t, s.Committed(), 3)
}

func TestStore_BatchedWriteIsAtomicPerChunk(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Insert(ctx, "org", store.CollectionStructures, store.Document{"id": "s1"})
	require.NoError(t, err)

	result, err := s.BatchedWrite(ctx, "org", []store.Op{
		{Kind: store.OpInsert, Collection: store.CollectionStructures, ID: "s2", Fields: store.Document{}},
		{Kind: store.OpInsert, Collection: store.CollectionStructures, ID: "s1", Fields: store.Document{}},
	})
	require.NoError(t, err)
	require.True(t, result.Failed())

	_, err = s.Get(ctx, "org", store.CollectionStructures, "s2")
	assert.True(t, apperrors.IsNotFound(err), "a failed chunk must not leave partial writes")
}

func TestStore_BatchedWriteRejectsInvalidOps(t *testing.T) {
	_, err := New().BatchedWrite(context.Background(), "org", []store.Op{{Kind: "delete", Collection: "x", ID: "1"}})
	assert.Error(t, err)
}
