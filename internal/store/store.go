// Package store defines the tenant-scoped document store contract.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
)

const (
	CollectionStructures     = "structures"
	CollectionPersonnes      = "personnes"
	CollectionLiaisons       = "liaisons"
	CollectionLegacyContacts = "contacts_unified"

	DefaultMaxOpsPerBatch = 400
)

var (
	ErrMissingOrganization = errors.New("organizationId is required")
	ErrDuplicateID         = errors.New("document already exists")
)

// Document is a schema-less record. The "id" and "organizationId" keys are managed by the store.
type Document map[string]any

func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
)

// Op is a single write inside a batch. Insert carries the full document, update a field patch.
type Op struct {
	Kind       OpKind   `json:"kind"`
	Collection string   `json:"collection"`
	ID         string   `json:"id"`
	Fields     Document `json:"fields"`
}

type BatchFailure struct {
	Batch int
	Ops   []Op
	Err   error
}

// BatchResult reports a batched write. Failed batches are rolled back, the others stay committed.
type BatchResult struct {
	Batches      int
	CommittedOps int
	Failures     []BatchFailure
}

func (r *BatchResult) Failed() bool {
	return len(r.Failures) > 0
}

// CommittedIDs lists the ids written by the batches that committed.
func (r *BatchResult) CommittedIDs(ops []Op, size int) map[string]bool {
	failed := make(map[int]bool, len(r.Failures))
	for _, f := range r.Failures {
		failed[f.Batch] = true
	}
	out := make(map[string]bool, len(ops))
	for i, chunk := range Chunk(ops, size) {
		if failed[i] {
			continue
		}
		for _, op := range chunk {
			out[op.Collection+"/"+op.ID] = true
		}
	}
	return out
}

// Store is the entity store contract. Every call is scoped to one organization.
type Store interface {
	// Get returns apperrors.NotFoundError when the document does not exist in the organization.
	Get(ctx context.Context, organizationID, collection, id string) (Document, error)
	QueryByEquality(ctx context.Context, organizationID, collection, field string, value any) ([]Document, error)
	List(ctx context.Context, organizationID, collection string) ([]Document, error)
	Insert(ctx context.Context, organizationID, collection string, doc Document) (string, error)
	UpdateFields(ctx context.Context, organizationID, collection, id string, fields Document) error
	// BatchedWrite commits ops in atomic chunks of MaxOpsPerBatch.
	BatchedWrite(ctx context.Context, organizationID string, ops []Op) (*BatchResult, error)
	MaxOpsPerBatch() int
}

// Chunk splits ops into consecutive slices of at most size ops.
func Chunk(ops []Op, size int) [][]Op {
	if size <= 0 {
		size = DefaultMaxOpsPerBatch
	}
	chunks := make([][]Op, 0, (len(ops)+size-1)/size)
	for start := 0; start < len(ops); start += size {
		end := start + size
		if end > len(ops) {
			end = len(ops)
		}
		chunks = append(chunks, ops[start:end])
	}
	return chunks
}

func RequireOrganization(organizationID string) error {
	if organizationID == "" {
		return ErrMissingOrganization
	}
	return nil
}

// ValidateOps rejects ops that cannot be applied.
func ValidateOps(ops []Op) error {
	for i, op := range ops {
		if op.Collection == "" || op.ID == "" {
			return fmt.Errorf("op %d: collection and id are required", i)
		}
		if op.Kind != OpInsert && op.Kind != OpUpdate {
			return fmt.Errorf("op %d: unknown kind %q", i, op.Kind)
		}
	}
	return nil
}

// BatchError wraps a failed chunk as a StoreError tagged with its index.
func BatchError(batch int, err error) error {
	storeErr := apperrors.NewStoreError("batch", "", err)
	storeErr.Batch = batch
	return storeErr
}

// Encode converts a model into its document form.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode fills v from a document.
func Decode(doc Document, v any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Normalize converts typed values to their JSON representation so documents compare by content.
func Normalize(value any) any {
	b, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return value
	}
	return out
}

// NewInsertOp encodes v as the full document of an insert.
func NewInsertOp(collection, id string, v any) (Op, error) {
	doc, err := Encode(v)
	if err != nil {
		return Op{}, fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	doc["id"] = id
	return Op{Kind: OpInsert, Collection: collection, ID: id, Fields: doc}, nil
}

// NewUpdateOp patches the given fields of an existing document.
func NewUpdateOp(collection, id string, fields Document) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Fields: fields}
}
