// Package memory is an in-process implementation of the entity store.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

// FaultFunc can fail a batch before it is applied. Used to simulate transient store errors.
type FaultFunc func(batch int, ops []store.Op) error

type Store struct {
	mu             sync.RWMutex
	data           map[string]map[string]map[string]store.Document
	maxOpsPerBatch int
	fault          FaultFunc
	committed      []store.Op
}

type Option func(*Store)

func WithMaxOpsPerBatch(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpsPerBatch = n
		}
	}
}

func WithFault(fn FaultFunc) Option {
	return func(s *Store) {
		s.fault = fn
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		data:           make(map[string]map[string]map[string]store.Document),
		maxOpsPerBatch: store.DefaultMaxOpsPerBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) MaxOpsPerBatch() int {
	return s.maxOpsPerBatch
}

// SetFault replaces the fault hook.
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

// Committed returns every op applied through BatchedWrite, in order.
func (s *Store) Committed() []store.Op {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Op, len(s.committed))
	copy(out, s.committed)
	return out
}

// ResetCommitted clears the committed op log.
func (s *Store) ResetCommitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = nil
}

// Clone deep-copies the store contents into a new store with the same batch size.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := New(WithMaxOpsPerBatch(s.maxOpsPerBatch))
	for org, collections := range s.data {
		for collection, docs := range collections {
			for id, doc := range docs {
				clone.bucket(org, collection)[id] = copyDocument(doc)
			}
		}
	}
	return clone
}

func (s *Store) Get(ctx context.Context, organizationID, collection, id string) (store.Document, error) {
	_, span := tracing.StartSpan(ctx, "memory.Store.Get")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[organizationID][collection][id]
	if !ok {
		return nil, apperrors.NewNotFoundError(collection, id)
	}
	return copyDocument(doc), nil
}

func (s *Store) QueryByEquality(ctx context.Context, organizationID, collection, field string, value any) ([]store.Document, error) {
	_, span := tracing.StartSpan(ctx, "memory.Store.QueryByEquality")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return nil, err
	}

	want := store.Normalize(value)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Document
	for _, doc := range s.data[organizationID][collection] {
		if got, ok := doc[field]; ok && reflect.DeepEqual(got, want) {
			out = append(out, copyDocument(doc))
		}
	}
	sortByID(out)
	return out, nil
}

func (s *Store) List(ctx context.Context, organizationID, collection string) ([]store.Document, error) {
	_, span := tracing.StartSpan(ctx, "memory.Store.List")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.data[organizationID][collection]
	out := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, copyDocument(doc))
	}
	sortByID(out)
	return out, nil
}

func (s *Store) Insert(ctx context.Context, organizationID, collection string, doc store.Document) (string, error) {
	_, span := tracing.StartSpan(ctx, "memory.Store.Insert")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return "", err
	}

	id := doc.ID()
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertLocked(organizationID, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateFields(ctx context.Context, organizationID, collection, id string, fields store.Document) error {
	_, span := tracing.StartSpan(ctx, "memory.Store.UpdateFields")
	defer span.End()

	if err := store.RequireOrganization(organizationID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateLocked(organizationID, collection, id, fields)
}

func (s *Store) BatchedWrite(ctx context.Context, organizationID string, ops []store.Op) (*store.BatchResult, error) {
	_, span := tracing.StartSpan(ctx, "memory.Store.BatchedWrite")
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
		if err := s.applyChunk(organizationID, i, chunk); err != nil {
			result.Failures = append(result.Failures, store.BatchFailure{Batch: i, Ops: chunk, Err: store.BatchError(i, err)})
			continue
		}
		result.CommittedOps += len(chunk)
	}
	return result, nil
}

// applyChunk validates every op first so a failing chunk leaves no partial writes.
func (s *Store) applyChunk(organizationID string, batch int, chunk []store.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fault != nil {
		if err := s.fault(batch, chunk); err != nil {
			return err
		}
	}

	pending := make(map[string]bool, len(chunk))
	for _, op := range chunk {
		key := op.Collection + "/" + op.ID
		_, exists := s.data[organizationID][op.Collection][op.ID]
		switch op.Kind {
		case store.OpInsert:
			if exists || pending[key] {
				return fmt.Errorf("%s/%s: %w", op.Collection, op.ID, store.ErrDuplicateID)
			}
			pending[key] = true
		case store.OpUpdate:
			if !exists && !pending[key] {
				return apperrors.NewNotFoundError(op.Collection, op.ID)
			}
		}
	}

	for _, op := range chunk {
		switch op.Kind {
		case store.OpInsert:
			_ = s.insertLocked(organizationID, op.Collection, op.ID, op.Fields)
		case store.OpUpdate:
			_ = s.updateLocked(organizationID, op.Collection, op.ID, op.Fields)
		}
		s.committed = append(s.committed, op)
	}
	return nil
}

func (s *Store) insertLocked(organizationID, collection, id string, doc store.Document) error {
	bucket := s.bucket(organizationID, collection)
	if _, exists := bucket[id]; exists {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrDuplicateID)
	}
	stored := store.Document{}
	if m, ok := store.Normalize(doc).(map[string]any); ok {
		stored = m
	}
	stored["id"] = id
	stored["organizationId"] = organizationID
	bucket[id] = stored
	return nil
}

func (s *Store) updateLocked(organizationID, collection, id string, fields store.Document) error {
	doc, ok := s.data[organizationID][collection][id]
	if !ok {
		return apperrors.NewNotFoundError(collection, id)
	}
	for k, v := range fields {
		if k == "id" || k == "organizationId" {
			continue
		}
		doc[k] = store.Normalize(v)
	}
	return nil
}

func (s *Store) bucket(organizationID, collection string) map[string]store.Document {
	collections, ok := s.data[organizationID]
	if !ok {
		collections = make(map[string]map[string]store.Document)
		s.data[organizationID] = collections
	}
	bucket, ok := collections[collection]
	if !ok {
		bucket = make(map[string]store.Document)
		collections[collection] = bucket
	}
	return bucket
}

func sortByID(docs []store.Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID() < docs[j].ID() })
}

func copyDocument(doc store.Document) store.Document {
	out := make(store.Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = copyValue(item)
		}
		return out
	case store.Document:
		return copyDocument(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
