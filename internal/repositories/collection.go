// Package repositories maps contact models onto the document store.
package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

// collection decodes the documents of one store collection into T.
type collection[T any] struct {
	store  store.Store
	logger ectologger.Logger
	name   string
	decode func(store.Document) (*T, error)
}

func (c *collection[T]) get(ctx context.Context, organizationID, id string) (*T, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories."+c.name+".Get")
	defer span.End()

	doc, err := c.store.Get(ctx, organizationID, c.name, id)
	if err != nil {
		return nil, err
	}
	return c.decode(doc)
}

func (c *collection[T]) list(ctx context.Context, organizationID string) ([]*T, error) {
	out, _, err := c.listAll(ctx, organizationID)
	return out, err
}

// listAll also returns the documents that could not be decoded.
func (c *collection[T]) listAll(ctx context.Context, organizationID string) ([]*T, []models.UndecodableDocument, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories."+c.name+".List")
	defer span.End()

	docs, err := c.store.List(ctx, organizationID, c.name)
	if err != nil {
		return nil, nil, err
	}
	out, skipped := c.decodeAll(ctx, docs)
	return out, skipped, nil
}

func (c *collection[T]) query(ctx context.Context, organizationID, field string, value any) ([]*T, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories."+c.name+".Query")
	defer span.End()

	docs, err := c.store.QueryByEquality(ctx, organizationID, c.name, field, value)
	if err != nil {
		return nil, err
	}
	out, _ := c.decodeAll(ctx, docs)
	return out, nil
}

// decodeAll skips documents that do not fit the model and returns them apart.
// The store is schema-less, a malformed record must not hide the rest of the collection.
func (c *collection[T]) decodeAll(ctx context.Context, docs []store.Document) ([]*T, []models.UndecodableDocument) {
	out := make([]*T, 0, len(docs))
	var skipped []models.UndecodableDocument
	for _, doc := range docs {
		v, err := c.decode(doc)
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"collection": c.name,
				"id":         doc.ID(),
			}).Warn("Skipping malformed document")
			skipped = append(skipped, models.UndecodableDocument{Collection: c.name, ID: doc.ID(), Error: err.Error()})
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}

func (c *collection[T]) insert(ctx context.Context, organizationID, id string, v *T) error {
	ctx, span := tracing.StartSpan(ctx, "repositories."+c.name+".Insert")
	defer span.End()

	doc, err := store.Encode(v)
	if err != nil {
		return err
	}
	doc["id"] = id
	_, err = c.store.Insert(ctx, organizationID, c.name, doc)
	return err
}

func (c *collection[T]) update(ctx context.Context, organizationID, id string, fields store.Document) error {
	ctx, span := tracing.StartSpan(ctx, "repositories."+c.name+".UpdateFields")
	defer span.End()

	return c.store.UpdateFields(ctx, organizationID, c.name, id, fields)
}

func decodeInto[T any](doc store.Document) (*T, error) {
	var v T
	if err := store.Decode(doc, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// lenient coerces the listed fields before decoding.
func lenient[T any](c store.Coercion, decode func(store.Document) (*T, error)) func(store.Document) (*T, error) {
	return func(doc store.Document) (*T, error) {
		return decode(c.Apply(doc))
	}
}
