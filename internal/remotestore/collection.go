package remotestore

import (
	"context"
	"net/http"
	"net/url"

	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/model"
)

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Query is an immutable set of json-server query parameters.
type Query struct {
	values url.Values
}

func (q Query) with(key, value string) Query {
	v := make(url.Values, len(q.values)+1)
	for k, vs := range q.values {
		v[k] = append([]string(nil), vs...)
	}
	v.Add(key, value)
	return Query{values: v}
}

// Where filters on field == value.
func Where(field, value string) Query { return Query{}.Eq(field, value) }

func (q Query) Eq(field, value string) Query   { return q.with(field, value) }
func (q Query) Ne(field, value string) Query   { return q.with(field+"_ne", value) }
func (q Query) Like(field, value string) Query { return q.with(field+"_like", value) }
func (q Query) Gte(field, value string) Query  { return q.with(field+"_gte", value) }
func (q Query) Lte(field, value string) Query  { return q.with(field+"_lte", value) }

// Search is the full-text "q" parameter.
func (q Query) Search(text string) Query { return q.with("q", text) }

func (q Query) Sort(field string, order Order) Query {
	return q.with("_sort", field).with("_order", string(order))
}

func (q Query) Encode() string {
	if len(q.values) == 0 {
		return ""
	}
	return "?" + q.values.Encode()
}

// Collection is the typed CRUD accessor for one REST collection.
type Collection[T any] struct {
	c    *Client
	name string
}

func NewCollection[T any](c *Client, name string) *Collection[T] {
	return &Collection[T]{c: c, name: name}
}

func (col *Collection[T]) Name() string { return col.name }

func (col *Collection[T]) itemPath(id model.ID) string {
	return "/" + col.name + "/" + url.PathEscape(id.String())
}

// List returns the matching records or the transport error.
func (col *Collection[T]) List(ctx context.Context, q Query) ([]T, error) {
	var out []T
	if err := col.c.do(ctx, http.MethodGet, "/"+col.name+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// GetAll is List with read failures logged and replaced by an empty result.
func (col *Collection[T]) GetAll(ctx context.Context, q Query) []T {
	out, err := col.List(ctx, q)
	if err != nil {
		logger.Errorf("remotestore: error fetching %s: %v", col.name, err)
		return []T{}
	}
	return out
}

// Get returns one record; a missing record is a NetworkError matching apperr.ErrNotFound.
func (col *Collection[T]) Get(ctx context.Context, id model.ID) (*T, error) {
	var out T
	if err := col.c.do(ctx, http.MethodGet, col.itemPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByID is Get with failures logged and replaced by nil.
func (col *Collection[T]) GetByID(ctx context.Context, id model.ID) *T {
	out, err := col.Get(ctx, id)
	if err != nil {
		logger.Errorf("remotestore: error fetching %s %s: %v", col.name, id, err)
		return nil
	}
	return out
}

// Create posts rec and returns the stored record with its assigned id.
func (col *Collection[T]) Create(ctx context.Context, rec T) (T, error) {
	var out T
	if err := col.c.do(ctx, http.MethodPost, "/"+col.name, rec, &out); err != nil {
		logger.Errorf("remotestore: error creating %s: %v", col.name, err)
		return out, err
	}
	return out, nil
}

// Update replaces the whole record stored under id.
func (col *Collection[T]) Update(ctx context.Context, id model.ID, rec T) (T, error) {
	var out T
	if err := col.c.do(ctx, http.MethodPut, col.itemPath(id), rec, &out); err != nil {
		logger.Errorf("remotestore: error updating %s %s: %v", col.name, id, err)
		return out, err
	}
	return out, nil
}

func (col *Collection[T]) Delete(ctx context.Context, id model.ID) error {
	if err := col.c.do(ctx, http.MethodDelete, col.itemPath(id), nil, nil); err != nil {
		logger.Errorf("remotestore: error deleting %s %s: %v", col.name, id, err)
		return err
	}
	return nil
}
