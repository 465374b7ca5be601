package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/waclient/internal/storage"
)

type collection struct {
	order []string
	items map[string][]byte
	seq   int64
}

// Client хранит коллекции в памяти процесса (режим по умолчанию и тесты).
type Client struct {
	mu   sync.RWMutex
	cols map[string]*collection
}

func New() *Client {
	return &Client{cols: make(map[string]*collection)}
}

func (c *Client) Close() error { return nil }

func (c *Client) col(name string) *collection {
	col, ok := c.cols[name]
	if !ok {
		col = &collection{items: make(map[string][]byte)}
		c.cols[name] = col
	}
	return col
}

func (c *Client) List(ctx context.Context, name string) ([]storage.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.cols[name]
	if !ok {
		return nil, nil
	}
	out := make([]storage.Record, 0, len(col.order))
	for _, id := range col.order {
		out = append(out, storage.Record{ID: id, Data: col.items[id]})
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, name, id string) (storage.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if col, ok := c.cols[name]; ok {
		if data, ok := col.items[id]; ok {
			return storage.Record{ID: id, Data: data}, nil
		}
	}
	return storage.Record{}, storage.ErrNotFound
}

func (c *Client) Insert(ctx context.Context, name string, rec storage.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	col := c.col(name)
	if _, ok := col.items[rec.ID]; ok {
		return storage.ErrConflict
	}
	col.items[rec.ID] = append([]byte(nil), rec.Data...)
	col.order = append(col.order, rec.ID)
	if n, err := strconv.ParseInt(rec.ID, 10, 64); err == nil && n > col.seq {
		col.seq = n
	}
	return nil
}

func (c *Client) Replace(ctx context.Context, name string, rec storage.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.cols[name]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := col.items[rec.ID]; !ok {
		return storage.ErrNotFound
	}
	col.items[rec.ID] = append([]byte(nil), rec.Data...)
	return nil
}

func (c *Client) Delete(ctx context.Context, name, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.cols[name]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := col.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(col.items, id)
	for i, v := range col.order {
		if v == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Client) NextID(ctx context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col := c.col(name)
	col.seq++
	return col.seq, nil
}
