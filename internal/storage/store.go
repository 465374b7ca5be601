package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Record — один JSON-объект коллекции; Data всегда содержит поле "id", равное ID.
type Record struct {
	ID   string
	Data []byte
}

// RecordStore — хранилище коллекций json-server.
// Реализации: memory.Client (по умолчанию), redis.Client, postgres.Store.
// List возвращает записи в порядке вставки.
type RecordStore interface {
	List(ctx context.Context, collection string) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Insert(ctx context.Context, collection string, rec Record) error
	Replace(ctx context.Context, collection string, rec Record) error
	Delete(ctx context.Context, collection, id string) error
	// NextID выдаёт следующий числовой идентификатор коллекции.
	NextID(ctx context.Context, collection string) (int64, error)
	Close() error
}
