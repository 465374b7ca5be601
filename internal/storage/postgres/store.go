package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/storage"
)

const recordsPrimaryKey = "records_pkey"

// Scope — *sql.DB или *sql.Tx.
type Scope interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store хранит записи в таблице records (см. migrations/001_records.sql).
type Store struct {
	db     Scope
	closer func() error
}

// New оборачивает db; onClose вызываются после db.Close (например, закрытие пула pgx).
func New(db *sql.DB, onClose ...func()) *Store {
	return &Store{db: db, closer: func() error {
		err := db.Close()
		for _, f := range onClose {
			f()
		}
		return err
	}}
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func (s *Store) List(ctx context.Context, collection string) ([]storage.Record, error) {
	defer logger.DeferLogDuration("records.List", time.Now())()
	query, args, err := sq.Select("id", "data").
		From("records").
		Where(sq.Eq{"collection": collection}).
		OrderBy("position").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("records.List: %w", err)
	}
	defer rows.Close()
	var out []storage.Record
	for rows.Next() {
		var rec storage.Record
		if err := rows.Scan(&rec.ID, &rec.Data); err != nil {
			return nil, fmt.Errorf("records.List scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Record, error) {
	defer logger.DeferLogDuration("records.Get", time.Now())()
	query, args, err := sq.Select("data").
		From("records").
		Where(sq.Eq{"collection": collection, "id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return storage.Record{}, err
	}
	rec := storage.Record{ID: id}
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rec.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Record{}, fmt.Errorf("records.Get: %w", err)
	}
	return rec, nil
}

func (s *Store) Insert(ctx context.Context, collection string, rec storage.Record) error {
	defer logger.DeferLogDuration("records.Insert", time.Now())()
	query, args, err := sq.Insert("records").
		Columns("collection", "id", "data").
		Values(collection, rec.ID, string(rec.Data)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	if constraintName(err) == recordsPrimaryKey {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("records.Insert: %w", err)
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, collection string, rec storage.Record) error {
	defer logger.DeferLogDuration("records.Replace", time.Now())()
	query, args, err := sq.Update("records").
		Set("data", string(rec.Data)).
		Where(sq.Eq{"collection": collection, "id": rec.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, "records.Replace", query, args)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	defer logger.DeferLogDuration("records.Delete", time.Now())()
	query, args, err := sq.Delete("records").
		Where(sq.Eq{"collection": collection, "id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, "records.Delete", query, args)
}

func (s *Store) execOne(ctx context.Context, op, query string, args []any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) NextID(ctx context.Context, collection string) (int64, error) {
	query, args, err := sq.Insert("record_seq").
		Columns("collection", "value").
		Values(collection, 1).
		Suffix("ON CONFLICT (collection) DO UPDATE SET value = record_seq.value + 1 RETURNING value").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("records.NextID: %w", err)
	}
	return n, nil
}
