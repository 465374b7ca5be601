// Package session persists the logged-in user and avatar blobs between runs,
// the way a browser client keeps them in localStorage.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/waclient/internal/config"
	"github.com/waclient/internal/model"
	redisstorage "github.com/waclient/internal/storage/redis"
)

const CurrentUserKey = "currentUser"

// Store is a small key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFile(cfg.Path), nil
	case "memory":
		return NewMemory(), nil
	case "redis":
		cli, err := redisstorage.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		return NewRedis(cli), nil
	}
	return nil, fmt.Errorf("session: unknown backend %q", cfg.Backend)
}

// LoadUser returns the persisted current user, or nil when nobody is logged in.
func LoadUser(ctx context.Context, s Store) (*model.User, error) {
	raw, ok, err := s.Get(ctx, CurrentUserKey)
	if err != nil || !ok {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("session: decode current user: %w", err)
	}
	return &u, nil
}

// SaveUser stores u without its password.
func SaveUser(ctx context.Context, s Store, u model.User) error {
	raw, err := json.Marshal(u.Public())
	if err != nil {
		return err
	}
	return s.Set(ctx, CurrentUserKey, raw)
}

func ClearUser(ctx context.Context, s Store) error {
	return s.Delete(ctx, CurrentUserKey)
}
