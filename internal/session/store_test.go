package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/waclient/internal/config"
	"github.com/waclient/internal/model"
)

func TestCurrentUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Store{
		"memory": NewMemory(),
		"file":   NewFile(filepath.Join(t.TempDir(), "nested", "session.json")),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			u, err := LoadUser(ctx, s)
			require.NoError(t, err)
			require.Nil(t, u)

			require.NoError(t, SaveUser(ctx, s, model.User{ID: "1", Username: "alice", Password: "secret"}))
			u, err = LoadUser(ctx, s)
			require.NoError(t, err)
			require.Equal(t, model.ID("1"), u.ID)
			require.Empty(t, u.Password)

			require.NoError(t, ClearUser(ctx, s))
			u, err = LoadUser(ctx, s)
			require.NoError(t, err)
			require.Nil(t, u)
		})
	}
}

func TestFileKeepsBinaryValuesAsStrings(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	f := NewFile(path)
	require.NoError(t, f.Set(ctx, "avatar_1", []byte("data:image/jpeg;base64,AAAA")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"avatar_1":"data:image/jpeg;base64,AAAA"}`, string(raw))

	v, ok, err := NewFile(path).Get(ctx, "avatar_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "data:image/jpeg;base64,AAAA", string(v))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.SessionConfig{Backend: "etcd"})
	require.Error(t, err)

	s, err := Open(context.Background(), config.SessionConfig{Backend: "memory"})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, s)
}
