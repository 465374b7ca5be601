package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File keeps all keys in one JSON object on disk. Writes go through a temp
// file and a rename so a crash never leaves a truncated session.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	vals := map[string]json.RawMessage{}
	if len(data) == 0 {
		return vals, nil
	}
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, fmt.Errorf("session file %s: %w", f.path, err)
	}
	return vals, nil
}

func (f *File) save(vals map[string]json.RawMessage) error {
	data, err := json.Marshal(vals)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *File) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		return nil, false, err
	}
	raw, ok := vals[key]
	if !ok {
		return nil, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s), true, nil
	}
	return raw, true, nil
}

// Set stores JSON values as-is so the file stays readable; anything else is kept as a string.
func (f *File) Set(ctx context.Context, key string, val []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		return err
	}
	if json.Valid(val) && len(val) > 0 && (val[0] == '{' || val[0] == '[') {
		vals[key] = append(json.RawMessage(nil), val...)
	} else {
		enc, err := json.Marshal(string(val))
		if err != nil {
			return err
		}
		vals[key] = enc
	}
	return f.save(vals)
}

func (f *File) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := vals[key]; !ok {
		return nil
	}
	delete(vals, key)
	return f.save(vals)
}
