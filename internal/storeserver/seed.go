package storeserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type SeedOptions struct {
	// HashPasswords заменяет открытые пароли пользователей bcrypt-хешами.
	HashPasswords bool
	BcryptCost    int
}

// Seed загружает файл в формате db.json json-server: {"users":[...], "messages":[...]}.
// Существующие записи с теми же id перезаписываются.
func Seed(ctx context.Context, store storage.RecordStore, data []byte, opts SeedOptions) error {
	var p fastjson.Parser
	root, err := p.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("seed: parse: %w", err)
	}
	obj, err := root.Object()
	if err != nil {
		return fmt.Errorf("seed: top level must be an object: %w", err)
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	var a fastjson.Arena
	var firstErr error
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if firstErr != nil {
			return
		}
		name := string(key)
		items, err := v.Array()
		if err != nil {
			logger.Warnf("seed: %s is not an array, skipped", name)
			return
		}
		for _, it := range items {
			if err := seedRecord(ctx, store, &a, name, it, opts); err != nil {
				firstErr = err
				return
			}
		}
		logger.Infof("seed: %s: %d records", name, len(items))
	})
	return firstErr
}

func seedRecord(ctx context.Context, store storage.RecordStore, a *fastjson.Arena, name string, it *fastjson.Value, opts SeedOptions) error {
	if it.Type() != fastjson.TypeObject {
		return fmt.Errorf("seed: %s: record must be an object", name)
	}
	var id string
	if idv := it.Get("id"); idv != nil && idv.Type() != fastjson.TypeNull {
		id = textOf(idv)
	} else {
		n, err := store.NextID(ctx, name)
		if err != nil {
			return fmt.Errorf("seed: %s: next id: %w", name, err)
		}
		id = strconv.FormatInt(n, 10)
		it.Set("id", a.NewNumberString(id))
	}
	if name == "users" && opts.HashPasswords {
		if pw := string(it.GetStringBytes("password")); pw != "" && !strings.HasPrefix(pw, "$2") {
			hash, err := bcrypt.GenerateFromPassword([]byte(pw), opts.BcryptCost)
			if err != nil {
				return fmt.Errorf("seed: hash password of user %s: %w", id, err)
			}
			it.Set("password", a.NewString(string(hash)))
		}
	}
	rec := storage.Record{ID: id, Data: it.MarshalTo(nil)}
	err := store.Insert(ctx, name, rec)
	if errors.Is(err, storage.ErrConflict) {
		err = store.Replace(ctx, name, rec)
	}
	if err != nil {
		return fmt.Errorf("seed: %s %s: %w", name, id, err)
	}
	return nil
}
