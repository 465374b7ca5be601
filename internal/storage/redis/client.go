package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/waclient/internal/storage"
)

// Ключи: records:{collection} (hash id → JSON), order:{collection} (zset по порядку вставки),
// seq:{collection} и pos:{collection} — счётчики.
type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) List(ctx context.Context, collection string) ([]storage.Record, error) {
	ids, err := c.cli.ZRange(ctx, "order:"+collection, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := c.cli.HMGet(ctx, "records:"+collection, ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]storage.Record, 0, len(ids))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, storage.Record{ID: ids[i], Data: []byte(s)})
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, collection, id string) (storage.Record, error) {
	val, err := c.cli.HGet(ctx, "records:"+collection, id).Result()
	if errors.Is(err, redis.Nil) {
		return storage.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Record{}, err
	}
	return storage.Record{ID: id, Data: []byte(val)}, nil
}

func (c *Client) Insert(ctx context.Context, collection string, rec storage.Record) error {
	ok, err := c.cli.HSetNX(ctx, "records:"+collection, rec.ID, rec.Data).Result()
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrConflict
	}
	pos, err := c.cli.Incr(ctx, "pos:"+collection).Result()
	if err != nil {
		return err
	}
	return c.cli.ZAdd(ctx, "order:"+collection, redis.Z{Score: float64(pos), Member: rec.ID}).Err()
}

func (c *Client) Replace(ctx context.Context, collection string, rec storage.Record) error {
	exists, err := c.cli.HExists(ctx, "records:"+collection, rec.ID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	return c.cli.HSet(ctx, "records:"+collection, rec.ID, rec.Data).Err()
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	n, err := c.cli.HDel(ctx, "records:"+collection, id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return c.cli.ZRem(ctx, "order:"+collection, id).Err()
}

func (c *Client) NextID(ctx context.Context, collection string) (int64, error) {
	return c.cli.Incr(ctx, "seq:"+collection).Result()
}

// Простое хранилище ключ-значение для сессии клиента (currentUser, аватары).

func (c *Client) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.cli.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *Client) SetValue(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.cli.Set(ctx, key, val, ttl).Err()
}

func (c *Client) DeleteValue(ctx context.Context, key string) error {
	return c.cli.Del(ctx, key).Err()
}

// FlushDB очищает текущую БД Redis (сброс данных при -seed).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
