package session

import (
	"context"

	redisstorage "github.com/waclient/internal/storage/redis"
)

const redisPrefix = "waclient:session:"

type Redis struct {
	cli *redisstorage.Client
}

func NewRedis(cli *redisstorage.Client) *Redis {
	return &Redis{cli: cli}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.cli.GetValue(ctx, redisPrefix+key)
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	return r.cli.SetValue(ctx, redisPrefix+key, val, 0)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.cli.DeleteValue(ctx, redisPrefix+key)
}

func (r *Redis) Close() error { return r.cli.Close() }
