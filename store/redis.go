package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis stores each collection under <prefix><collection>.
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(c Collection) string {
	return r.prefix + string(c)
}

func (r *Redis) Load(ctx context.Context, c Collection) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(c)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, wrap("load", c, err)
	}
	return data, nil
}

func (r *Redis) Save(ctx context.Context, c Collection, data []byte) error {
	return wrap("save", c, r.client.Set(ctx, r.key(c), data, 0).Err())
}

func (r *Redis) Remove(ctx context.Context, c Collection) error {
	return wrap("remove", c, r.client.Del(ctx, r.key(c)).Err())
}
