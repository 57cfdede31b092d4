package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

var _ pubsub.Store = (*ListStore)(nil)

// ListStore implements pubsub.Store on Redis lists and string keys.
// Queues map to RPUSH/LRANGE/LTRIM and the listener map is a plain GET/SET.
type ListStore struct {
	client redis.UniversalClient
}

// NewListStore wraps an existing client. The client's lifecycle stays with the caller.
func NewListStore(client redis.UniversalClient) (*ListStore, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	return &ListStore{client: client}, nil
}

func (s *ListStore) Append(ctx context.Context, key string, value []byte) error {
	return s.client.RPush(ctx, key, value).Err()
}

func (s *ListStore) ReadRange(ctx context.Context, key string, start, end int64) ([][]byte, error) {
	vals, err := s.client.LRange(ctx, key, start, end).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// Trim keeps everything after the first count elements. Redis removes the
// key once the list is empty.
func (s *ListStore) Trim(ctx context.Context, key string, count int64) error {
	if count <= 0 {
		return nil
	}
	return s.client.LTrim(ctx, key, count, -1).Err()
}

func (s *ListStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (s *ListStore) SetBlob(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *ListStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
