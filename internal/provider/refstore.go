package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const refKeyPrefix = "joinref:"

// RedisRefStore keeps join references in Redis. The key includes the user id, so only the
// reference's own user can consume it.
type RedisRefStore struct {
	client *redis.Client
}

// NewRedisRefStore creates a Redis-backed reference store.
func NewRedisRefStore(client *redis.Client) *RedisRefStore {
	return &RedisRefStore{client: client}
}

func refKey(ref string, userID uuid.UUID) string {
	return refKeyPrefix + ref + ":" + userID.String()
}

// Put implements RefStore with SET NX EX.
func (s *RedisRefStore) Put(ctx context.Context, ref string, b Binding, ttl time.Duration) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal binding: %w", err)
	}
	ok, err := s.client.SetNX(ctx, refKey(ref, b.UserID), body, ttl).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return errReferenceTaken
	}
	return nil
}

// Take implements RefStore with GETDEL.
func (s *RedisRefStore) Take(ctx context.Context, ref string, userID uuid.UUID) (*Binding, error) {
	raw, err := s.client.GetDel(ctx, refKey(ref, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getdel: %w", err)
	}
	var b Binding
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("unmarshal binding: %w", err)
	}
	return &b, nil
}
