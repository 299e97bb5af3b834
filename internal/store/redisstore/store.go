package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const noncePrefix = "chat_nonce:"

// Store keeps widget nonces in Redis. A nonce is bound to one chat id
// and stays valid until its TTL runs out, so the widget can reuse it
// across polls.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (s *Store) IssueNonce(ctx context.Context, chatID string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	if err := s.rdb.Set(ctx, noncePrefix+token, chatID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) CheckNonce(ctx context.Context, token, chatID string) (bool, error) {
	val, err := s.rdb.Get(ctx, noncePrefix+token).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == chatID, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
