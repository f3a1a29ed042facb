// Package session maps verify-session ids to application ids with a bounded
// lifetime. Sessions live in Redis with a TTL, so abandoned verifications
// expire instead of accumulating in process memory.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Store persists verify sessions in Redis
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a session store with the given TTL
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Data is what a verify session carries
type Data struct {
	ApplicationID int    `json:"applicationId"`
	Host          string `json:"host"`
	Username      string `json:"username"`
}

// Create stores a new session and returns its id
func (s *Store) Create(ctx context.Context, data Data) (string, error) {
	id := uuid.NewString()

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := s.rdb.Set(ctx, sessionKey(id), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return id, nil
}

// Get resolves a session id; returns redis.Nil when expired or unknown
func (s *Store) Get(ctx context.Context, id string) (*Data, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		return nil, err
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse session data: %w", err)
	}
	return &data, nil
}

// Touch extends a live session's TTL
func (s *Store) Touch(ctx context.Context, id string) error {
	return s.rdb.Expire(ctx, sessionKey(id), s.ttl).Err()
}

func sessionKey(id string) string {
	return fmt.Sprintf("provision:session:%s", id)
}
