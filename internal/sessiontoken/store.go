// Package sessiontoken issues and consumes the single-use tokens that let an
// admitted participant open the signaling websocket. Tokens live in Redis
// with a short TTL and are deleted on first use, so a replayed or expired
// token never upgrades a connection.
package sessiontoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session-token:"

// ErrInvalid is returned for unknown, expired or already-used tokens.
var ErrInvalid = errors.New("invalid session token")

// Store issues and consumes single-use session tokens backed by Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a token store. ttl bounds how long an issued token stays
// redeemable.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

// Issue creates a fresh token bound to (session, user).
func (s *Store) Issue(ctx context.Context, sessionID, userID uuid.UUID) (string, error) {
	token := uuid.New().String()
	value := sessionID.String() + ":" + userID.String()
	ok, err := s.client.SetNX(ctx, keyPrefix+token, value, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("store token: key collision")
	}
	return token, nil
}

// Consume redeems a token exactly once, returning the bound session and user.
func (s *Store) Consume(ctx context.Context, token string) (sessionID, userID uuid.UUID, err error) {
	value, err := s.client.GetDel(ctx, keyPrefix+token).Result()
	if err == redis.Nil {
		return uuid.Nil, uuid.Nil, ErrInvalid
	}
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("consume token: %w", err)
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return uuid.Nil, uuid.Nil, ErrInvalid
	}
	sessionID, err = uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalid
	}
	userID, err = uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalid
	}
	return sessionID, userID, nil
}
