package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redislib "github.com/redis/go-redis/v9"
)

type sessionStore interface {
	Get(ctx context.Context, key string) (string, error)
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Checker looks up access sessions written by the identity service.
type Checker struct {
	store sessionStore
	keyer sessionKeyer
}

// RedisClient is satisfied by pkg/redis.Client.
type RedisClient interface {
	sessionStore
	sessionKeyer
}

// NewChecker builds a session checker over the shared redis client.
func NewChecker(client RedisClient) (*Checker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Checker{store: client, keyer: client}, nil
}

// HasSession reports whether the access id (jti) still maps to a live session.
func (c *Checker) HasSession(ctx context.Context, accessID string) (bool, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return false, nil
	}
	value, err := c.store.Get(ctx, c.keyer.AccessSessionKey(accessID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return value != "", nil
}
