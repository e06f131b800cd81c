package batchcache

import (
	"fmt"
	"time"
)

// New returns the backend named by backend: "memory" (or empty) or "redis".
func New(backend, addr string, db int, ttl time.Duration) (Cache, error) {
	switch backend {
	case "", "memory":
		return NewMemory(ttl), nil
	case "redis":
		return NewRedis(RedisConfig{Addr: addr, DB: db, TTL: ttl})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
