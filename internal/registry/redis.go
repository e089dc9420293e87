// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "voiceagent:call:"

const (
	redisStateAccepting = "accepting"
	redisStateAccepted  = "accepted"
	redisStateFailed    = "accept_failed"
	redisStateFinished  = "finished"
)

// Redis is a Registry backed by a shared Redis instance, for deployments
// where webhook deliveries may land on different replicas. SET NX provides
// the atomic check-and-set; the TTL doubles as eviction.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Registry = (*Redis)(nil)

// NewRedis creates a Redis-backed registry.
func NewRedis(addr string, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Ping verifies connectivity, for startup checks and readiness probes.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) TryBeginAccept(ctx context.Context, callID string) (Decision, error) {
	key := redisKeyPrefix + callID

	// Two attempts cover the race where the entry expires between the failed
	// SET NX and the GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, key, redisStateAccepting, r.ttl).Result()
		if err != nil {
			return AlreadyInFlight, fmt.Errorf("registry setnx: %w", err)
		}
		if ok {
			return Proceed, nil
		}

		state, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return AlreadyInFlight, fmt.Errorf("registry get: %w", err)
		}

		switch state {
		case redisStateAccepting:
			return AlreadyInFlight, nil
		case redisStateFailed:
			return AlreadyFailed, nil
		default:
			return AlreadyAccepted, nil
		}
	}
	return AlreadyInFlight, nil
}

func (r *Redis) MarkAccepted(ctx context.Context, callID string) error {
	return r.setState(ctx, callID, redisStateAccepted)
}

func (r *Redis) MarkAcceptFailed(ctx context.Context, callID string) error {
	return r.setState(ctx, callID, redisStateFailed)
}

func (r *Redis) Finish(ctx context.Context, callID string) error {
	return r.setState(ctx, callID, redisStateFinished)
}

func (r *Redis) setState(ctx context.Context, callID, state string) error {
	err := r.client.Set(ctx, redisKeyPrefix+callID, state, redis.KeepTTL).Err()
	if err != nil {
		return fmt.Errorf("registry set %s: %w", state, err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
