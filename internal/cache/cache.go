// Package cache holds derived read models such as dashboard stats. Entries
// are disposable: every writer invalidates, and readers fall back to the
// database on a miss or any cache error.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr atomically increments the integer at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
}

// Stats entries are keyed by a per-user generation. Writers bump the
// generation after commit, so a reader that computed stats before the commit
// can only store them under a generation nobody reads anymore.

// StatsVersionKey holds the current stats generation of a user.
func StatsVersionKey(userID string) string {
	return "stats:ver:" + userID
}

// StatsKey is the cache key of a user's dashboard stats at a generation.
func StatsKey(userID string, version int64) string {
	return fmt.Sprintf("stats:%s:%d", userID, version)
}

// StatsVersion returns the user's current stats generation, 0 when unset.
func StatsVersion(ctx context.Context, c Cache, userID string) (int64, error) {
	var version int64
	err := c.Get(ctx, StatsVersionKey(userID), &version)
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// InvalidateStats moves the user to a new stats generation.
func InvalidateStats(ctx context.Context, c Cache, userID string) error {
	_, err := c.Incr(ctx, StatsVersionKey(userID))
	return err
}

// Noop is used when no Redis address is configured.
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) error { return ErrMiss }

func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (Noop) Delete(context.Context, ...string) error { return nil }

func (Noop) Incr(context.Context, string) (int64, error) { return 0, nil }

func (Noop) Ping(context.Context) error { return nil }
