package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/transpool/internal/ingest"
)

const (
	leaderboardKey = "transpool:drivers:earnings"
	seenTTL        = 24 * time.Hour
)

// StatsUpdater defines the small subset of redis operations we need for tests and production.
type StatsUpdater interface {
	// ApplyMatch adds totals to each driver's stats and marks eventID seen in
	// one transaction. For an event already applied it changes nothing and
	// reports false.
	ApplyMatch(ctx context.Context, eventID string, totals map[string]int64, ttl time.Duration) (bool, error)
}

type redisAdapter struct{ c *redis.Client }

// ApplyMatch watches the seen marker so two consumers racing on one event
// cannot both apply it; the loser's EXEC fails and its retry sees the marker.
func (r *redisAdapter) ApplyMatch(ctx context.Context, eventID string, totals map[string]int64, ttl time.Duration) (bool, error) {
	seen := seenKey(eventID)
	fresh := false
	err := r.c.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, seen).Result()
		if err != nil || n > 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, seen, 1, ttl)
			for driverID, earned := range totals {
				key := statsKey(driverID)
				p.HIncrBy(ctx, key, "bookings", 1)
				p.HIncrBy(ctx, key, "earned", earned)
				p.ZIncrBy(ctx, leaderboardKey, float64(earned), driverID)
			}
			return nil
		})
		fresh = err == nil
		return err
	}, seen)
	return fresh, err
}

func seenKey(eventID string) string   { return "transpool:events:" + eventID }
func statsKey(driverID string) string { return "transpool:driver:stats:" + driverID }

// driverTotals sums, per driver, the leg prices of one match.
func driverTotals(ev *ingest.MatchEvent) map[string]int64 {
	out := make(map[string]int64)
	for _, leg := range ev.Match.Route {
		out[leg.DriverID] += int64(leg.Price)
	}
	return out
}

// updateRedisWithRetry projects one match event into per-driver stats,
// retrying the whole event with backoff. Redelivered events are skipped.
func updateRedisWithRetry(ctx context.Context, rc StatsUpdater, ev *ingest.MatchEvent, attempts int, delay time.Duration) (bool, error) {
	totals := driverTotals(ev)
	wait := delay
	var err error
	for i := 0; i < attempts; i++ {
		var fresh bool
		fresh, err = rc.ApplyMatch(ctx, ev.EventID, totals, seenTTL)
		if err == nil {
			return fresh, nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return false, err
}
