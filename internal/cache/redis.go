package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/transpool/internal/schedule"
)

// Redis implements Candidates on a Redis string per request, expiring
// after ttl so abandoned searches do not pile up.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr, password string, ttl time.Duration) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Redis{client: c, ttl: ttl}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Put(ctx context.Context, requestID int, routes [][]schedule.OccurrenceKey) error {
	b, err := encodeRoutes(routes)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, candidatesKey(requestID), b, r.ttl).Err()
}

func (r *Redis) Get(ctx context.Context, requestID, routeID int) ([]schedule.OccurrenceKey, error) {
	b, err := r.client.Get(ctx, candidatesKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, wrapUnknown(requestID, routeID)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read candidates for request %d: %w", requestID, err)
	}
	routes, err := decodeRoutes(b)
	if err != nil {
		return nil, err
	}
	return pick(routes, requestID, routeID)
}

func (r *Redis) Drop(ctx context.Context, requestID int) error {
	return r.client.Del(ctx, candidatesKey(requestID)).Err()
}

func (r *Redis) Close() error { return r.client.Close() }

func encodeRoutes(routes [][]schedule.OccurrenceKey) ([]byte, error) {
	b, err := json.Marshal(routes)
	if err != nil {
		return nil, fmt.Errorf("cache: encode candidates: %w", err)
	}
	return b, nil
}

func decodeRoutes(b []byte) ([][]schedule.OccurrenceKey, error) {
	var routes [][]schedule.OccurrenceKey
	if err := json.Unmarshal(b, &routes); err != nil {
		return nil, fmt.Errorf("cache: decode candidates: %w", err)
	}
	return routes, nil
}

func candidatesKey(requestID int) string { return "transpool:candidates:" + strconv.Itoa(requestID) }

func wrapUnknown(requestID, routeID int) error {
	return fmt.Errorf("%w: request %d route %d", ErrUnknownRoute, requestID, routeID)
}
