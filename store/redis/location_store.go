// Package redisstore implements the store interfaces on Redis. Subscriber
// groups are sets keyed by quantized coordinate, snapshots and
// current-location records are hashes, and poll locks use SET NX EX.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/pixelweather/weather-push-backend/store"
	"github.com/pixelweather/weather-push-backend/types"
	"github.com/redis/go-redis/v9"
)

const (
	locationKeyPrefix = "location:"
	snapshotKeyPrefix = "snapshot:"
	pollLockKeyPrefix = "lock:poll:"

	scanBatchSize = 100
)

// LocationStore is the Redis-backed location registry and snapshot store.
type LocationStore struct {
	rdb *redis.Client
	now func() time.Time
}

var _ store.LocationStore = (*LocationStore)(nil)

// NewLocationStore creates a LocationStore on the given Redis client.
func NewLocationStore(rdb *redis.Client) *LocationStore {
	return &LocationStore{rdb: rdb, now: time.Now}
}

func locationKey(coord types.Coordinate) string {
	return locationKeyPrefix + coord.Key()
}

func snapshotKey(coord types.Coordinate) string {
	return snapshotKeyPrefix + coord.Key()
}

func currentLocationKey(token string) string {
	return "user:" + token + ":current"
}

func pollLockKey(coord types.Coordinate) string {
	return pollLockKeyPrefix + coord.Key()
}

// scanLocationKeys enumerates all location:* keys.
func (s *LocationStore) scanLocationKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, locationKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan location keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// ListLocations enumerates every coordinate with a subscriber set.
func (s *LocationStore) ListLocations(ctx context.Context) ([]types.Coordinate, error) {
	keys, err := s.scanLocationKeys(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.GetLogger()
	coords := make([]types.Coordinate, 0, len(keys))
	for _, key := range keys {
		coord, err := types.ParseCoordinateKey(key[len(locationKeyPrefix):])
		if err != nil {
			// A malformed key should never block the run; skip it.
			log.Warnw("Skipping malformed location key", "key", key, "error", err)
			continue
		}
		coords = append(coords, coord)
	}
	return coords, nil
}

// Subscribers returns the device tokens subscribed to a coordinate.
func (s *LocationStore) Subscribers(ctx context.Context, coord types.Coordinate) ([]string, error) {
	tokens, err := s.rdb.SMembers(ctx, locationKey(coord)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read subscribers for %s: %w", coord, err)
	}
	return tokens, nil
}

// SetCurrentLocation moves a token to a new coordinate. Removal from every
// other subscriber set, addition to the new set and the current-location
// overwrite are pipelined so registration is atomic from the caller's view.
func (s *LocationStore) SetCurrentLocation(ctx context.Context, token string, coord types.Coordinate) error {
	keys, err := s.scanLocationKeys(ctx)
	if err != nil {
		return err
	}

	newKey := locationKey(coord)
	pipe := s.rdb.TxPipeline()
	for _, key := range keys {
		if key != newKey {
			pipe.SRem(ctx, key, token)
		}
	}
	pipe.SAdd(ctx, newKey, token)
	pipe.HSet(ctx, currentLocationKey(token),
		"lat", formatFloat(coord.Lat),
		"lon", formatFloat(coord.Lon),
		"updated_at", strconv.FormatInt(s.now().UnixMilli(), 10),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set current location for token: %w", err)
	}
	return nil
}

// CurrentLocation returns the token's current-location record, or nil when
// the token has never registered.
func (s *LocationStore) CurrentLocation(ctx context.Context, token string) (*types.DeviceLocation, error) {
	fields, err := s.rdb.HGetAll(ctx, currentLocationKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read current location: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt current-location lat %q: %w", fields["lat"], err)
	}
	lon, err := strconv.ParseFloat(fields["lon"], 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt current-location lon %q: %w", fields["lon"], err)
	}

	loc := &types.DeviceLocation{Coordinate: types.NewCoordinate(lat, lon)}
	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		loc.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return loc, nil
}

// PruneStale removes subscribers whose current location disagrees with the
// coordinate (or is absent) and returns the remaining subscribers. An empty
// result deletes the coordinate's set and snapshot.
func (s *LocationStore) PruneStale(ctx context.Context, coord types.Coordinate) ([]string, error) {
	log := logger.GetLogger()

	tokens, err := s.Subscribers(ctx, coord)
	if err != nil {
		return nil, err
	}

	var live []string
	var stale []interface{}
	for _, token := range tokens {
		current, err := s.CurrentLocation(ctx, token)
		if err != nil {
			return nil, err
		}
		if current == nil || !current.Coordinate.SameCell(coord) {
			stale = append(stale, token)
			log.Debugw("Pruning stale subscription",
				"coordinate", coord.Key(),
				"token", logger.MaskToken(token))
			continue
		}
		live = append(live, token)
	}

	if len(stale) > 0 {
		if err := s.rdb.SRem(ctx, locationKey(coord), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune stale subscribers for %s: %w", coord, err)
		}
	}

	if len(live) == 0 {
		// Nobody left: the coordinate dies, and its snapshot with it.
		if err := s.rdb.Del(ctx, locationKey(coord), snapshotKey(coord)).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove empty location %s: %w", coord, err)
		}
		return nil, nil
	}
	return live, nil
}

// GetSnapshot returns the last notified observation for a coordinate, or nil
// when the coordinate has never been seeded.
func (s *LocationStore) GetSnapshot(ctx context.Context, coord types.Coordinate) (*types.WeatherObservation, error) {
	fields, err := s.rdb.HGetAll(ctx, snapshotKey(coord)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", coord, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	obs := &types.WeatherObservation{Source: types.WeatherSource(fields["source"])}
	if obs.Temperature, err = strconv.ParseFloat(fields["temperature"], 64); err != nil {
		return nil, fmt.Errorf("corrupt snapshot temperature for %s: %w", coord, err)
	}
	if obs.WeatherCode, err = strconv.Atoi(fields["weather_code"]); err != nil {
		return nil, fmt.Errorf("corrupt snapshot weather code for %s: %w", coord, err)
	}
	if obs.Precipitation, err = strconv.ParseFloat(fields["precipitation"], 64); err != nil {
		return nil, fmt.Errorf("corrupt snapshot precipitation for %s: %w", coord, err)
	}
	if obs.WindSpeed, err = strconv.ParseFloat(fields["wind_speed"], 64); err != nil {
		return nil, fmt.Errorf("corrupt snapshot wind speed for %s: %w", coord, err)
	}
	obs.IsFallback = fields["is_fallback"] == "1"
	if ms, err := strconv.ParseInt(fields["observed_at"], 10, 64); err == nil {
		obs.ObservedAt = time.UnixMilli(ms).UTC()
	}
	return obs, nil
}

// PutSnapshot overwrites the coordinate's snapshot.
func (s *LocationStore) PutSnapshot(ctx context.Context, coord types.Coordinate, obs types.WeatherObservation) error {
	isFallback := "0"
	if obs.IsFallback {
		isFallback = "1"
	}
	err := s.rdb.HSet(ctx, snapshotKey(coord),
		"temperature", formatFloat(obs.Temperature),
		"weather_code", strconv.Itoa(obs.WeatherCode),
		"precipitation", formatFloat(obs.Precipitation),
		"wind_speed", formatFloat(obs.WindSpeed),
		"source", string(obs.Source),
		"is_fallback", isFallback,
		"observed_at", strconv.FormatInt(obs.ObservedAt.UnixMilli(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write snapshot for %s: %w", coord, err)
	}
	return nil
}

// AcquirePollLock takes the coordinate's poll lock for at most ttl.
func (s *LocationStore) AcquirePollLock(ctx context.Context, coord types.Coordinate, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, pollLockKey(coord), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire poll lock for %s: %w", coord, err)
	}
	return ok, nil
}

// ReleasePollLock drops the coordinate's poll lock.
func (s *LocationStore) ReleasePollLock(ctx context.Context, coord types.Coordinate) error {
	if err := s.rdb.Del(ctx, pollLockKey(coord)).Err(); err != nil {
		return fmt.Errorf("failed to release poll lock for %s: %w", coord, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
