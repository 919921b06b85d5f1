// Package store defines the persistence interfaces consumed by the registry,
// dispatcher and poller. All entity operations reduce to key-value
// primitives: scan-by-prefix, scalar get/set, hash get/set, set
// add/remove/members and key delete.
package store

import (
	"context"
	"time"

	"github.com/pixelweather/weather-push-backend/types"
)

// LocationStore tracks subscriber sets per coordinate, each device's current
// self-reported location, and the last notified weather snapshot per
// coordinate.
type LocationStore interface {
	// ListLocations enumerates every coordinate with a subscriber set.
	ListLocations(ctx context.Context) ([]types.Coordinate, error)

	// Subscribers returns the device tokens subscribed to a coordinate.
	Subscribers(ctx context.Context, coord types.Coordinate) ([]string, error)

	// SetCurrentLocation moves a token to a new coordinate: it is removed
	// from every other coordinate's subscriber set, added to the new set,
	// and the token's current-location record is overwritten.
	SetCurrentLocation(ctx context.Context, token string, coord types.Coordinate) error

	// CurrentLocation returns the token's current-location record, or nil
	// when the token has never registered.
	CurrentLocation(ctx context.Context, token string) (*types.DeviceLocation, error)

	// PruneStale removes every subscriber whose current location no longer
	// matches the coordinate's cell (or is absent) and returns the remaining
	// subscribers. When the set empties, the coordinate and its snapshot are
	// deleted.
	PruneStale(ctx context.Context, coord types.Coordinate) ([]string, error)

	// GetSnapshot returns the last notified observation for a coordinate,
	// or nil when the coordinate has never been seeded.
	GetSnapshot(ctx context.Context, coord types.Coordinate) (*types.WeatherObservation, error)

	// PutSnapshot overwrites the coordinate's snapshot.
	PutSnapshot(ctx context.Context, coord types.Coordinate, obs types.WeatherObservation) error

	// AcquirePollLock takes the coordinate's poll lock for at most ttl.
	// It returns false when another run already holds the lock.
	AcquirePollLock(ctx context.Context, coord types.Coordinate, ttl time.Duration) (bool, error)

	// ReleasePollLock drops the coordinate's poll lock.
	ReleasePollLock(ctx context.Context, coord types.Coordinate) error
}
