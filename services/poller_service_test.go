package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelweather/weather-push-backend/config"
	"github.com/pixelweather/weather-push-backend/types"
)

// memStore is an in-memory LocationStore for orchestrator tests.
type memStore struct {
	mu        sync.Mutex
	tokens    map[string][]string
	current   map[string]types.Coordinate
	snapshots map[string]types.WeatherObservation
	locked    map[string]bool
	listErr   error
}

func newMemStore() *memStore {
	return &memStore{
		tokens:    make(map[string][]string),
		current:   make(map[string]types.Coordinate),
		snapshots: make(map[string]types.WeatherObservation),
		locked:    make(map[string]bool),
	}
}

func (m *memStore) register(token string, coord types.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := coord.Key()
	m.tokens[key] = append(m.tokens[key], token)
	m.current[token] = coord
}

func (m *memStore) ListLocations(context.Context) ([]types.Coordinate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	coords := make([]types.Coordinate, 0, len(m.tokens))
	for key := range m.tokens {
		coord, err := types.ParseCoordinateKey(key)
		if err != nil {
			return nil, err
		}
		coords = append(coords, coord)
	}
	return coords, nil
}

func (m *memStore) Subscribers(_ context.Context, coord types.Coordinate) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens[coord.Key()]...), nil
}

func (m *memStore) SetCurrentLocation(_ context.Context, token string, coord types.Coordinate) error {
	m.register(token, coord)
	return nil
}

func (m *memStore) CurrentLocation(_ context.Context, token string) (*types.DeviceLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coord, ok := m.current[token]
	if !ok {
		return nil, nil
	}
	return &types.DeviceLocation{Coordinate: coord}, nil
}

func (m *memStore) PruneStale(_ context.Context, coord types.Coordinate) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := coord.Key()
	var live []string
	for _, token := range m.tokens[key] {
		if current, ok := m.current[token]; ok && current.SameCell(coord) {
			live = append(live, token)
		}
	}
	if len(live) == 0 {
		delete(m.tokens, key)
		delete(m.snapshots, key)
		return nil, nil
	}
	m.tokens[key] = live
	return live, nil
}

func (m *memStore) GetSnapshot(_ context.Context, coord types.Coordinate) (*types.WeatherObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[coord.Key()]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *memStore) PutSnapshot(_ context.Context, coord types.Coordinate, obs types.WeatherObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[coord.Key()] = obs
	return nil
}

func (m *memStore) AcquirePollLock(_ context.Context, coord types.Coordinate, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[coord.Key()] {
		return false, nil
	}
	m.locked[coord.Key()] = true
	return true, nil
}

func (m *memStore) ReleasePollLock(_ context.Context, coord types.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, coord.Key())
	return nil
}

// fixedFetcher returns a canned observation per coordinate key.
type fixedFetcher struct {
	mu   sync.Mutex
	obs  map[string]types.WeatherObservation
	errs map[string]error
}

func (f *fixedFetcher) Fetch(_ context.Context, coord types.Coordinate) (types.WeatherObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[coord.Key()]; err != nil {
		return types.WeatherObservation{}, err
	}
	return f.obs[coord.Key()], nil
}

type dispatchCall struct {
	tokens  []string
	coord   types.Coordinate
	changes []types.ChangeDescriptor
	alerts  []types.EmergencyAlert
}

type recordingDispatcher struct {
	mu          sync.Mutex
	changeCalls []dispatchCall
	alertCalls  []dispatchCall
}

func (d *recordingDispatcher) DispatchChanges(_ context.Context, tokens []string, coord types.Coordinate, changes []types.ChangeDescriptor) *types.DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changeCalls = append(d.changeCalls, dispatchCall{tokens: tokens, coord: coord, changes: changes})
	return &types.DispatchResult{Sent: tokens}
}

func (d *recordingDispatcher) DispatchAlerts(_ context.Context, tokens []string, coord types.Coordinate, alerts []types.EmergencyAlert) *types.DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alertCalls = append(d.alertCalls, dispatchCall{tokens: tokens, coord: coord, alerts: alerts})
	return &types.DispatchResult{Sent: tokens}
}

func newTestPoller(t *testing.T, st *memStore, fetcher *fixedFetcher, dispatcher *recordingDispatcher) *PollerService {
	t.Helper()
	cfg := config.PollerConfig{
		IntervalMinutes:        15,
		MaxWorkers:             2,
		QueueSize:              16,
		LockTTLSeconds:         60,
		ShutdownTimeoutSeconds: 5,
	}
	pool := NewWorkerPool(cfg)
	pool.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	return NewPollerService(st, fetcher, NewChangeDetector(), NewEmergencyEvaluator(), dispatcher, pool, cfg)
}

func resultFor(t *testing.T, summary types.RunSummary, coord types.Coordinate) types.CoordinateResult {
	t.Helper()
	for _, r := range summary.Results {
		if r.Coordinate.Key() == coord.Key() {
			return r
		}
	}
	t.Fatalf("no result for coordinate %s", coord.Key())
	return types.CoordinateResult{}
}

func TestRunOnce_FirstPollSeedsWithoutNotifying(t *testing.T) {
	st := newMemStore()
	st.register("tok-1", testCoord)
	fetched := obs(10, 0, 0, 3)
	fetcher := &fixedFetcher{obs: map[string]types.WeatherObservation{testCoord.Key(): fetched}}
	dispatcher := &recordingDispatcher{}
	poller := newTestPoller(t, st, fetcher, dispatcher)

	summary := poller.RunOnce(context.Background())
	require.True(t, summary.Success)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, types.StatusInitialized, summary.Results[0].Status)

	snap, err := st.GetSnapshot(context.Background(), testCoord)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, fetched, *snap)

	assert.Empty(t, dispatcher.changeCalls)
	assert.Empty(t, dispatcher.alertCalls)
}

func TestRunOnce_UnchangedIsIdempotent(t *testing.T) {
	st := newMemStore()
	st.register("tok-1", testCoord)
	stable := obs(10, 1, 0, 3)
	require.NoError(t, st.PutSnapshot(context.Background(), testCoord, stable))
	fetcher := &fixedFetcher{obs: map[string]types.WeatherObservation{testCoord.Key(): stable}}
	dispatcher := &recordingDispatcher{}
	poller := newTestPoller(t, st, fetcher, dispatcher)

	for i := 0; i < 2; i++ {
		summary := poller.RunOnce(context.Background())
		require.True(t, summary.Success, "run %d", i)
		assert.Equal(t, types.StatusUnchanged, resultFor(t, summary, testCoord).Status, "run %d", i)
	}

	snap, err := st.GetSnapshot(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Equal(t, stable, *snap, "snapshot must be untouched")
	assert.Empty(t, dispatcher.changeCalls)
}

func TestRunOnce_ChangeNotifiesAndOverwritesSnapshot(t *testing.T) {
	st := newMemStore()
	st.register("tok-1", testCoord)
	require.NoError(t, st.PutSnapshot(context.Background(), testCoord, obs(10, 0, 0, 3)))

	fresh := obs(16, 61, 0, 4)
	fetcher := &fixedFetcher{obs: map[string]types.WeatherObservation{testCoord.Key(): fresh}}
	dispatcher := &recordingDispatcher{}
	poller := newTestPoller(t, st, fetcher, dispatcher)

	summary := poller.RunOnce(context.Background())
	require.True(t, summary.Success)

	result := resultFor(t, summary, testCoord)
	assert.Equal(t, types.StatusChanged, result.Status)
	require.Len(t, result.Changes, 2)
	assert.Equal(t, "Температура ↑ на 6.0°C", result.Changes[0].Text)
	assert.Equal(t, "🌧️ Пошел дождь", result.Changes[1].Text)
	assert.Empty(t, result.Alerts, "wind and precipitation are below hazard thresholds")

	snap, err := st.GetSnapshot(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Equal(t, fresh, *snap)

	require.Len(t, dispatcher.changeCalls, 1)
	assert.Equal(t, []string{"tok-1"}, dispatcher.changeCalls[0].tokens)
	assert.Empty(t, dispatcher.alertCalls)
}

func TestRunOnce_EmergencySuppressesRoutineChanges(t *testing.T) {
	st := newMemStore()
	st.register("tok-1", testCoord)
	require.NoError(t, st.PutSnapshot(context.Background(), testCoord, obs(10, 0, 0, 3)))

	// Temperature delta would also fire, but the hurricane takes the cycle.
	storm := obs(20, 0, 0, 35)
	fetcher := &fixedFetcher{obs: map[string]types.WeatherObservation{testCoord.Key(): storm}}
	dispatcher := &recordingDispatcher{}
	poller := newTestPoller(t, st, fetcher, dispatcher)

	summary := poller.RunOnce(context.Background())
	result := resultFor(t, summary, testCoord)
	assert.Equal(t, types.StatusEmergency, result.Status)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, types.AlertLevelRed, result.Alerts[0].Level)

	require.Len(t, dispatcher.alertCalls, 1)
	assert.Empty(t, dispatcher.changeCalls, "routine notification suppressed for the cycle")

	snap, err := st.GetSnapshot(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Equal(t, storm, *snap)
}

func TestRunOnce_PrunedEmptyCoordinateIsRemoved(t *testing.T) {
	st := newMemStore()
	st.register("tok-1", testCoord)
	// The token has since moved to another cell.
	st.current["tok-1"] = types.NewCoordinate(59.939, 30.316)
	require.NoError(t, st.PutSnapshot(context.Background(), testCoord, obs(10, 0, 0, 3)))

	fetcher := &fixedFetcher{obs: map[string]types.WeatherObservation{}}
	dispatcher := &recordingDispatcher{}
	poller := newTestPoller(t, st, fetcher, dispatcher)

	summary := poller.RunOnce(context.Background())
	result := resultFor(t, summary, testCoord)
	assert.Equal(t, types.StatusRemoved, result.Status)

	snap, err := st.GetSnapshot(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Nil(t, snap, "snapshot dies with the coordinate")
}

func TestRunOnce_LockedCoordinateIsSkipped(t *testing.T) {
	st := newMemStore()
	st.register("tok-1", testCoord)
	st.locked[testCoord.Key()] = true

	fetcher := &fixedFetcher{obs: map[string]types.WeatherObservation{testCoord.Key(): obs(10, 0, 0, 3)}}
	dispatcher := &recordingDispatcher{}
	poller := newTestPoller(t, st, fetcher, dispatcher)

	summary := poller.RunOnce(context.Background())
	assert.Equal(t, types.StatusSkipped, resultFor(t, summary, testCoord).Status)
	assert.Empty(t, dispatcher.changeCalls)
}

func TestRunOnce_PerCoordinateFailureIsIsolated(t *testing.T) {
	st := newMemStore()
	healthy := types.NewCoordinate(55.755, 37.617)
	broken := types.NewCoordinate(-33.869, 151.209)
	st.register("tok-1", healthy)
	st.register("tok-2", broken)
	require.NoError(t, st.PutSnapshot(context.Background(), healthy, obs(10, 0, 0, 3)))

	fetcher := &fixedFetcher{
		obs:  map[string]types.WeatherObservation{healthy.Key(): obs(10, 0, 0, 3)},
		errs: map[string]error{broken.Key(): fmt.Errorf("context deadline exceeded")},
	}
	dispatcher := &recordingDispatcher{}
	poller := newTestPoller(t, st, fetcher, dispatcher)

	summary := poller.RunOnce(context.Background())
	require.True(t, summary.Success, "a per-coordinate failure never fails the run")
	assert.Equal(t, types.StatusUnchanged, resultFor(t, summary, healthy).Status)

	failed := resultFor(t, summary, broken)
	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "deadline")
}

func TestRunOnce_ListFailureFailsRun(t *testing.T) {
	st := newMemStore()
	st.listErr = fmt.Errorf("connection refused")

	poller := newTestPoller(t, st, &fixedFetcher{}, &recordingDispatcher{})
	summary := poller.RunOnce(context.Background())

	assert.False(t, summary.Success)
	assert.Contains(t, summary.Error, "failed to enumerate locations")
	assert.Empty(t, summary.Results)
}
