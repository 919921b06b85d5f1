package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixelweather/weather-push-backend/config"
	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/pixelweather/weather-push-backend/metrics"
	"github.com/pixelweather/weather-push-backend/store"
	"github.com/pixelweather/weather-push-backend/types"
)

// WeatherFetcher resolves a current observation for a coordinate.
type WeatherFetcher interface {
	Fetch(ctx context.Context, coord types.Coordinate) (types.WeatherObservation, error)
}

// Dispatcher delivers detection results to a coordinate's subscribers.
type Dispatcher interface {
	DispatchChanges(ctx context.Context, tokens []string, coord types.Coordinate, changes []types.ChangeDescriptor) *types.DispatchResult
	DispatchAlerts(ctx context.Context, tokens []string, coord types.Coordinate, alerts []types.EmergencyAlert) *types.DispatchResult
}

// PollerService owns the per-coordinate poll control flow: prune, fetch,
// evaluate, detect, dispatch, snapshot. Coordinates are processed
// concurrently on the worker pool; each coordinate's own state transitions
// stay sequential, guarded by its poll lock.
type PollerService struct {
	store      store.LocationStore
	weather    WeatherFetcher
	detector   *ChangeDetector
	evaluator  *EmergencyEvaluator
	dispatcher Dispatcher
	pool       *WorkerPool
	cfg        config.PollerConfig
	logger     *zap.SugaredLogger

	// runMu serializes runs: overlapping runs could double-notify from a
	// race on snapshot read-compare-write.
	runMu sync.Mutex
}

// NewPollerService creates the polling orchestrator.
func NewPollerService(
	st store.LocationStore,
	weather WeatherFetcher,
	detector *ChangeDetector,
	evaluator *EmergencyEvaluator,
	dispatcher Dispatcher,
	pool *WorkerPool,
	cfg config.PollerConfig,
) *PollerService {
	return &PollerService{
		store:      st,
		weather:    weather,
		detector:   detector,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		pool:       pool,
		cfg:        cfg,
		logger:     logger.GetLogger().Named("poller"),
	}
}

// RunOnce executes one polling run over every known coordinate and returns
// its summary. Success is false only for structural failures; per-coordinate
// errors are recorded without aborting the run.
func (p *PollerService) RunOnce(ctx context.Context) types.RunSummary {
	summary := types.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	if !p.runMu.TryLock() {
		summary.Error = "previous polling run still in flight"
		metrics.PollRuns().WithLabelValues("overlap").Inc()
		p.logger.Warnw("Polling run refused", "runId", summary.RunID, "reason", summary.Error)
		return summary
	}
	defer p.runMu.Unlock()

	log := p.logger.With("runId", summary.RunID)
	log.Infow("Polling run started")

	coords, err := p.store.ListLocations(ctx)
	if err != nil {
		summary.Duration = time.Since(summary.StartedAt)
		summary.Error = fmt.Sprintf("failed to enumerate locations: %v", err)
		metrics.PollRuns().WithLabelValues("failure").Inc()
		log.Errorw("Polling run failed", "error", err)
		return summary
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]types.CoordinateResult, 0, len(coords))
	)

	for _, coord := range coords {
		coord := coord
		wg.Add(1)

		job := Job{
			Name: "poll:" + coord.Key(),
			Execute: func(jobCtx context.Context) error {
				defer wg.Done()
				result := p.processCoordinate(jobCtx, coord)
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
				if result.Status == types.StatusFailed {
					return fmt.Errorf("coordinate %s: %s", coord.Key(), result.Error)
				}
				return nil
			},
		}

		// A full queue falls back to inline execution: slower, but no
		// coordinate is silently dropped from the run.
		if !p.pool.Submit(job) {
			_ = job.Execute(ctx)
		}
	}
	wg.Wait()

	summary.Duration = time.Since(summary.StartedAt)
	summary.Success = true
	summary.Results = results

	for status, count := range summary.CountByStatus() {
		metrics.CoordinateOutcomes().WithLabelValues(string(status)).Add(float64(count))
	}
	metrics.PollRuns().WithLabelValues("success").Inc()
	metrics.PollDuration().Observe(summary.Duration.Seconds())

	log.Infow("Polling run finished",
		"coordinates", len(coords),
		"duration", summary.Duration,
		"counts", summary.CountByStatus())
	return summary
}

// processCoordinate walks one coordinate through the poll state machine.
// Its error paths all terminate in a result record; nothing escapes to the
// run level.
func (p *PollerService) processCoordinate(ctx context.Context, coord types.Coordinate) (result types.CoordinateResult) {
	result.Coordinate = coord

	defer func() {
		if r := recover(); r != nil {
			result.Status = types.StatusFailed
			result.Error = fmt.Sprintf("panic: %v", r)
			p.logger.Errorw("Coordinate processing panicked", "coordinate", coord.Key(), "panic", r)
		}
	}()

	lockTTL := time.Duration(p.cfg.LockTTLSeconds) * time.Second
	locked, err := p.store.AcquirePollLock(ctx, coord, lockTTL)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result
	}
	if !locked {
		result.Status = types.StatusSkipped
		return result
	}
	defer func() {
		if err := p.store.ReleasePollLock(context.WithoutCancel(ctx), coord); err != nil {
			p.logger.Warnw("Failed to release poll lock", "coordinate", coord.Key(), "error", err)
		}
	}()

	tokens, err := p.store.PruneStale(ctx, coord)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result
	}
	if len(tokens) == 0 {
		result.Status = types.StatusRemoved
		return result
	}

	obs, err := p.weather.Fetch(ctx, coord)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result
	}

	snapshot, err := p.store.GetSnapshot(ctx, coord)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result
	}

	// First observation seeds the snapshot without notifying.
	if snapshot == nil {
		if err := p.store.PutSnapshot(ctx, coord, obs); err != nil {
			result.Status = types.StatusFailed
			result.Error = err.Error()
			return result
		}
		result.Status = types.StatusInitialized
		return result
	}

	// Emergencies suppress routine change detection for this cycle.
	if alerts := p.evaluator.Evaluate(obs); len(alerts) > 0 {
		result.Alerts = alerts
		result.Dispatch = p.dispatcher.DispatchAlerts(ctx, tokens, coord, alerts)
		if err := p.store.PutSnapshot(ctx, coord, obs); err != nil {
			result.Status = types.StatusFailed
			result.Error = err.Error()
			return result
		}
		result.Status = types.StatusEmergency
		return result
	}

	changes := p.detector.Detect(snapshot, obs)
	if len(changes) == 0 {
		// Snapshot untouched: drift stays measured from the last notified state.
		result.Status = types.StatusUnchanged
		return result
	}

	if err := p.store.PutSnapshot(ctx, coord, obs); err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result
	}
	result.Changes = changes
	result.Dispatch = p.dispatcher.DispatchChanges(ctx, tokens, coord, changes)
	result.Status = types.StatusChanged
	return result
}
