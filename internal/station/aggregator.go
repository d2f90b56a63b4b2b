// Package station orchestrates sampling cycles across the sensor fleet.
package station

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mkulagin/groundstation/internal/telemetry"
)

// HistoryDepth is the number of recent readings returned with each cycle.
const HistoryDepth = 10

const (
	DefaultPositionTimeout  = 10 * time.Second
	DefaultRadiationTimeout = 3 * time.Second
)

// PositionSource yields a position fix, or nil when no fix was observed
// before the stream ended.
type PositionSource interface {
	Acquire(ctx context.Context) (*telemetry.Position, error)
}

// ClimateSource yields an atomic temperature/humidity pair; both values are
// nil when the probe was unavailable.
type ClimateSource interface {
	Acquire(ctx context.Context) (temperature, humidity *float64, err error)
}

// RadiationSource yields a pulse count, or nil when no frame arrived.
type RadiationSource interface {
	Acquire(ctx context.Context) (*int64, error)
}

// Store persists readings and serves bounded history queries.
type Store interface {
	Append(ctx context.Context, r *telemetry.Reading) error
	Recent(ctx context.Context, n int) ([]telemetry.Reading, error)
}

// WithLogger sets the logger for the aggregator
func WithLogger(logger *slog.Logger) func(*Aggregator) {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithPositionTimeout bounds how long a cycle waits for a position fix.
func WithPositionTimeout(timeout time.Duration) func(*Aggregator) {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.positionTimeout = timeout
		}
	}
}

// WithRadiationTimeout bounds how long a cycle waits for a counter frame.
func WithRadiationTimeout(timeout time.Duration) func(*Aggregator) {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.radiationTimeout = timeout
		}
	}
}

// WithClock overrides the cycle timestamp source.
func WithClock(now func() time.Time) func(*Aggregator) {
	return func(a *Aggregator) {
		a.now = now
	}
}

// Aggregator runs sampling cycles: it consults the three sources in a fixed
// order, assembles a composite reading, appends it to the store and hands
// the fresh reading plus the recent history back to the caller.
type Aggregator struct {
	position  PositionSource
	climate   ClimateSource
	radiation RadiationSource
	store     Store

	positionTimeout  time.Duration
	radiationTimeout time.Duration

	logger *slog.Logger
	now    func() time.Time

	// Cycles are serialized: concurrent triggers and the background poller
	// take turns, preserving the single-writer discipline on the store.
	mu sync.Mutex
}

// New creates a new Aggregator
func New(position PositionSource, climate ClimateSource, radiation RadiationSource, store Store, options ...func(*Aggregator)) *Aggregator {
	a := Aggregator{
		position:         position,
		climate:          climate,
		radiation:        radiation,
		store:            store,
		positionTimeout:  DefaultPositionTimeout,
		radiationTimeout: DefaultRadiationTimeout,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		now:              time.Now,
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// SampleAndStore runs one full sampling cycle. Every source is attempted
// exactly once regardless of earlier outcomes; a source's transport failure
// is logged and recorded as an absent field, never aborting the cycle. A
// cycle where every sensor came up empty is still valid, storable state.
// Only a persistence failure is an error: dropping a sample silently would
// be worse than failing visibly.
func (a *Aggregator) SampleAndStore(ctx context.Context) (*telemetry.Reading, []telemetry.Reading, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reading := telemetry.Reading{Timestamp: a.now().UTC().Truncate(time.Second)}

	posCtx, cancel := context.WithTimeout(ctx, a.positionTimeout)
	pos, err := a.position.Acquire(posCtx)
	cancel()
	switch {
	case err != nil:
		a.logger.Error("position source failed", slog.String("error", err.Error()))
	case pos != nil:
		reading.Latitude = &pos.Latitude
		reading.Longitude = &pos.Longitude
	}

	temperature, humidity, err := a.climate.Acquire(ctx)
	if err != nil {
		a.logger.Error("climate source failed", slog.String("error", err.Error()))
	} else {
		reading.Temperature = temperature
		reading.Humidity = humidity
	}

	radCtx, cancel := context.WithTimeout(ctx, a.radiationTimeout)
	count, err := a.radiation.Acquire(radCtx)
	cancel()
	if err != nil {
		a.logger.Error("radiation source failed", slog.String("error", err.Error()))
	} else {
		reading.RadiationCount = count
	}

	if err := a.store.Append(ctx, &reading); err != nil {
		return nil, nil, fmt.Errorf("storing reading: %w", err)
	}

	history, err := a.store.Recent(ctx, HistoryDepth)
	if err != nil {
		return nil, nil, fmt.Errorf("querying history: %w", err)
	}

	a.logger.Info("cycle complete",
		slog.Bool("fix", reading.HasFix()),
		slog.Bool("climate", reading.Temperature != nil),
		slog.Bool("radiation", reading.RadiationCount != nil))

	return &reading, history, nil
}

// Recent returns up to n stored readings, most recent first, without
// triggering a new cycle.
func (a *Aggregator) Recent(ctx context.Context, n int) ([]telemetry.Reading, error) {
	return a.store.Recent(ctx, n)
}
