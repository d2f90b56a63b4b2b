// Package climate reads the temperature/humidity probe with bounded retry.
package climate

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mkulagin/groundstation/internal/telemetry"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 2 * time.Second
)

// Probe performs one atomic temperature/humidity readout.
type Probe interface {
	Sense() (temperature, humidity float64, err error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func() (temperature, humidity float64, err error)

func (f ProbeFunc) Sense() (float64, float64, error) {
	return f()
}

// Config holds the retry budget for probe readouts.
type Config struct {
	Retries    int
	RetryDelay time.Duration
}

// Source reads a climate probe, retrying failed readouts up to a bounded
// budget within a single acquisition.
type Source struct {
	probe      Probe
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(*Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("sensor", "climate"))
	}
}

// New creates a new climate source reading the given probe
func New(probe Probe, config Config, options ...func(*Source)) *Source {
	retries := config.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	s := Source{
		probe:      probe,
		retries:    retries,
		retryDelay: retryDelay,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Acquire reads the probe, retrying up to the configured budget. The readout
// is atomic: on success both values are present, rounded to 2 decimal
// places; an exhausted budget yields the absent pair and no error, since an
// unavailable sensor is a normal cycle outcome.
func (s *Source) Acquire(ctx context.Context) (temperature, humidity *float64, err error) {
	for attempt := 1; attempt <= s.retries; attempt++ {
		t, h, senseErr := s.probe.Sense()
		if senseErr == nil {
			rt := telemetry.RoundMeasure(t)
			rh := telemetry.RoundMeasure(h)
			return &rt, &rh, nil
		}

		s.logger.Warn("probe read failed",
			slog.Int("attempt", attempt),
			slog.Int("retries", s.retries),
			slog.String("error", senseErr.Error()))

		if attempt == s.retries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}

	return nil, nil, nil
}
