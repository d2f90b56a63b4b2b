// Package gps acquires position fixes from a gpsd-compatible daemon.
package gps

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/mkulagin/groundstation/internal/telemetry"
)

// DefaultAddress is gpsd's standard listen address.
const DefaultAddress = "127.0.0.1:2947"

const (
	watchCommand = `?WATCH={"enable":true,"json":true}` + "\n"

	// Reports with a mode below 2D carry no usable position.
	modeFix2D = 2
)

// Config holds the gpsd connection settings.
type Config struct {
	Address string // gpsd TCP address, DefaultAddress if empty
}

// Source consumes streamed navigation reports from gpsd and returns the
// first fix carrying both coordinates.
type Source struct {
	address string
	dialer  net.Dialer
	logger  *slog.Logger
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(*Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("sensor", "gps"))
	}
}

// New creates a new gpsd-backed position source
func New(config Config, options ...func(*Source)) *Source {
	address := config.Address
	if address == "" {
		address = DefaultAddress
	}

	s := Source{
		address: address,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// report is the subset of a gpsd JSON report the source cares about.
type report struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// Acquire opens a watch session and scans successive reports until one of
// kind TPV carries both a latitude and a longitude. It returns (nil, nil)
// when the stream ends, or the context deadline passes, before a qualifying
// fix is observed: "no fix" is a normal, displayable state, not an error.
// The connection is released on every exit path.
func (s *Source) Acquire(ctx context.Context) (*telemetry.Position, error) {
	conn, err := s.dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return nil, fmt.Errorf("dialing gpsd at %s: %w", s.address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err = conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("setting stream deadline: %w", err)
		}
	}

	if _, err = io.WriteString(conn, watchCommand); err != nil {
		return nil, fmt.Errorf("enabling watch mode: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rep report
		if err := json.Unmarshal(line, &rep); err != nil {
			s.logger.Warn("skipping unparseable report", slog.String("error", err.Error()))
			continue
		}

		if rep.Class != "TPV" || rep.Mode < modeFix2D || rep.Lat == nil || rep.Lon == nil {
			continue
		}

		return &telemetry.Position{
			Latitude:  telemetry.RoundCoordinate(*rep.Lat),
			Longitude: telemetry.RoundCoordinate(*rep.Lon),
		}, nil
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("no fix within the acquisition window")
			return nil, nil
		}
		return nil, fmt.Errorf("reading report stream: %w", err)
	}

	// Stream terminated without a qualifying fix.
	return nil, nil
}
