// Package geiger reads pulse counts from a serial-attached radiation counter.
package geiger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"
)

const (
	// framePrefix marks a count frame emitted by the counter firmware.
	framePrefix = "$GEO"

	fieldDelimiter = ","

	DefaultBaud        = 9600
	DefaultReadTimeout = 3 * time.Second
)

var (
	// ErrNoData is returned when no frame arrived within the read window
	ErrNoData = errors.New("no data")

	// ErrMalformedFrame is returned when a frame fails prefix or count validation
	ErrMalformedFrame = errors.New("malformed frame")
)

// Config holds the serial port settings for the counter.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// Source reads one count frame per acquisition from the counter's serial
// line.
type Source struct {
	config Config
	open   func() (io.ReadCloser, error)
	logger *slog.Logger
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(*Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("sensor", "geiger"))
	}
}

// New creates a new radiation counter source
func New(config Config, options ...func(*Source)) *Source {
	if config.Baud <= 0 {
		config.Baud = DefaultBaud
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}

	s := Source{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	s.open = func() (io.ReadCloser, error) {
		return serial.OpenPort(&serial.Config{
			Name:        s.config.Port,
			Baud:        s.config.Baud,
			ReadTimeout: s.config.ReadTimeout,
		})
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Acquire reads one frame from the counter. A missing or malformed frame is
// a normal empty cycle and yields (nil, nil); only a port that cannot be
// opened or read surfaces as an error. The port is released on every exit
// path.
func (s *Source) Acquire(ctx context.Context) (*int64, error) {
	port, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("opening port %s: %w", s.config.Port, err)
	}
	defer port.Close()

	line, err := bufio.NewReader(port).ReadString('\n')
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) {
			// Nothing arrived within the read window.
			return nil, nil
		}
		return nil, fmt.Errorf("reading frame: %w", err)
	}

	count, err := ParseFrame(line)
	switch {
	case errors.Is(err, ErrNoData):
		return nil, nil
	case errors.Is(err, ErrMalformedFrame):
		s.logger.Warn("discarding malformed frame", slog.String("line", strings.TrimSpace(line)))
		return nil, nil
	case err != nil:
		return nil, err
	}

	return &count, nil
}

// ParseFrame parses one line of counter output, e.g. "$GEO,42". The returned
// error is ErrNoData for an empty line and ErrMalformedFrame for a frame
// failing the prefix or count validation, so callers and tests can tell the
// failure modes apart even though both collapse to an absent count.
func ParseFrame(line string) (int64, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, ErrNoData
	}

	fields := strings.Split(line, fieldDelimiter)
	if fields[0] != framePrefix {
		return 0, fmt.Errorf("%w: unexpected prefix %q", ErrMalformedFrame, fields[0])
	}
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: missing count field", ErrMalformedFrame)
	}

	count, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid count %q", ErrMalformedFrame, fields[1])
	}

	return count, nil
}
