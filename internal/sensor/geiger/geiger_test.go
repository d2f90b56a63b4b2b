package geiger

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    int64
		wantErr error
	}{
		{"valid frame", "$GEO,42", 42, nil},
		{"valid frame with newline", "$GEO,42\r\n", 42, nil},
		{"valid frame with extra fields", "$GEO,17,v2", 17, nil},
		{"zero count", "$GEO,0", 0, nil},
		{"empty line", "", 0, ErrNoData},
		{"whitespace only", "  \r\n", 0, ErrNoData},
		{"wrong prefix", "$WRONG,42", 0, ErrMalformedFrame},
		{"missing count", "$GEO", 0, ErrMalformedFrame},
		{"unparseable count", "$GEO,abc", 0, ErrMalformedFrame},
		{"fractional count", "$GEO,4.2", 0, ErrMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrame(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseFrame(%q) error = %v, want %v", tt.line, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseFrame(%q) = %d, want %d", tt.line, got, tt.want)
			}
		})
	}
}

func fakePort(data string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(data)), nil
	}
}

func TestAcquireValidFrame(t *testing.T) {
	source := New(Config{Port: "/dev/null"})
	source.open = fakePort("$GEO,42\r\n$GEO,43\r\n")

	count, err := source.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if count == nil {
		t.Fatal("Acquire returned no count, want 42")
	}
	if *count != 42 {
		t.Errorf("count = %d, want 42", *count)
	}
}

func TestAcquireMalformedFrameIsAbsentNotError(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unparseable count", "$GEO,abc\r\n"},
		{"wrong prefix", "$WRONG,42\r\n"},
		{"empty stream", ""},
		{"blank line", "\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := New(Config{Port: "/dev/null"})
			source.open = fakePort(tt.data)

			count, err := source.Acquire(context.Background())
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
			if count != nil {
				t.Errorf("count = %d, want absent", *count)
			}
		})
	}
}

func TestAcquirePortOpenFailure(t *testing.T) {
	source := New(Config{Port: "/dev/does-not-exist"})
	source.open = func() (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	}

	if _, err := source.Acquire(context.Background()); err == nil {
		t.Fatal("Acquire returned nil error, want a transport error")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	source := New(Config{Port: "/dev/ttyUSB0"})

	if source.config.Baud != DefaultBaud {
		t.Errorf("Baud = %d, want %d", source.config.Baud, DefaultBaud)
	}
	if source.config.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want %v", source.config.ReadTimeout, DefaultReadTimeout)
	}
}
