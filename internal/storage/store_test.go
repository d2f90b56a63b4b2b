package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkulagin/groundstation/internal/telemetry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store := New(filepath.Join(t.TempDir(), "readings.sqlite"))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func ptr[T float64 | int64](v T) *T {
	return &v
}

func TestAppendRecentRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 15, 0, time.UTC)

	tests := []struct {
		name    string
		reading telemetry.Reading
	}{
		{
			"all fields present",
			telemetry.Reading{
				Timestamp:      ts,
				Latitude:       ptr(-33.867854),
				Longitude:      ptr(151.20733),
				Temperature:    ptr(21.46),
				Humidity:       ptr(58.2),
				RadiationCount: ptr(int64(42)),
			},
		},
		{
			"all fields absent",
			telemetry.Reading{Timestamp: ts},
		},
		{
			"position only",
			telemetry.Reading{
				Timestamp: ts,
				Latitude:  ptr(55.751244),
				Longitude: ptr(37.618423),
			},
		},
		{
			"radiation only, zero count",
			telemetry.Reading{
				Timestamp:      ts,
				RadiationCount: ptr(int64(0)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			ctx := context.Background()

			if err := store.Append(ctx, &tt.reading); err != nil {
				t.Fatalf("Append: %v", err)
			}

			readings, err := store.Recent(ctx, 1)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(readings) != 1 {
				t.Fatalf("Recent returned %d readings, want 1", len(readings))
			}

			assertReadingEqual(t, readings[0], tt.reading)
		})
	}
}

func TestRecentOnFreshStoreCreatesSchema(t *testing.T) {
	store := newTestStore(t)

	readings, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("Recent returned %d readings, want 0", len(readings))
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		reading := telemetry.Reading{
			Timestamp:      base.Add(time.Duration(i) * time.Second),
			RadiationCount: ptr(int64(i)),
		}
		if err := store.Append(ctx, &reading); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	readings, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("Recent returned %d readings, want 3", len(readings))
	}

	for i, want := range []int64{4, 3, 2} {
		if got := *readings[i].RadiationCount; got != want {
			t.Errorf("readings[%d].RadiationCount = %d, want %d", i, got, want)
		}
	}
	for i := 1; i < len(readings); i++ {
		if readings[i].Timestamp.After(readings[i-1].Timestamp) {
			t.Errorf("readings out of descending order at %d", i)
		}
	}
}

func TestRecentTieBreakIsDeterministic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Same second for all three rows, which is possible with second-resolution
	// timestamps across consecutive cycles.
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(0); i < 3; i++ {
		reading := telemetry.Reading{Timestamp: ts, RadiationCount: ptr(i)}
		if err := store.Append(ctx, &reading); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	first, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}

	// Latest insertion wins the tie.
	for i, want := range []int64{2, 1, 0} {
		if got := *first[i].RadiationCount; got != want {
			t.Errorf("first[%d].RadiationCount = %d, want %d", i, got, want)
		}
	}

	second, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	for i := range first {
		if *first[i].RadiationCount != *second[i].RadiationCount {
			t.Errorf("tie-break not deterministic at %d: %d vs %d",
				i, *first[i].RadiationCount, *second[i].RadiationCount)
		}
	}
}

func TestRecentRejectsNonPositiveLimit(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Recent(context.Background(), 0); err == nil {
		t.Error("Recent(0) returned nil error")
	}
	if _, err := store.Recent(context.Background(), -1); err == nil {
		t.Error("Recent(-1) returned nil error")
	}
}

func TestTimestampSecondResolution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reading := telemetry.Reading{
		Timestamp: time.Date(2024, 6, 1, 12, 30, 15, 987654321, time.UTC),
	}
	if err := store.Append(ctx, &reading); err != nil {
		t.Fatalf("Append: %v", err)
	}

	readings, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}

	want := time.Date(2024, 6, 1, 12, 30, 15, 0, time.UTC)
	if !readings[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", readings[0].Timestamp, want)
	}
}

func assertReadingEqual(t *testing.T, got, want telemetry.Reading) {
	t.Helper()

	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, want.Timestamp)
	}
	assertFloatField(t, "Latitude", got.Latitude, want.Latitude)
	assertFloatField(t, "Longitude", got.Longitude, want.Longitude)
	assertFloatField(t, "Temperature", got.Temperature, want.Temperature)
	assertFloatField(t, "Humidity", got.Humidity, want.Humidity)

	switch {
	case (got.RadiationCount == nil) != (want.RadiationCount == nil):
		t.Errorf("RadiationCount presence = %v, want %v", got.RadiationCount != nil, want.RadiationCount != nil)
	case got.RadiationCount != nil && *got.RadiationCount != *want.RadiationCount:
		t.Errorf("RadiationCount = %d, want %d", *got.RadiationCount, *want.RadiationCount)
	}
}

func assertFloatField(t *testing.T, name string, got, want *float64) {
	t.Helper()

	switch {
	case (got == nil) != (want == nil):
		t.Errorf("%s presence = %v, want %v", name, got != nil, want != nil)
	case got != nil && *got != *want:
		t.Errorf("%s = %v, want %v", name, *got, *want)
	}
}
