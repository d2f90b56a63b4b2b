package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mkulagin/groundstation/internal/telemetry"
)

// timeLayout is the persisted timestamp format: second resolution, UTC.
const timeLayout = "2006-01-02 15:04:05"

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toReadingData(r *telemetry.Reading) *readingData {
	return &readingData{
		Timestamp: r.Timestamp.UTC().Format(timeLayout),

		Latitude: sql.NullFloat64{
			Float64: toSQLNullType[float64](r.Latitude),
			Valid:   r.Latitude != nil,
		},
		Longitude: sql.NullFloat64{
			Float64: toSQLNullType[float64](r.Longitude),
			Valid:   r.Longitude != nil,
		},
		Temperature: sql.NullFloat64{
			Float64: toSQLNullType[float64](r.Temperature),
			Valid:   r.Temperature != nil,
		},
		Humidity: sql.NullFloat64{
			Float64: toSQLNullType[float64](r.Humidity),
			Valid:   r.Humidity != nil,
		},
		RadiationCount: sql.NullInt64{
			Int64: toSQLNullType[int64](r.RadiationCount),
			Valid: r.RadiationCount != nil,
		},
	}
}

func fromReadingData(d *readingData) (*telemetry.Reading, error) {
	ts, err := time.ParseInLocation(timeLayout, d.Timestamp, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", d.Timestamp, err)
	}

	r := telemetry.Reading{Timestamp: ts}
	if d.Latitude.Valid {
		r.Latitude = &d.Latitude.Float64
	}
	if d.Longitude.Valid {
		r.Longitude = &d.Longitude.Float64
	}
	if d.Temperature.Valid {
		r.Temperature = &d.Temperature.Float64
	}
	if d.Humidity.Valid {
		r.Humidity = &d.Humidity.Float64
	}
	if d.RadiationCount.Valid {
		r.RadiationCount = &d.RadiationCount.Int64
	}
	return &r, nil
}

func toSQLNullType[T float64 | int64](v *T) T {
	if v == nil {
		return 0
	}
	return *v
}
