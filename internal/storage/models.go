package storage

import (
	"database/sql"
)

// readingData is the persisted row shape of a reading. Optional sensor
// fields map to NULL columns so that absence survives a round trip without
// being coerced to zero.
type readingData struct {
	ID             int64
	Timestamp      string
	Latitude       sql.NullFloat64
	Longitude      sql.NullFloat64
	Temperature    sql.NullFloat64
	Humidity       sql.NullFloat64
	RadiationCount sql.NullInt64
}
