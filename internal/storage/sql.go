package storage

import (
	_ "embed"
)

const (
	insertReadingSQL = `
INSERT INTO readings (timestamp,
                      latitude,
                      longitude,
                      temperature,
                      humidity,
                      radiation_count)
VALUES (?, ?, ?, ?, ?, ?)`

	selectRecentSQL = `
SELECT
    timestamp,
    latitude,
    longitude,
    temperature,
    humidity,
    radiation_count
FROM readings
ORDER BY
    timestamp DESC,
    id DESC
LIMIT ?`
)

//go:embed schema.sql
var schemaSQL string
