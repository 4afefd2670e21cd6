// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package sqlite

import (
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// openDB opens (or creates) a SQLite database at dbPath with the
// settings shared by both stores.
func openDB(dbPath string, code topiqerr.Code) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, topiqerr.Wrapf(err, code, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, topiqerr.Wrapf(err, code, "pinging sqlite db")
	}

	return db, nil
}

// encodeVector serializes an embedding as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector. A blob whose length is
// not a multiple of four decodes to the truncated prefix.
func decodeVector(blob []byte) []float32 {
	n := len(blob) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// timeLayout is RFC 3339 with a fixed-width 9-digit fraction so that
// lexicographic comparison of stored timestamps matches chronological
// order in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
