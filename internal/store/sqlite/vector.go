// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package sqlite

import (
	"context"
	"log/slog"
	"time"

	"database/sql"

	"github.com/topiq-dev/topiq/internal/slug"
	"github.com/topiq-dev/topiq/internal/store"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// VectorStore implements store.VectorStore backed by SQLite. The alias
// text is the primary key, so a re-Put of the same text overwrites the
// prior mapping instead of accumulating duplicates.
type VectorStore struct {
	db     *sql.DB
	ttl    time.Duration
	now    store.Clock
	logger *slog.Logger
}

// NewVectorStore opens (or creates) a SQLite database at dbPath and
// initialises the alias vectors table. ttl governs record expiry.
func NewVectorStore(dbPath string, ttl time.Duration) (*VectorStore, error) {
	db, err := openDB(dbPath, topiqerr.CodeStoreVectorUnavailable)
	if err != nil {
		return nil, err
	}

	if err := migrateVector(db); err != nil {
		_ = db.Close()
		return nil, topiqerr.Wrapf(err, topiqerr.CodeStoreDatabaseFailure, "migrating vector tables")
	}

	return &VectorStore{db: db, ttl: ttl, now: time.Now, logger: slog.Default()}, nil
}

func migrateVector(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS alias_vectors (
	alias      TEXT PRIMARY KEY,
	topic_id   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alias_vectors_topic ON alias_vectors(topic_id);
CREATE INDEX IF NOT EXISTS idx_alias_vectors_expiry ON alias_vectors(expires_at);
`
	_, err := db.Exec(ddl)
	return err
}

// SetClock overrides the time source. Intended for expiry tests.
func (v *VectorStore) SetClock(now store.Clock) { v.now = now }

// Put upserts an alias record keyed on its normalized text. CreatedAt
// is preserved across overwrites of the same alias so similarity
// tie-breaking stays stable; expiry is always refreshed.
func (v *VectorStore) Put(ctx context.Context, rec store.AliasRecord) error {
	text := slug.NormalizeAlias(rec.Text)
	if text == "" || rec.TopicID == "" || len(rec.Embedding) == 0 {
		return topiqerr.New(topiqerr.CodeStoreInvalidInput, "alias text, topic id, and embedding are required",
			topiqerr.FieldAlias(rec.Text), topiqerr.FieldTopic(rec.TopicID))
	}

	now := v.now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	expires := rec.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(v.ttl)
	}

	const q = `INSERT INTO alias_vectors (alias, topic_id, embedding, created_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(alias) DO UPDATE SET
	topic_id = excluded.topic_id,
	embedding = excluded.embedding,
	expires_at = excluded.expires_at`

	if _, err := v.db.ExecContext(ctx, q, text, rec.TopicID, encodeVector(rec.Embedding), formatTime(created), formatTime(expires)); err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "putting alias vector",
			topiqerr.FieldAlias(text), topiqerr.FieldTopic(rec.TopicID))
	}
	return nil
}

// All returns a snapshot of the live alias records, skipping rows past
// their TTL. Expired rows are left for Expire to prune.
func (v *VectorStore) All(ctx context.Context) ([]store.AliasRecord, error) {
	const q = `SELECT alias, topic_id, embedding, created_at, expires_at
FROM alias_vectors WHERE expires_at > ?`

	rows, err := v.db.QueryContext(ctx, q, formatTime(v.now()))
	if err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "scanning alias vectors")
	}
	defer func() { _ = rows.Close() }()

	var recs []store.AliasRecord
	for rows.Next() {
		var rec store.AliasRecord
		var blob []byte
		var created, expires string

		if err := rows.Scan(&rec.Text, &rec.TopicID, &blob, &created, &expires); err != nil {
			return nil, topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "scanning alias row")
		}
		rec.Embedding = decodeVector(blob)
		rec.CreatedAt = parseTime(created)
		rec.ExpiresAt = parseTime(expires)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "iterating alias rows")
	}

	return recs, nil
}

// Delete removes a single alias mapping.
func (v *VectorStore) Delete(ctx context.Context, aliasText string) error {
	text := slug.NormalizeAlias(aliasText)
	if _, err := v.db.ExecContext(ctx, `DELETE FROM alias_vectors WHERE alias = ?`, text); err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "deleting alias vector",
			topiqerr.FieldAlias(text))
	}
	return nil
}

// DeleteTopic removes every alias mapped to the given topic. Used when
// a topic is dropped from the canonical store.
func (v *VectorStore) DeleteTopic(ctx context.Context, topicID string) error {
	if _, err := v.db.ExecContext(ctx, `DELETE FROM alias_vectors WHERE topic_id = ?`, topicID); err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "deleting topic vectors",
			topiqerr.FieldTopic(topicID))
	}
	return nil
}

// Expire sweeps records past their TTL.
func (v *VectorStore) Expire(ctx context.Context) (int64, error) {
	res, err := v.db.ExecContext(ctx, `DELETE FROM alias_vectors WHERE expires_at <= ?`, formatTime(v.now()))
	if err != nil {
		return 0, topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "expiring alias vectors")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "counting expired alias vectors")
	}
	if n > 0 {
		v.logger.Debug("expired alias vectors", "count", n)
	}
	return n, nil
}

// Count reports the number of live alias vectors.
func (v *VectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alias_vectors WHERE expires_at > ?`, formatTime(v.now())).Scan(&n)
	if err != nil {
		return 0, topiqerr.Wrap(err, topiqerr.CodeStoreVectorUnavailable, "counting alias vectors")
	}
	return n, nil
}

// Close closes the underlying database connection.
func (v *VectorStore) Close() error {
	return v.db.Close()
}
