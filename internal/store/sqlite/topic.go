// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/topiq-dev/topiq/internal/slug"
	"github.com/topiq-dev/topiq/internal/store"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// Compile-time interface check.
var _ store.TopicStore = (*TopicStore)(nil)

// TopicStore implements store.TopicStore backed by SQLite: canonical
// payloads in one table, the alias reverse index in another.
type TopicStore struct {
	db     *sql.DB
	ttl    time.Duration
	now    store.Clock
	logger *slog.Logger
}

// NewTopicStore opens (or creates) a SQLite database at dbPath and
// initialises the topic and alias-index tables. ttl governs expiry.
func NewTopicStore(dbPath string, ttl time.Duration) (*TopicStore, error) {
	db, err := openDB(dbPath, topiqerr.CodeStoreTopicUnavailable)
	if err != nil {
		return nil, err
	}

	if err := migrateTopics(db); err != nil {
		_ = db.Close()
		return nil, topiqerr.Wrapf(err, topiqerr.CodeStoreDatabaseFailure, "migrating topic tables")
	}

	return &TopicStore{db: db, ttl: ttl, now: time.Now, logger: slog.Default()}, nil
}

func migrateTopics(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS topics (
	id         TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS topic_aliases (
	topic_id   TEXT NOT NULL,
	alias      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(topic_id, alias)
);

CREATE INDEX IF NOT EXISTS idx_topic_aliases_topic ON topic_aliases(topic_id);
`
	_, err := db.Exec(ddl)
	return err
}

// SetClock overrides the time source. Intended for expiry tests.
func (t *TopicStore) SetClock(now store.Clock) { t.now = now }

// Get retrieves a topic payload. Expired topics report not-found.
func (t *TopicStore) Get(ctx context.Context, id string) (*store.Topic, error) {
	const q = `SELECT payload, created_at, expires_at FROM topics WHERE id = ?`

	var payloadJSON, created, expires string
	err := t.db.QueryRowContext(ctx, q, id).Scan(&payloadJSON, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, topiqerr.Wrap(store.ErrNotFound, topiqerr.CodeStoreTopicNotFound, "topic not found",
			topiqerr.FieldTopic(id))
	}
	if err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "getting topic",
			topiqerr.FieldTopic(id))
	}

	topic := &store.Topic{
		ID:        id,
		CreatedAt: parseTime(created),
		ExpiresAt: parseTime(expires),
	}
	if !topic.ExpiresAt.After(t.now()) {
		return nil, topiqerr.Wrap(store.ErrNotFound, topiqerr.CodeStoreTopicNotFound, "topic expired",
			topiqerr.FieldTopic(id))
	}

	if err := json.Unmarshal([]byte(payloadJSON), &topic.Payload); err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeStoreDatabaseFailure, "unmarshalling topic payload",
			topiqerr.FieldTopic(id))
	}
	return topic, nil
}

// Put replaces the topic payload wholesale and refreshes expiry.
func (t *TopicStore) Put(ctx context.Context, topic *store.Topic) error {
	if topic == nil || topic.ID == "" {
		return topiqerr.New(topiqerr.CodeStoreInvalidInput, "topic id is required")
	}

	now := t.now()
	created := topic.CreatedAt
	if created.IsZero() {
		created = now
	}
	expires := topic.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(t.ttl)
	}

	payloadJSON, err := json.Marshal(topic.Payload)
	if err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreDatabaseFailure, "marshalling topic payload",
			topiqerr.FieldTopic(topic.ID))
	}

	const q = `INSERT INTO topics (id, payload, created_at, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	payload = excluded.payload,
	expires_at = excluded.expires_at`

	if _, err := t.db.ExecContext(ctx, q, topic.ID, string(payloadJSON), formatTime(created), formatTime(expires)); err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "putting topic",
			topiqerr.FieldTopic(topic.ID))
	}
	return nil
}

// ListAliases returns the reverse index for a topic.
func (t *TopicStore) ListAliases(ctx context.Context, id string) ([]string, error) {
	const q = `SELECT alias FROM topic_aliases WHERE topic_id = ? ORDER BY created_at, alias`

	rows, err := t.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "listing topic aliases",
			topiqerr.FieldTopic(id))
	}
	defer func() { _ = rows.Close() }()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "scanning alias row")
		}
		aliases = append(aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "iterating alias rows")
	}

	return aliases, nil
}

// AddAlias registers an alias in the topic's reverse index. Re-adding
// an existing alias is a no-op.
func (t *TopicStore) AddAlias(ctx context.Context, id, aliasText string) error {
	text := slug.NormalizeAlias(aliasText)
	if id == "" || text == "" {
		return topiqerr.New(topiqerr.CodeStoreInvalidInput, "topic id and alias text are required",
			topiqerr.FieldTopic(id))
	}

	const q = `INSERT INTO topic_aliases (topic_id, alias, created_at)
VALUES (?, ?, ?)
ON CONFLICT(topic_id, alias) DO NOTHING`

	if _, err := t.db.ExecContext(ctx, q, id, text, formatTime(t.now())); err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "adding topic alias",
			topiqerr.FieldTopic(id), topiqerr.FieldAlias(text))
	}
	return nil
}

// Delete removes the topic and its alias index.
func (t *TopicStore) Delete(ctx context.Context, id string) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "beginning delete transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE id = ?`, id); err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "deleting topic",
			topiqerr.FieldTopic(id))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM topic_aliases WHERE topic_id = ?`, id); err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "deleting topic aliases",
			topiqerr.FieldTopic(id))
	}

	if err := tx.Commit(); err != nil {
		return topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "committing topic delete",
			topiqerr.FieldTopic(id))
	}
	return nil
}

// Stats reports live topic and alias counts.
func (t *TopicStore) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats

	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics WHERE expires_at > ?`, formatTime(t.now())).Scan(&stats.Topics)
	if err != nil {
		return store.Stats{}, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "counting topics")
	}

	err = t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topic_aliases`).Scan(&stats.Aliases)
	if err != nil {
		return store.Stats{}, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "counting aliases")
	}

	return stats, nil
}

// Expire sweeps topics (and their alias index rows) past TTL.
func (t *TopicStore) Expire(ctx context.Context) (int64, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "beginning expiry transaction")
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(t.now())

	const orphanQ = `DELETE FROM topic_aliases WHERE topic_id IN
(SELECT id FROM topics WHERE expires_at <= ?)`
	if _, err := tx.ExecContext(ctx, orphanQ, now); err != nil {
		return 0, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "expiring topic aliases")
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "expiring topics")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "counting expired topics")
	}

	if err := tx.Commit(); err != nil {
		return 0, topiqerr.Wrap(err, topiqerr.CodeStoreTopicUnavailable, "committing topic expiry")
	}
	if n > 0 {
		t.logger.Debug("expired topics", "count", n)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (t *TopicStore) Close() error {
	return t.db.Close()
}
