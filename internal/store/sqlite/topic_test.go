// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiq-dev/topiq/internal/store"
	"github.com/topiq-dev/topiq/internal/store/sqlite"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

func newTopicStore(t *testing.T) *sqlite.TopicStore {
	t.Helper()
	ts, err := sqlite.NewTopicStore(filepath.Join(t.TempDir(), "test.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ts.Close() })
	return ts
}

func samplePayload() store.Payload {
	return store.Payload{
		"summary": store.TextValue("Registration opens two weeks before each semester."),
		"steps":   store.ListValue("log in", "select courses", "confirm"),
		"contacts": store.MapValue(map[string]string{
			"registrar": "registrar@example.edu",
		}),
	}
}

func TestTopicStorePutGet(t *testing.T) {
	ctx := context.Background()
	ts := newTopicStore(t)

	require.NoError(t, ts.Put(ctx, &store.Topic{ID: "registration", Payload: samplePayload()}))

	topic, err := ts.Get(ctx, "registration")
	require.NoError(t, err)
	assert.Equal(t, "registration", topic.ID)
	assert.Equal(t, samplePayload(), topic.Payload)
	assert.False(t, topic.CreatedAt.IsZero())
}

func TestTopicStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	ts := newTopicStore(t)

	_, err := ts.Get(ctx, "nope")
	require.Error(t, err)
	assert.True(t, topiqerr.IsNotFound(err))
}

func TestTopicStorePutValidation(t *testing.T) {
	ctx := context.Background()
	ts := newTopicStore(t)

	err := ts.Put(ctx, &store.Topic{ID: ""})
	require.Error(t, err)
	assert.True(t, topiqerr.IsInvalidInput(err))
}

func TestTopicStorePutReplaces(t *testing.T) {
	ctx := context.Background()
	ts := newTopicStore(t)

	require.NoError(t, ts.Put(ctx, &store.Topic{ID: "t", Payload: store.Payload{
		"summary": store.TextValue("old"),
		"extra":   store.TextValue("dropped on replace"),
	}}))
	require.NoError(t, ts.Put(ctx, &store.Topic{ID: "t", Payload: store.Payload{
		"summary": store.TextValue("new"),
	}}))

	topic, err := ts.Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "new", topic.Payload["summary"].Text)
	assert.NotContains(t, topic.Payload, "extra")
}

func TestTopicStoreAliases(t *testing.T) {
	ctx := context.Background()
	ts := newTopicStore(t)

	require.NoError(t, ts.Put(ctx, &store.Topic{ID: "t", Payload: samplePayload()}))
	require.NoError(t, ts.AddAlias(ctx, "t", "Registration Deadlines"))
	require.NoError(t, ts.AddAlias(ctx, "t", "registration deadlines")) // same after normalization
	require.NoError(t, ts.AddAlias(ctx, "t", "when does registration close"))

	aliases, err := ts.ListAliases(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"registration deadlines", "when does registration close"}, aliases)
}

func TestTopicStoreExpiry(t *testing.T) {
	ctx := context.Background()
	ts := newTopicStore(t)

	now := time.Now()
	ts.SetClock(func() time.Time { return now })

	require.NoError(t, ts.Put(ctx, &store.Topic{ID: "t", Payload: samplePayload()}))
	require.NoError(t, ts.AddAlias(ctx, "t", "some alias"))

	ts.SetClock(func() time.Time { return now.Add(2 * time.Hour) })

	_, err := ts.Get(ctx, "t")
	require.Error(t, err)
	assert.True(t, topiqerr.IsNotFound(err))

	n, err := ts.Expire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The alias index rows went with the topic.
	aliases, err := ts.ListAliases(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestTopicStoreDelete(t *testing.T) {
	ctx := context.Background()
	ts := newTopicStore(t)

	require.NoError(t, ts.Put(ctx, &store.Topic{ID: "t", Payload: samplePayload()}))
	require.NoError(t, ts.AddAlias(ctx, "t", "alias"))

	require.NoError(t, ts.Delete(ctx, "t"))

	_, err := ts.Get(ctx, "t")
	assert.True(t, topiqerr.IsNotFound(err))

	aliases, err := ts.ListAliases(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestTopicStoreStats(t *testing.T) {
	ctx := context.Background()
	ts := newTopicStore(t)

	require.NoError(t, ts.Put(ctx, &store.Topic{ID: "a", Payload: samplePayload()}))
	require.NoError(t, ts.Put(ctx, &store.Topic{ID: "b", Payload: samplePayload()}))
	require.NoError(t, ts.AddAlias(ctx, "a", "alias one"))
	require.NoError(t, ts.AddAlias(ctx, "a", "alias two"))

	stats, err := ts.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Topics)
	assert.Equal(t, int64(2), stats.Aliases)
}
