// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package populate_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiq-dev/topiq/internal/populate"
	"github.com/topiq-dev/topiq/internal/store"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

type stubGenerator struct {
	aliases []string
	err     error

	mu      sync.Mutex
	calls   int
	block   chan struct{} // when set, GenerateAliases waits on it
	started chan struct{} // signalled once per call before blocking
}

func (s *stubGenerator) GenerateAliases(context.Context, string, string) ([]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	return s.aliases, s.err
}

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubEmbedder struct {
	failOn map[string]bool
	calls  atomic.Int64
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.failOn[text] {
		return nil, topiqerr.New(topiqerr.CodeProviderUpstreamFailure, "embed down")
	}
	return []float32{1, 0}, nil
}

type recordingVectors struct {
	mu   sync.Mutex
	puts []store.AliasRecord
}

func (r *recordingVectors) Put(_ context.Context, rec store.AliasRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts = append(r.puts, rec)
	return nil
}
func (r *recordingVectors) All(context.Context) ([]store.AliasRecord, error) { return nil, nil }
func (r *recordingVectors) Delete(context.Context, string) error             { return nil }
func (r *recordingVectors) DeleteTopic(context.Context, string) error        { return nil }
func (r *recordingVectors) Count(context.Context) (int64, error)             { return 0, nil }
func (r *recordingVectors) Expire(context.Context) (int64, error)            { return 0, nil }
func (r *recordingVectors) Close() error                                     { return nil }

func (r *recordingVectors) aliases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.puts))
	for i, rec := range r.puts {
		out[i] = rec.Text
	}
	return out
}

type recordingTopics struct {
	mu      sync.Mutex
	aliases map[string][]string
}

func newRecordingTopics() *recordingTopics {
	return &recordingTopics{aliases: make(map[string][]string)}
}

func (r *recordingTopics) Get(_ context.Context, id string) (*store.Topic, error) {
	return nil, topiqerr.Wrap(store.ErrNotFound, topiqerr.CodeStoreTopicNotFound, "not found")
}
func (r *recordingTopics) Put(context.Context, *store.Topic) error { return nil }
func (r *recordingTopics) ListAliases(_ context.Context, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aliases[id], nil
}
func (r *recordingTopics) AddAlias(_ context.Context, id, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[id] = append(r.aliases[id], alias)
	return nil
}
func (r *recordingTopics) Delete(context.Context, string) error      { return nil }
func (r *recordingTopics) Stats(context.Context) (store.Stats, error) { return store.Stats{}, nil }
func (r *recordingTopics) Close() error                               { return nil }

func TestScheduleStoresVariants(t *testing.T) {
	gen := &stubGenerator{aliases: []string{
		"Registration Deadlines",
		"registration deadlines", // duplicate after normalization
		"",
		"when does registration close",
	}}
	vectors := &recordingVectors{}
	topics := newRecordingTopics()

	p := populate.New(gen, &stubEmbedder{}, vectors, topics)
	require.True(t, p.Schedule("registration", "deadline info"))
	p.Wait()

	assert.ElementsMatch(t,
		[]string{"registration deadlines", "when does registration close"},
		vectors.aliases())
	assert.ElementsMatch(t,
		[]string{"registration deadlines", "when does registration close"},
		topics.aliases["registration"])
}

func TestScheduleDropsOriginQuery(t *testing.T) {
	gen := &stubGenerator{aliases: []string{"Deadline Info", "fresh variant"}}
	vectors := &recordingVectors{}

	p := populate.New(gen, &stubEmbedder{}, vectors, newRecordingTopics())
	require.True(t, p.Schedule("registration", "deadline info"))
	p.Wait()

	assert.Equal(t, []string{"fresh variant"}, vectors.aliases())
}

func TestScheduleSkipsExistingAliases(t *testing.T) {
	gen := &stubGenerator{aliases: []string{"Tuition Payment", "fee settlement"}}
	vectors := &recordingVectors{}
	topics := newRecordingTopics()
	topics.aliases["tuition"] = []string{"tuition payment"}

	p := populate.New(gen, &stubEmbedder{}, vectors, topics)
	require.True(t, p.Schedule("tuition", "how to pay"))
	p.Wait()

	// Aliases already on the topic are not regenerated.
	assert.Equal(t, []string{"fee settlement"}, vectors.aliases())
	assert.Equal(t, []string{"tuition payment", "fee settlement"}, topics.aliases["tuition"])
}

func TestScheduleSingleFlight(t *testing.T) {
	gen := &stubGenerator{
		aliases: []string{"variant"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	p := populate.New(gen, &stubEmbedder{}, &recordingVectors{}, newRecordingTopics())

	require.True(t, p.Schedule("topic-a", "query"))
	<-gen.started

	// A second trigger while the first run holds the topic is dropped.
	assert.False(t, p.Schedule("topic-a", "query"))

	// A different topic is unaffected.
	assert.True(t, p.Schedule("topic-b", "query"))
	<-gen.started

	close(gen.block)
	p.Wait()
	assert.Equal(t, 2, gen.callCount())
}

func TestScheduleReleasesAfterFailure(t *testing.T) {
	gen := &stubGenerator{err: topiqerr.New(topiqerr.CodePopulateGeneratorError, "down")}
	p := populate.New(gen, &stubEmbedder{}, &recordingVectors{}, newRecordingTopics())

	require.True(t, p.Schedule("topic", "query"))
	p.Wait()

	// The failed run released the topic, so a retry is accepted.
	assert.True(t, p.Schedule("topic", "query"))
	p.Wait()
	assert.Equal(t, 2, gen.callCount())
}

func TestScheduleSkipsFailedVariant(t *testing.T) {
	gen := &stubGenerator{aliases: []string{"good one", "bad one", "good two"}}
	embedder := &stubEmbedder{failOn: map[string]bool{"bad one": true}}
	vectors := &recordingVectors{}

	p := populate.New(gen, embedder, vectors, newRecordingTopics())
	require.True(t, p.Schedule("topic", "query"))
	p.Wait()

	assert.ElementsMatch(t, []string{"good one", "good two"}, vectors.aliases())
}

func TestScheduleHonorsTimeout(t *testing.T) {
	gen := &stubGenerator{
		aliases: []string{"variant"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	vectors := &recordingVectors{}

	p := populate.New(gen, &stubEmbedder{}, vectors, newRecordingTopics())
	p.SetTimeout(10 * time.Millisecond)

	require.True(t, p.Schedule("topic", "query"))
	<-gen.started
	time.Sleep(30 * time.Millisecond)
	close(gen.block)
	p.Wait()

	// The run's context expired before any variant was stored.
	assert.Empty(t, vectors.aliases())
}
