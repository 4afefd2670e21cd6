// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

// Package engine orchestrates one query end to end: resolve against
// the cache, serve the cached payload or acquire a fresh one, stream
// the synthesized answer, and only then schedule background alias
// population. The caller always gets an answer stream; cache and
// provider failures degrade the path, they never kill the query.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/topiq-dev/topiq/internal/policy"
	"github.com/topiq-dev/topiq/internal/provider"
	"github.com/topiq-dev/topiq/internal/slug"
	"github.com/topiq-dev/topiq/internal/store"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// EventType discriminates query stream events.
type EventType string

const (
	// EventMeta is always first: resolution metadata for the query.
	EventMeta EventType = "meta"
	// EventTextDelta carries an incremental chunk of answer text.
	EventTextDelta EventType = "text_delta"
	// EventError reports a synthesis failure after meta was sent.
	EventError EventType = "error"
	// EventDone terminates every stream.
	EventDone EventType = "done"
)

// Meta describes how a query was resolved.
type Meta struct {
	QueryID  string         `json:"query_id"`
	TopicID  string         `json:"topic_id,omitempty"`
	Outcome  policy.Outcome `json:"outcome"`
	Score    float64        `json:"score"`
	CacheHit bool           `json:"cache_hit"`
	Language string         `json:"language"`
}

// Event is one element of a query answer stream.
type Event struct {
	Type  EventType `json:"type"`
	Meta  *Meta     `json:"meta,omitempty"`
	Text  string    `json:"text,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Answer is a fully collected query result.
type Answer struct {
	Meta Meta   `json:"meta"`
	Text string `json:"text"`
}

// Engine wires the cache, the decision policy, and the providers into
// the query path.
type Engine struct {
	policy      *policy.Policy
	acquirer    provider.Acquirer
	synthesizer provider.Synthesizer
	pipeline    Scheduler
	vectors     store.VectorStore
	topics      store.TopicStore
	resources   []string
	logger      *slog.Logger
}

// Scheduler triggers background population for a topic.
type Scheduler interface {
	Schedule(topicID, originQuery string) bool
}

// New creates an Engine. resources are optional URLs handed to the
// acquirer as research hints.
func New(pol *policy.Policy, acquirer provider.Acquirer, synthesizer provider.Synthesizer, pipeline Scheduler, vectors store.VectorStore, topics store.TopicStore, resources []string) *Engine {
	return &Engine{
		policy:      pol,
		acquirer:    acquirer,
		synthesizer: synthesizer,
		pipeline:    pipeline,
		vectors:     vectors,
		topics:      topics,
		resources:   resources,
		logger:      slog.Default(),
	}
}

// AskStream answers a query as an ordered event stream: one meta
// event, zero or more text deltas, then done (or error then done).
// Population for the resolved topic is scheduled only after the
// final answer event has been dispatched.
func (e *Engine) AskStream(ctx context.Context, queryText string) (<-chan Event, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, topiqerr.New(topiqerr.CodeServerRequestInvalid, "query text is required")
	}

	events := make(chan Event, 100)
	go func() {
		defer close(events)
		e.serve(ctx, queryText, events)
	}()
	return events, nil
}

// Ask answers a query synchronously by collecting the stream.
func (e *Engine) Ask(ctx context.Context, queryText string) (*Answer, error) {
	events, err := e.AskStream(ctx, queryText)
	if err != nil {
		return nil, err
	}

	var answer Answer
	var b strings.Builder
	for ev := range events {
		switch ev.Type {
		case EventMeta:
			answer.Meta = *ev.Meta
		case EventTextDelta:
			b.WriteString(ev.Text)
		case EventError:
			msg := ev.Error
			// Drain the stream so the serving goroutine can finish and
			// schedule population instead of blocking on a full buffer.
			for range events {
			}
			return nil, topiqerr.New(topiqerr.CodeSynthesizeFailure, msg,
				topiqerr.FieldQueryID(answer.Meta.QueryID))
		}
	}
	answer.Text = b.String()
	return &answer, nil
}

func (e *Engine) serve(ctx context.Context, queryText string, events chan<- Event) {
	meta := Meta{
		QueryID:  uuid.NewString(),
		Language: slug.DetectLanguage(queryText),
	}
	logger := e.logger.With("query_id", meta.QueryID)

	decision, embedding := e.policy.Resolve(ctx, queryText)
	meta.Outcome = decision.Outcome
	meta.Score = decision.Score

	var payload store.Payload
	var freshTopic string

	if decision.Hit() {
		topic, err := e.topics.Get(ctx, decision.TopicID)
		if err == nil {
			meta.TopicID = decision.TopicID
			meta.CacheHit = true
			payload = topic.Payload
		} else {
			// The alias pointed at a topic that expired underneath it.
			logger.Warn("cached topic gone, falling back to acquisition",
				"topic", decision.TopicID, "error", err)
			meta.Outcome = policy.OutcomeNone
		}
	}

	if payload == nil {
		acquired, err := e.acquirer.Acquire(ctx, queryText, e.resources)
		if err != nil {
			logger.Warn("acquisition failed, serving fallback answer", "error", err)
			events <- Event{Type: EventMeta, Meta: &meta}
			events <- Event{Type: EventTextDelta, Text: fallbackAnswer(meta.Language)}
			events <- Event{Type: EventDone}
			return
		}
		payload = acquired
		freshTopic = e.persist(ctx, logger, queryText, embedding, acquired)
		meta.TopicID = freshTopic
	}

	events <- Event{Type: EventMeta, Meta: &meta}
	e.streamSynthesis(ctx, logger, payload, queryText, meta.Language, events)

	// Population runs for hits too: a re-confirmed topic may still be
	// missing alias variants from an earlier failed or partial run. The
	// pipeline's in-flight set and dedupe keep this cheap.
	if meta.TopicID != "" {
		e.pipeline.Schedule(meta.TopicID, queryText)
	}
}

// streamSynthesis forwards synthesizer events, ending with done. A
// synthesis setup failure downgrades to the fallback answer so the
// stream stays well formed.
func (e *Engine) streamSynthesis(ctx context.Context, logger *slog.Logger, payload store.Payload, queryText, language string, events chan<- Event) {
	answerCh, err := e.synthesizer.Synthesize(ctx, payload, queryText)
	if err != nil {
		logger.Warn("synthesis failed, serving fallback answer", "error", err)
		events <- Event{Type: EventTextDelta, Text: fallbackAnswer(language)}
		events <- Event{Type: EventDone}
		return
	}

	for ev := range answerCh {
		switch ev.Type {
		case provider.EventTextDelta:
			events <- Event{Type: EventTextDelta, Text: ev.Text}
		case provider.EventError:
			logger.Warn("synthesis stream failed", "error", ev.Error)
			events <- Event{Type: EventError, Error: ev.Error}
		}
	}
	events <- Event{Type: EventDone}
}

// persist caches a freshly acquired payload: mint a topic id, store
// the payload, and register the originating query as its first alias.
// Persistence is best effort; a failure means the answer is served
// uncached and the id comes back empty so population is not scheduled.
// Without an embedding the topic is not cached at all — every topic
// must carry at least the alias that created it, or it would be
// unreachable by resolution.
func (e *Engine) persist(ctx context.Context, logger *slog.Logger, queryText string, embedding []float32, payload store.Payload) string {
	if len(embedding) == 0 {
		logger.Warn("no query embedding, serving uncached")
		return ""
	}

	topicID := e.mintTopicID(ctx, queryText)

	if err := e.topics.Put(ctx, &store.Topic{ID: topicID, Payload: payload}); err != nil {
		logger.Warn("caching topic failed, serving uncached", "topic", topicID, "error", err)
		return ""
	}

	err := e.vectors.Put(ctx, store.AliasRecord{
		Text:      queryText,
		TopicID:   topicID,
		Embedding: embedding,
	})
	if err == nil {
		err = e.topics.AddAlias(ctx, topicID, queryText)
	}
	if err != nil {
		logger.Warn("storing originating alias failed", "topic", topicID, "error", err)
	}

	logger.Info("cached new topic", "topic", topicID)
	return topicID
}

// mintTopicID derives a readable identifier from the query, suffixing
// it when the slug is already taken by a live topic.
func (e *Engine) mintTopicID(ctx context.Context, queryText string) string {
	id := slug.Make(queryText)
	if _, err := e.topics.Get(ctx, id); err != nil {
		return id
	}
	return id + "_" + uuid.NewString()[:8]
}

// fallbackAnswer is served when no payload could be produced for the
// query, in the query's language.
func fallbackAnswer(language string) string {
	if language == slug.LangArabic {
		return "عذراً، لا تتوفر لدي معلومات كافية للإجابة على هذا السؤال حالياً. يرجى المحاولة لاحقاً أو إعادة صياغة السؤال."
	}
	return "Sorry, I don't have enough information to answer that right now. Please try again later or rephrase the question."
}
