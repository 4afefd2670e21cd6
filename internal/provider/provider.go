// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

// Package provider defines the external collaborators the cache engine
// depends on: embedding, arbitration, data acquisition, alias-variant
// generation, and answer synthesis. Implementations live in
// subpackages; the engine only ever sees these contracts.
package provider

import (
	"context"

	"github.com/topiq-dev/topiq/internal/store"
)

// Embedder computes fixed-dimension embedding vectors. Calls on
// identical text must yield vectors with self-similarity 1.0.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Arbiter makes the final call on an ambiguous similarity match: does
// the query refer to the same topic as the candidate alias? It must
// answer within the context deadline; the caller treats deadline
// expiry as failure and degrades the match to a miss.
type Arbiter interface {
	Confirm(ctx context.Context, queryText, candidateAlias, payloadSummary string) (bool, error)
}

// Acquirer produces a structured payload for a query the cache could
// not resolve. Hints are optional resource URLs relevant to the topic.
type Acquirer interface {
	Acquire(ctx context.Context, queryText string, hints []string) (store.Payload, error)
}

// AliasGenerator proposes alias variants for a topic across phrasings,
// dialects, and languages. The returned slice may contain duplicates
// or empty strings; the population pipeline filters them.
type AliasGenerator interface {
	GenerateAliases(ctx context.Context, topicID, originQuery string) ([]string, error)
}

// Synthesizer turns a payload into a natural-language answer, streamed
// as ordered events. The channel is closed after a terminal EventDone
// or EventError.
type Synthesizer interface {
	Synthesize(ctx context.Context, payload store.Payload, queryText string) (<-chan AnswerEvent, error)
}

// EventType discriminates answer stream events.
type EventType string

const (
	// EventTextDelta carries an incremental chunk of answer text.
	EventTextDelta EventType = "text_delta"
	// EventDone marks successful completion of the stream.
	EventDone EventType = "done"
	// EventError marks abnormal termination; Error holds the detail.
	EventError EventType = "error"
)

// AnswerEvent is one chunk of a streamed answer.
type AnswerEvent struct {
	Type  EventType
	Text  string
	Error string
}
