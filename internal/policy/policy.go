// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

// Package policy turns raw similarity scores into resolution
// decisions. Three tiers: confident matches resolve immediately,
// ambiguous matches go to an arbiter, and everything else is a miss.
// Every failure on the way degrades to a miss rather than surfacing:
// a wrong "no match" costs one redundant acquisition, a wrong match
// serves a stale answer.
package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/topiq-dev/topiq/internal/provider"
	"github.com/topiq-dev/topiq/internal/resolver"
	"github.com/topiq-dev/topiq/internal/store"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// Default decision thresholds. Both bounds are inclusive at the lower
// edge: a score of exactly ConfidentThreshold is confident, exactly
// AmbiguousThreshold is ambiguous.
const (
	DefaultConfidentThreshold = 0.70
	DefaultAmbiguousThreshold = 0.50
	DefaultArbiterTimeout     = 10 * time.Second
)

// Outcome labels a resolution decision.
type Outcome string

const (
	// OutcomeConfident means the score cleared the confident threshold.
	OutcomeConfident Outcome = "confident"
	// OutcomeArbitrated means an ambiguous score was confirmed by the
	// arbiter.
	OutcomeArbitrated Outcome = "arbitrated"
	// OutcomeNone means no usable match: low score, rejected by the
	// arbiter, or degraded from a failure.
	OutcomeNone Outcome = "none"
)

// Decision is the result of resolving one query against the cache.
type Decision struct {
	Outcome Outcome
	TopicID string
	Alias   string
	Score   float64
}

// Hit reports whether the decision points at a cached topic.
func (d Decision) Hit() bool { return d.Outcome != OutcomeNone }

// Config tunes the decision thresholds.
type Config struct {
	ConfidentThreshold float64
	AmbiguousThreshold float64
	ArbiterTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConfidentThreshold == 0 {
		c.ConfidentThreshold = DefaultConfidentThreshold
	}
	if c.AmbiguousThreshold == 0 {
		c.AmbiguousThreshold = DefaultAmbiguousThreshold
	}
	if c.ArbiterTimeout == 0 {
		c.ArbiterTimeout = DefaultArbiterTimeout
	}
	return c
}

// Policy resolves queries end to end: embed, scan, tier, arbitrate,
// and reinforce.
type Policy struct {
	cfg      Config
	embedder provider.Embedder
	resolver *resolver.Resolver
	arbiter  provider.Arbiter
	vectors  store.VectorStore
	topics   store.TopicStore
	logger   *slog.Logger
}

// New creates a Policy. The arbiter may be nil, in which case
// ambiguous matches degrade to misses.
func New(cfg Config, embedder provider.Embedder, res *resolver.Resolver, arbiter provider.Arbiter, vectors store.VectorStore, topics store.TopicStore) *Policy {
	return &Policy{
		cfg:      cfg.withDefaults(),
		embedder: embedder,
		resolver: res,
		arbiter:  arbiter,
		vectors:  vectors,
		topics:   topics,
		logger:   slog.Default(),
	}
}

// Resolve decides whether queryText maps to a cached topic.
//
// A confident hit also writes the query text back into the vector
// store as a new alias for the matched topic, so the exact phrasing
// resolves at full similarity next time. Reinforcement failure is
// logged and ignored; the hit stands either way.
func (p *Policy) Resolve(ctx context.Context, queryText string) (Decision, []float32) {
	embedding, err := p.embedder.Embed(ctx, queryText)
	if err != nil {
		p.logger.Warn("embedding failed, treating as miss", "error", err)
		return Decision{Outcome: OutcomeNone}, nil
	}

	match, err := p.resolver.Resolve(ctx, embedding)
	if err != nil {
		p.logger.Warn("similarity scan failed, treating as miss", "error", err)
		return Decision{Outcome: OutcomeNone}, embedding
	}
	if !match.Found() {
		return Decision{Outcome: OutcomeNone}, embedding
	}

	switch {
	case match.Score >= p.cfg.ConfidentThreshold:
		p.reinforce(ctx, queryText, embedding, match.TopicID)
		return Decision{
			Outcome: OutcomeConfident,
			TopicID: match.TopicID,
			Alias:   match.Alias,
			Score:   match.Score,
		}, embedding

	case match.Score >= p.cfg.AmbiguousThreshold:
		if p.arbitrate(ctx, queryText, match) {
			// A confirmed match reinforces like a confident one.
			p.reinforce(ctx, queryText, embedding, match.TopicID)
			return Decision{
				Outcome: OutcomeArbitrated,
				TopicID: match.TopicID,
				Alias:   match.Alias,
				Score:   match.Score,
			}, embedding
		}
		return Decision{Outcome: OutcomeNone, Score: match.Score}, embedding

	default:
		return Decision{Outcome: OutcomeNone, Score: match.Score}, embedding
	}
}

// arbitrate asks the arbiter to confirm an ambiguous match within the
// configured timeout. Any failure, including timeout, counts as no.
func (p *Policy) arbitrate(ctx context.Context, queryText string, match resolver.Match) bool {
	if p.arbiter == nil {
		return false
	}

	summary := p.payloadSummary(ctx, match.TopicID)

	arbCtx, cancel := context.WithTimeout(ctx, p.cfg.ArbiterTimeout)
	defer cancel()

	confirmed, err := p.arbiter.Confirm(arbCtx, queryText, match.Alias, summary)
	if err != nil {
		code := topiqerr.CodeResolveArbiterFailure
		if arbCtx.Err() != nil {
			code = topiqerr.CodeResolveArbiterTimeout
		}
		p.logger.Warn("arbiter failed, treating as miss",
			"error", topiqerr.Wrap(err, code, "arbitrating ambiguous match", topiqerr.FieldTopic(match.TopicID)),
			"alias", match.Alias,
			"score", match.Score,
		)
		return false
	}
	return confirmed
}

// payloadSummary fetches a short description of the candidate topic
// for the arbiter prompt. Best effort; an empty summary is fine.
func (p *Policy) payloadSummary(ctx context.Context, topicID string) string {
	topic, err := p.topics.Get(ctx, topicID)
	if err != nil {
		return ""
	}
	return topic.Payload.Summary()
}

// reinforce stores the query text as a fresh alias for the topic.
func (p *Policy) reinforce(ctx context.Context, queryText string, embedding []float32, topicID string) {
	err := p.vectors.Put(ctx, store.AliasRecord{
		Text:      queryText,
		TopicID:   topicID,
		Embedding: embedding,
	})
	if err == nil {
		err = p.topics.AddAlias(ctx, topicID, queryText)
	}
	if err != nil {
		p.logger.Warn("alias reinforcement failed",
			"error", err, "topic", topicID)
	}
}
