// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

// Package populate expands freshly cached topics with alias variants
// in the background. Each topic is populated by at most one goroutine
// at a time; a second trigger while one is running is dropped, not
// queued. Population is best effort end to end: a failed variant is
// skipped, a failed run is logged, and nothing propagates back to the
// query that triggered it.
package populate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/topiq-dev/topiq/internal/provider"
	"github.com/topiq-dev/topiq/internal/slug"
	"github.com/topiq-dev/topiq/internal/store"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// DefaultTimeout bounds one population run.
const DefaultTimeout = 2 * time.Minute

// Pipeline generates, embeds, and stores alias variants for topics.
type Pipeline struct {
	generator provider.AliasGenerator
	embedder  provider.Embedder
	vectors   store.VectorStore
	topics    store.TopicStore
	timeout   time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}

	wg sync.WaitGroup
}

// New creates a Pipeline over the given collaborators.
func New(generator provider.AliasGenerator, embedder provider.Embedder, vectors store.VectorStore, topics store.TopicStore) *Pipeline {
	return &Pipeline{
		generator: generator,
		embedder:  embedder,
		vectors:   vectors,
		topics:    topics,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
		inflight:  make(map[string]struct{}),
	}
}

// SetTimeout overrides the per-run deadline.
func (p *Pipeline) SetTimeout(d time.Duration) { p.timeout = d }

// Schedule starts a background population run for the topic. It
// returns immediately: true if a run was started, false if one is
// already in flight for this topic. The run detaches from the
// caller's context so a finished request does not cancel it.
func (p *Pipeline) Schedule(topicID, originQuery string) bool {
	if !p.acquire(topicID) {
		p.logger.Debug("population already in flight", "topic", topicID)
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.release(topicID)

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.run(ctx, topicID, originQuery); err != nil {
			p.logger.Warn("population run failed",
				"error", topiqerr.Wrap(err, topiqerr.CodePopulateFailure, "populating topic", topiqerr.FieldTopic(topicID)))
		}
	}()
	return true
}

// Wait blocks until all in-flight runs finish. For shutdown and tests.
func (p *Pipeline) Wait() { p.wg.Wait() }

// acquire atomically claims the topic for population.
func (p *Pipeline) acquire(topicID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[topicID]; busy {
		return false
	}
	p.inflight[topicID] = struct{}{}
	return true
}

func (p *Pipeline) release(topicID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, topicID)
}

// run executes one population pass: generate variants, filter them,
// then embed and store each one independently.
func (p *Pipeline) run(ctx context.Context, topicID, originQuery string) error {
	variants, err := p.generator.GenerateAliases(ctx, topicID, originQuery)
	if err != nil {
		return topiqerr.Wrap(err, topiqerr.CodePopulateGeneratorError, "generating alias variants")
	}

	existing, err := p.topics.ListAliases(ctx, topicID)
	if err != nil {
		p.logger.Warn("listing existing aliases failed, deduping against generated set only",
			"topic", topicID, "error", err)
	}

	generated := len(variants)
	variants = filterVariants(variants, originQuery, existing)
	if len(variants) == 0 {
		p.logger.Debug("no usable alias variants", "topic", topicID)
		return nil
	}

	var stored int
	for _, variant := range variants {
		if ctx.Err() != nil {
			break
		}
		if err := p.storeVariant(ctx, topicID, variant); err != nil {
			p.logger.Warn("skipping alias variant",
				"topic", topicID, "alias", variant, "error", err)
			continue
		}
		stored++
	}

	p.logger.Info("population run complete",
		"topic", topicID, "generated", generated, "accepted", len(variants), "stored", stored)
	return nil
}

func (p *Pipeline) storeVariant(ctx context.Context, topicID, variant string) error {
	embedding, err := p.embedder.Embed(ctx, variant)
	if err != nil {
		return err
	}
	if err := p.vectors.Put(ctx, store.AliasRecord{
		Text:      variant,
		TopicID:   topicID,
		Embedding: embedding,
	}); err != nil {
		return err
	}
	return p.topics.AddAlias(ctx, topicID, variant)
}

// filterVariants normalizes variants, drops empties, the origin query
// itself, and anything already registered for the topic, then
// deduplicates while preserving order.
func filterVariants(variants []string, originQuery string, existing []string) []string {
	seen := make(map[string]struct{}, len(variants)+len(existing)+1)
	seen[slug.NormalizeAlias(originQuery)] = struct{}{}
	for _, alias := range existing {
		seen[slug.NormalizeAlias(alias)] = struct{}{}
	}

	var out []string
	for _, v := range variants {
		text := slug.NormalizeAlias(v)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}
