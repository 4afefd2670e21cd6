// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

// Package resolver finds the stored alias most similar to a query
// embedding. The linear cosine scan is intentional: the alias store is
// bounded by topics × aliases-per-topic, not query volume. A scale-up
// would swap in an ANN index behind the same Resolve contract.
package resolver

import (
	"context"
	"log/slog"
	"math"

	"github.com/topiq-dev/topiq/internal/store"
)

// Match is the outcome of one similarity scan. Alias and TopicID are
// empty when nothing scored above zero. Score is clamped to [0,1].
type Match struct {
	Alias   string
	TopicID string
	Score   float64
}

// Found reports whether the scan produced a usable candidate.
func (m Match) Found() bool { return m.TopicID != "" }

// Resolver scans a VectorStore for the best-matching alias.
type Resolver struct {
	vectors store.VectorStore
	logger  *slog.Logger
}

// New creates a Resolver over the given vector store.
func New(vectors store.VectorStore) *Resolver {
	return &Resolver{vectors: vectors, logger: slog.Default()}
}

// Resolve returns the highest-scoring alias for the query embedding.
// Ties break toward the oldest record, which favors established
// aliases and keeps results deterministic. An empty store yields a
// zero Match; store errors propagate for the caller to degrade on.
func (r *Resolver) Resolve(ctx context.Context, query []float32) (Match, error) {
	recs, err := r.vectors.All(ctx)
	if err != nil {
		return Match{}, err
	}
	if len(recs) == 0 {
		return Match{}, nil
	}

	var best Match
	var bestRec store.AliasRecord
	bestScore := math.Inf(-1)

	for _, rec := range recs {
		score := Cosine(query, rec.Embedding)
		if score > bestScore || (score == bestScore && rec.CreatedAt.Before(bestRec.CreatedAt)) {
			bestScore = score
			bestRec = rec
		}
	}

	best = Match{
		Alias:   bestRec.Text,
		TopicID: bestRec.TopicID,
		Score:   max(bestScore, 0),
	}

	r.logger.Debug("similarity scan",
		"candidates", len(recs),
		"best_alias", best.Alias,
		"topic", best.TopicID,
		"score", best.Score,
	)
	return best, nil
}

// Cosine computes the cosine similarity dot(a,b)/(‖a‖·‖b‖) in [-1,1].
// It is 0 when either vector has zero norm or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
