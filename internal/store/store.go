// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package store

import (
	"context"
	"time"
)

// VectorStore manages alias embeddings: the alias text → (topic id,
// embedding) mapping scanned by the similarity resolver.
type VectorStore interface {
	// Put upserts an alias record keyed on its normalized text,
	// overwriting any prior mapping and refreshing expiry.
	Put(ctx context.Context, rec AliasRecord) error

	// All returns a snapshot of the live (non-expired) alias records.
	// A stale snapshot is acceptable; a concurrent population run may
	// not be visible yet.
	All(ctx context.Context) ([]AliasRecord, error)

	Delete(ctx context.Context, aliasText string) error

	// DeleteTopic removes every alias mapped to the given topic.
	DeleteTopic(ctx context.Context, topicID string) error

	// Count reports the number of live alias vectors.
	Count(ctx context.Context) (int64, error)

	// Expire removes records past their TTL and reports how many.
	Expire(ctx context.Context) (int64, error)

	Close() error
}

// TopicStore manages canonical topics: payload storage plus the
// topic → aliases reverse index used to avoid duplicate generation.
type TopicStore interface {
	Get(ctx context.Context, id string) (*Topic, error)

	// Put replaces the topic payload wholesale and refreshes expiry.
	Put(ctx context.Context, topic *Topic) error

	ListAliases(ctx context.Context, id string) ([]string, error)
	AddAlias(ctx context.Context, id, aliasText string) error

	// Delete removes the topic and its alias index.
	Delete(ctx context.Context, id string) error

	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Clock abstracts time for TTL logic so tests can control expiry.
type Clock func() time.Time
