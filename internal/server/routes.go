// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/topiq-dev/topiq/internal/store"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "cache-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Cache statistics",
		Tags:        []string{"system"},
	}, s.handleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-topic",
		Method:      http.MethodGet,
		Path:        "/api/v1/topics/{id}",
		Summary:     "Get a cached topic",
		Tags:        []string{"topics"},
	}, s.handleGetTopic)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-topic",
		Method:      http.MethodDelete,
		Path:        "/api/v1/topics/{id}",
		Summary:     "Evict a topic and its aliases",
		Tags:        []string{"topics"},
	}, s.handleDeleteTopic)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-topic-aliases",
		Method:      http.MethodGet,
		Path:        "/api/v1/topics/{id}/aliases",
		Summary:     "List a topic's aliases",
		Tags:        []string{"topics"},
	}, s.handleListAliases)
}

// --- Request/Response types for huma ---

type statsOutput struct {
	Body struct {
		Topics  int64 `json:"topics" doc:"Live cached topics"`
		Aliases int64 `json:"aliases" doc:"Registered topic aliases"`
		Vectors int64 `json:"vectors" doc:"Live alias embeddings"`
	}
}

type topicInput struct {
	ID string `path:"id"`
}

type topicOutput struct {
	Body struct {
		ID        string        `json:"id"`
		Payload   store.Payload `json:"payload"`
		CreatedAt string        `json:"created_at"`
		ExpiresAt string        `json:"expires_at"`
	}
}

type deleteTopicOutput struct {
	Body struct {
		Deleted string `json:"deleted"`
	}
}

type aliasesOutput struct {
	Body struct {
		TopicID string   `json:"topic_id"`
		Aliases []string `json:"aliases"`
	}
}

// --- Handlers ---

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*statsOutput, error) {
	stats, err := s.services.Topics.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading cache stats")
	}
	vectors, err := s.services.Vectors.Count(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("counting alias vectors")
	}

	out := &statsOutput{}
	out.Body.Topics = stats.Topics
	out.Body.Aliases = stats.Aliases
	out.Body.Vectors = vectors
	return out, nil
}

func (s *Server) handleGetTopic(ctx context.Context, in *topicInput) (*topicOutput, error) {
	topic, err := s.services.Topics.Get(ctx, in.ID)
	if err != nil {
		if topiqerr.IsNotFound(err) {
			return nil, huma.Error404NotFound("topic not found: " + in.ID)
		}
		return nil, huma.Error500InternalServerError("reading topic")
	}

	out := &topicOutput{}
	out.Body.ID = topic.ID
	out.Body.Payload = topic.Payload
	out.Body.CreatedAt = topic.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	out.Body.ExpiresAt = topic.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
	return out, nil
}

// handleDeleteTopic evicts a topic along with every alias vector
// pointing at it, so the next matching query re-acquires fresh data.
func (s *Server) handleDeleteTopic(ctx context.Context, in *topicInput) (*deleteTopicOutput, error) {
	if _, err := s.services.Topics.Get(ctx, in.ID); err != nil {
		if topiqerr.IsNotFound(err) {
			return nil, huma.Error404NotFound("topic not found: " + in.ID)
		}
		return nil, huma.Error500InternalServerError("reading topic")
	}

	if err := s.services.Vectors.DeleteTopic(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("deleting topic vectors")
	}
	if err := s.services.Topics.Delete(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("deleting topic")
	}

	out := &deleteTopicOutput{}
	out.Body.Deleted = in.ID
	return out, nil
}

func (s *Server) handleListAliases(ctx context.Context, in *topicInput) (*aliasesOutput, error) {
	if _, err := s.services.Topics.Get(ctx, in.ID); err != nil {
		if topiqerr.IsNotFound(err) {
			return nil, huma.Error404NotFound("topic not found: " + in.ID)
		}
		return nil, huma.Error500InternalServerError("reading topic")
	}

	aliases, err := s.services.Topics.ListAliases(ctx, in.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing aliases")
	}

	out := &aliasesOutput{}
	out.Body.TopicID = in.ID
	out.Body.Aliases = aliases
	return out, nil
}
