// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package server

import (
	"context"

	"github.com/topiq-dev/topiq/internal/engine"
	"github.com/topiq-dev/topiq/internal/store"
)

// QueryEngine answers queries as event streams. Implemented by
// engine.Engine; an interface so handler tests can stub it.
type QueryEngine interface {
	AskStream(ctx context.Context, queryText string) (<-chan engine.Event, error)
}

// Services bundles the dependencies the HTTP handlers call into.
type Services struct {
	Engine  QueryEngine
	Topics  store.TopicStore
	Vectors store.VectorStore
}

// RegisterServices sets the service dependencies and registers the
// REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}
