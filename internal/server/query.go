// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/topiq-dev/topiq/internal/engine"
)

// QueryRequest is the request body for the query endpoint.
type QueryRequest struct {
	Query string `json:"query" minLength:"1" doc:"Free-text question"`
}

func (s *Server) registerQueryRoute() {
	s.router.Post("/api/v1/query", s.handleQuery)

	// Register the operation in the OpenAPI spec manually. The SSE
	// streaming handler needs raw http.ResponseWriter access, so it
	// cannot use huma's standard handler signature. The chi route above
	// does the actual request handling; this entry documents it.
	minQueryLen := 1
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "query",
		Method:      http.MethodPost,
		Path:        "/api/v1/query",
		Summary:     "Answer a free-text query",
		Description: "Resolve the query against the semantic cache and stream the answer. Set Accept: text/event-stream for SSE, otherwise receive a JSON array of events.",
		Tags:        []string{"query"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"application/json": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{"query"},
						Properties: map[string]*huma.Schema{
							"query": {
								Type:        "string",
								MinLength:   &minQueryLen,
								Description: "Free-text question",
							},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Streaming response (SSE or JSON depending on Accept header)",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{
							Type:        "string",
							Description: "Server-sent event stream",
						},
					},
					"application/json": {
						Schema: &huma.Schema{
							Type: "object",
							Properties: map[string]*huma.Schema{
								"events": {
									Type:        "array",
									Description: "Collected events as JSON objects",
									Items:       &huma.Schema{Type: "object"},
								},
							},
						},
					},
				},
			},
			"422": {Description: "Validation error (missing query)"},
			"503": {Description: "Query engine not configured"},
		},
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, `{"error":"query is required"}`, http.StatusUnprocessableEntity)
		return
	}

	if s.services == nil || s.services.Engine == nil {
		http.Error(w, `{"error":"query engine not configured"}`, http.StatusServiceUnavailable)
		return
	}

	events, err := s.services.Engine.AskStream(r.Context(), req.Query)
	if err != nil {
		http.Error(w, `{"error":"invalid query"}`, http.StatusUnprocessableEntity)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.writeSSE(w, events)
		return
	}
	s.writeJSON(w, events)
}

func (s *Server) writeSSE(w http.ResponseWriter, events <-chan engine.Event) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		// httptest.ResponseRecorder doesn't implement Flusher,
		// but we still write the events for testability.
		flusher = nil
	}

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, events <-chan engine.Event) {
	var collected []engine.Event
	for ev := range events {
		collected = append(collected, ev)
	}

	w.Header().Set("Content-Type", "application/json")
	resp := struct {
		Events []engine.Event `json:"events"`
	}{Events: collected}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encoding response"}`, http.StatusInternalServerError)
	}
}
