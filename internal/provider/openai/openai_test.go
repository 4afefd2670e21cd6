// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiq-dev/topiq/internal/provider"
	"github.com/topiq-dev/topiq/internal/provider/openai"
	"github.com/topiq-dev/topiq/internal/store"
)

// mockAPI fakes the two OpenAI endpoints the provider talks to.
type mockAPI struct {
	embedding []float64
	chatBody  string // message content returned by chat/completions

	lastChatRequest map[string]any
}

func (m *mockAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": m.embedding},
			},
			"model": "text-embedding-3-small",
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewDecoder(r.Body).Decode(&m.lastChatRequest)
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": m.chatBody,
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	return mux
}

func newProvider(t *testing.T, mock *mockAPI) *openai.Provider {
	t.Helper()

	srv := httptest.NewServer(mock.handler())
	t.Cleanup(srv.Close)

	p, err := openai.New(openai.Config{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		MaxAliases: 3,
	})
	require.NoError(t, err)
	return p
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := openai.New(openai.Config{})
	require.Error(t, err)
}

func TestEmbed(t *testing.T) {
	p := newProvider(t, &mockAPI{embedding: []float64{0.1, 0.2, 0.3}})

	vec, err := p.Embed(context.Background(), "registration deadlines")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	p := newProvider(t, &mockAPI{})
	_, err := p.Embed(context.Background(), "   ")
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	t.Run("yes verdict", func(t *testing.T) {
		mock := &mockAPI{chatBody: `{"same_topic": true}`}
		p := newProvider(t, mock)

		ok, err := p.Confirm(context.Background(), "paying my fees", "tuition payment", "how to pay")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no verdict", func(t *testing.T) {
		p := newProvider(t, &mockAPI{chatBody: `{"same_topic": false}`})

		ok, err := p.Confirm(context.Background(), "library hours", "tuition payment", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed verdict is an error, not a yes", func(t *testing.T) {
		p := newProvider(t, &mockAPI{chatBody: `probably the same, yes`})

		ok, err := p.Confirm(context.Background(), "q", "a", "")
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestAcquire(t *testing.T) {
	t.Run("parses structured payload", func(t *testing.T) {
		p := newProvider(t, &mockAPI{chatBody: `{
			"summary": "Registration opens two weeks before the semester.",
			"steps": ["log in", "select courses"],
			"contacts": {"registrar": "registrar@example.edu"}
		}`})

		payload, err := p.Acquire(context.Background(), "when does registration open", nil)
		require.NoError(t, err)
		assert.Equal(t, store.ValueText, payload["summary"].Kind)
		assert.Equal(t, store.ValueList, payload["steps"].Kind)
		assert.Equal(t, store.ValueMap, payload["contacts"].Kind)
	})

	t.Run("empty summary means no content", func(t *testing.T) {
		p := newProvider(t, &mockAPI{chatBody: `{"summary": ""}`})

		_, err := p.Acquire(context.Background(), "something obscure", nil)
		require.Error(t, err)
	})
}

func TestGenerateAliases(t *testing.T) {
	mock := &mockAPI{chatBody: `{"aliases": ["a", "b", "c", "d", "e"]}`}
	p := newProvider(t, mock)

	aliases, err := p.GenerateAliases(context.Background(), "registration", "when does registration open")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, aliases, "capped at configured maximum")
}

func TestJSONModeRequested(t *testing.T) {
	mock := &mockAPI{chatBody: `{"same_topic": false}`}
	p := newProvider(t, mock)

	_, err := p.Confirm(context.Background(), "q", "a", "")
	require.NoError(t, err)

	format, ok := mock.lastChatRequest["response_format"].(map[string]any)
	require.True(t, ok, "chat request should ask for JSON mode")
	assert.Equal(t, "json_object", format["type"])
}

func TestSynthesizeStreamTerminates(t *testing.T) {
	// The mock does not speak SSE, so the stream ends in an error
	// event. What matters is that the channel always closes after a
	// terminal event instead of leaking.
	p := newProvider(t, &mockAPI{chatBody: "irrelevant"})

	payload := store.Payload{"summary": store.TextValue("opens soon")}
	ch, err := p.Synthesize(context.Background(), payload, "when does it open")
	require.NoError(t, err)

	var sawTerminal bool
	for ev := range ch {
		if ev.Type == provider.EventDone || ev.Type == provider.EventError {
			sawTerminal = true
		}
	}
	assert.True(t, sawTerminal, "stream must end with a terminal event")
}
