// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

// Package openai implements every provider contract on the OpenAI
// API: embeddings for similarity, chat completions with JSON output
// for arbitration, acquisition, and alias generation, and streaming
// chat for answer synthesis.
package openai

import (
	"context"
	"encoding/json"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/topiq-dev/topiq/internal/provider"
	"github.com/topiq-dev/topiq/internal/store"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// Compile-time interface checks.
var (
	_ provider.Embedder       = (*Provider)(nil)
	_ provider.Arbiter        = (*Provider)(nil)
	_ provider.Acquirer       = (*Provider)(nil)
	_ provider.AliasGenerator = (*Provider)(nil)
	_ provider.Synthesizer    = (*Provider)(nil)
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey         string
	BaseURL        string // optional, useful for testing against a mock server
	ChatModel      string
	EmbeddingModel string
	MaxAliases     int
}

const (
	defaultChatModel      = "gpt-4.1-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultMaxAliases     = 12
)

// Provider talks to the OpenAI API for all five collaborator roles.
type Provider struct {
	client openaisdk.Client
	config Config
}

// New creates a new OpenAI provider. Returns an error if the API key
// is missing. Unset model names fall back to defaults.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, topiqerr.New(topiqerr.CodeProviderRequestInvalid, "openai: missing api key")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}
	if cfg.MaxAliases <= 0 {
		cfg.MaxAliases = defaultMaxAliases
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

// Embed computes an embedding vector for the given text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, topiqerr.New(topiqerr.CodeProviderRequestInvalid, "openai: empty embedding input")
	}

	resp, err := p.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(p.config.EmbeddingModel),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeProviderUpstreamFailure, "openai: embedding request failed")
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, topiqerr.New(topiqerr.CodeProviderResponseInvalid, "openai: empty embedding response")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

const arbiterSystemPrompt = `You judge whether a user query asks about the same topic as a known cached entry.
Respond with a JSON object: {"same_topic": true} or {"same_topic": false}.
Only answer true when the query clearly refers to the cached topic. When in doubt, answer false.`

// Confirm asks the chat model whether the query and the candidate
// alias refer to the same topic. The verdict is strict JSON; anything
// unparseable is a provider error, never a silent yes.
func (p *Provider) Confirm(ctx context.Context, queryText, candidateAlias, payloadSummary string) (bool, error) {
	userPrompt := "Query: " + queryText + "\nCached topic alias: " + candidateAlias
	if payloadSummary != "" {
		userPrompt += "\nCached topic content summary: " + payloadSummary
	}

	raw, err := p.jsonCompletion(ctx, arbiterSystemPrompt, userPrompt)
	if err != nil {
		return false, err
	}

	var verdict struct {
		SameTopic bool `json:"same_topic"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return false, topiqerr.Wrap(err, topiqerr.CodeProviderResponseInvalid, "openai: malformed arbiter verdict")
	}
	return verdict.SameTopic, nil
}

const acquireSystemPrompt = `You research a user question and produce a structured fact sheet about its topic.
Respond with a JSON object whose keys are descriptive snake_case field names.
Values may be strings, arrays of strings, or flat string-to-string objects.
Always include a "summary" field with a one-paragraph overview.
Write values in the language of the question. If you cannot find reliable information, return {"summary": ""}.`

// Acquire produces a structured payload for an unresolved query.
func (p *Provider) Acquire(ctx context.Context, queryText string, hints []string) (store.Payload, error) {
	userPrompt := "Question: " + queryText
	if len(hints) > 0 {
		userPrompt += "\nRelevant resources:\n" + strings.Join(hints, "\n")
	}

	raw, err := p.jsonCompletion(ctx, acquireSystemPrompt, userPrompt)
	if err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeAcquireExtractionFailure, "openai: acquisition failed")
	}

	var payload store.Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeProviderResponseInvalid, "openai: malformed acquisition payload")
	}
	if len(payload) == 0 {
		return nil, topiqerr.New(topiqerr.CodeAcquireExtractionFailure, "openai: acquisition produced no content")
	}
	if summary, ok := payload["summary"]; ok && len(payload) == 1 &&
		summary.Kind == store.ValueText && strings.TrimSpace(summary.Text) == "" {
		return nil, topiqerr.New(topiqerr.CodeAcquireExtractionFailure, "openai: acquisition produced no content")
	}
	return payload, nil
}

const aliasSystemPrompt = `You generate alternative phrasings for a cached topic so future queries hit the cache.
Given the topic identifier and the query that created it, produce short alias phrases a user might type:
formal and colloquial register, Modern Standard Arabic and Levantine dialect, English, and common misspellings.
Respond with a JSON object: {"aliases": ["...", "..."]}.`

// GenerateAliases proposes alias variants for a topic. The count is
// capped at the configured maximum; filtering and normalization are
// the caller's job.
func (p *Provider) GenerateAliases(ctx context.Context, topicID, originQuery string) ([]string, error) {
	userPrompt := "Topic identifier: " + topicID + "\nOriginating query: " + originQuery

	raw, err := p.jsonCompletion(ctx, aliasSystemPrompt, userPrompt)
	if err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodePopulateGeneratorError, "openai: alias generation failed")
	}

	var out struct {
		Aliases []string `json:"aliases"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeProviderResponseInvalid, "openai: malformed alias list")
	}
	if len(out.Aliases) > p.config.MaxAliases {
		out.Aliases = out.Aliases[:p.config.MaxAliases]
	}
	return out.Aliases, nil
}

const synthesizeSystemPrompt = `You answer user questions from a structured fact sheet.
Answer in the language of the question, concisely and directly.
Use only the facts provided; if the fact sheet does not cover the question, say so instead of guessing.`

// Synthesize streams a natural-language answer grounded in the payload.
func (p *Provider) Synthesize(ctx context.Context, payload store.Payload, queryText string) (<-chan provider.AnswerEvent, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, topiqerr.Wrap(err, topiqerr.CodeProviderRequestInvalid, "openai: marshalling payload")
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(p.config.ChatModel),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(synthesizeSystemPrompt),
			openaisdk.UserMessage("Fact sheet:\n" + string(payloadJSON) + "\n\nQuestion: " + queryText),
		},
	}

	eventCh := make(chan provider.AnswerEvent, 100)

	go func() {
		defer close(eventCh)
		p.streamAnswer(ctx, params, eventCh)
	}()

	return eventCh, nil
}

// streamAnswer runs the streaming loop, converting SDK chunks into
// AnswerEvent values.
func (p *Provider) streamAnswer(ctx context.Context, params openaisdk.ChatCompletionNewParams, ch chan<- provider.AnswerEvent) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				ch <- provider.AnswerEvent{
					Type: provider.EventTextDelta,
					Text: choice.Delta.Content,
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		ch <- provider.AnswerEvent{
			Type:  provider.EventError,
			Error: err.Error(),
		}
		return
	}

	ch <- provider.AnswerEvent{Type: provider.EventDone}
}

// jsonCompletion runs a single-turn chat completion in JSON mode and
// returns the raw response text.
func (p *Provider) jsonCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(p.config.ChatModel),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(userPrompt),
		},
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", topiqerr.Wrap(err, topiqerr.CodeProviderUpstreamFailure, "openai: chat completion failed")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", topiqerr.New(topiqerr.CodeProviderResponseInvalid, "openai: empty chat completion")
	}
	return resp.Choices[0].Message.Content, nil
}
