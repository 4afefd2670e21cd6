// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/topiq-dev/topiq/internal/config"
	"github.com/topiq-dev/topiq/internal/engine"
	"github.com/topiq-dev/topiq/internal/policy"
	"github.com/topiq-dev/topiq/internal/populate"
	openaiprov "github.com/topiq-dev/topiq/internal/provider/openai"
	"github.com/topiq-dev/topiq/internal/resolver"
	"github.com/topiq-dev/topiq/internal/server"
	"github.com/topiq-dev/topiq/internal/store/sqlite"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server   *server.Server
	Vectors  *sqlite.VectorStore
	Topics   *sqlite.TopicStore
	Pipeline *populate.Pipeline

	sweepInterval time.Duration
}

// WireApp creates all subsystems and wires them together.
func WireApp(cfg *config.Config) (*App, error) {
	// 1. Stores.
	vectors, err := sqlite.NewVectorStore(cfg.Storage.Path, cfg.Cache.TTL)
	if err != nil {
		return nil, topiqerr.Wrapf(err, topiqerr.CodeCLISetupFailure, "creating vector store")
	}
	topics, err := sqlite.NewTopicStore(cfg.Storage.Path, cfg.Cache.TTL)
	if err != nil {
		_ = vectors.Close()
		return nil, topiqerr.Wrapf(err, topiqerr.CodeCLISetupFailure, "creating topic store")
	}

	// 2. Provider — one OpenAI client serves every collaborator role.
	prov, err := newProvider(cfg)
	if err != nil {
		_ = vectors.Close()
		_ = topics.Close()
		return nil, err
	}

	// 3. Resolution and population.
	res := resolver.New(vectors)
	pol := policy.New(policy.Config{
		ConfidentThreshold: cfg.Resolution.ConfidentThreshold,
		AmbiguousThreshold: cfg.Resolution.AmbiguousThreshold,
		ArbiterTimeout:     cfg.Resolution.ArbiterTimeout,
	}, prov, res, prov, vectors, topics)

	pipeline := populate.New(prov, prov, vectors, topics)
	if cfg.Populate.Timeout > 0 {
		pipeline.SetTimeout(cfg.Populate.Timeout)
	}

	// 4. Query engine.
	eng := engine.New(pol, prov, prov, pipeline, vectors, topics, cfg.Resources)

	// 5. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		_ = vectors.Close()
		_ = topics.Close()
		return nil, topiqerr.Wrapf(err, topiqerr.CodeCLISetupFailure, "creating server")
	}
	srv.RegisterServices(&server.Services{
		Engine:  eng,
		Topics:  topics,
		Vectors: vectors,
	})

	return &App{
		Server:        srv,
		Vectors:       vectors,
		Topics:        topics,
		Pipeline:      pipeline,
		sweepInterval: cfg.Cache.SweepInterval,
	}, nil
}

func newProvider(cfg *config.Config) (*openaiprov.Provider, error) {
	pc, ok := cfg.OpenAI()
	if !ok || pc.APIKey == "" {
		return nil, topiqerr.New(topiqerr.CodeCLISetupFailure,
			"providers.openai.api_key is required (set TOPIQ_PROVIDERS_OPENAI_API_KEY)")
	}
	prov, err := openaiprov.New(openaiprov.Config{
		APIKey:         pc.APIKey,
		BaseURL:        pc.Endpoint,
		ChatModel:      cfg.Models.Chat,
		EmbeddingModel: cfg.Models.Embedding,
		MaxAliases:     cfg.Populate.MaxAliases,
	})
	if err != nil {
		return nil, topiqerr.Wrapf(err, topiqerr.CodeCLISetupFailure, "creating openai provider")
	}
	return prov, nil
}

// RunSweeper prunes expired cache entries on a fixed interval until
// the context is cancelled.
func (a *App) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := a.Vectors.Expire(ctx); err != nil {
				slog.Warn("vector expiry sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("swept expired alias vectors", "count", n)
			}
			if n, err := a.Topics.Expire(ctx); err != nil {
				slog.Warn("topic expiry sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("swept expired topics", "count", n)
			}
		}
	}
}

// Close waits for in-flight population and releases the stores.
func (a *App) Close() {
	a.Pipeline.Wait()
	if err := a.Topics.Close(); err != nil {
		slog.Warn("closing topic store", "error", err)
	}
	if err := a.Vectors.Close(); err != nil {
		slog.Warn("closing vector store", "error", err)
	}
}
