// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/topiq-dev/topiq/internal/config"
	"github.com/topiq-dev/topiq/internal/provider"
	"github.com/topiq-dev/topiq/internal/store"
	"github.com/topiq-dev/topiq/internal/store/sqlite"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// seedTopic is one built-in starter entry for a fresh cache.
type seedTopic struct {
	id      string
	payload store.Payload
	aliases []string
}

// seedTopics gives a new deployment a usable baseline before the
// cache has learned anything from real traffic.
func seedTopics() []seedTopic {
	return []seedTopic{
		{
			id: "registration_deadlines",
			payload: store.Payload{
				"summary": store.TextValue("Course registration opens two weeks before each semester and closes at the end of the first week of classes. Late registration requires dean approval and a late fee."),
				"steps": store.ListValue(
					"Log in to the student portal",
					"Open the registration tab and select courses",
					"Confirm the schedule and pay fees",
				),
			},
			aliases: []string{
				"registration deadlines",
				"when does course registration close",
				"مواعيد التسجيل",
				"متى يبدأ تسجيل المواد",
			},
		},
		{
			id: "tuition_payment",
			payload: store.Payload{
				"summary": store.TextValue("Tuition can be paid online through the student portal, at partner banks, or in installments arranged with the finance office before the semester starts."),
				"contacts": store.MapValue(map[string]string{
					"finance_office": "finance@example.edu",
				}),
			},
			aliases: []string{
				"tuition payment",
				"how do i pay my fees",
				"دفع الرسوم الجامعية",
				"كيف ادفع القسط",
			},
		},
		{
			id: "transcript_request",
			payload: store.Payload{
				"summary": store.TextValue("Official transcripts are requested from the registrar through the student portal and are ready within three working days. Each copy carries a small fee."),
			},
			aliases: []string{
				"transcript request",
				"how to get my transcript",
				"طلب كشف علامات",
				"كيف اطلع كشف العلامات",
			},
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the cache with the built-in starter topics",
		Long:  "Embed and store the built-in starter topics and their aliases. Safe to re-run; existing entries are overwritten.",
		RunE:  runSeed,
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return topiqerr.Wrapf(err, topiqerr.CodeCLISetupFailure, "loading config")
	}

	vectors, err := sqlite.NewVectorStore(cfg.Storage.Path, cfg.Cache.TTL)
	if err != nil {
		return topiqerr.Wrapf(err, topiqerr.CodeCLISetupFailure, "creating vector store")
	}
	defer func() { _ = vectors.Close() }()

	topics, err := sqlite.NewTopicStore(cfg.Storage.Path, cfg.Cache.TTL)
	if err != nil {
		return topiqerr.Wrapf(err, topiqerr.CodeCLISetupFailure, "creating topic store")
	}
	defer func() { _ = topics.Close() }()

	prov, err := newProvider(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var seeded, failed int

	for _, seed := range seedTopics() {
		if err := seedOne(ctx, seed, prov, vectors, topics); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "seeding %s: %v\n", seed.id, err)
			failed++
			continue
		}
		seeded++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d topics (%d failed)\n", seeded, failed)
	if failed > 0 {
		return topiqerr.Errorf(topiqerr.CodeCLISetupFailure, "%d seed topics failed", failed)
	}
	return nil
}

func seedOne(ctx context.Context, seed seedTopic, embedder provider.Embedder, vectors store.VectorStore, topics store.TopicStore) error {
	if err := topics.Put(ctx, &store.Topic{ID: seed.id, Payload: seed.payload}); err != nil {
		return err
	}

	for _, alias := range seed.aliases {
		embedding, err := embedder.Embed(ctx, alias)
		if err != nil {
			return err
		}
		if err := vectors.Put(ctx, store.AliasRecord{
			Text:      alias,
			TopicID:   seed.id,
			Embedding: embedding,
		}); err != nil {
			return err
		}
		if err := topics.AddAlias(ctx, seed.id, alias); err != nil {
			return err
		}
	}
	return nil
}
