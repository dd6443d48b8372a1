package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hedspi/phone-assistant/internal/app"
	"github.com/hedspi/phone-assistant/internal/pkg/dbctx"
)

func newBuildGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build-graph",
		Short: "Extract entities from every catalog product and merge them into Neo4j",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.CoreOptions{RequireGraph: true, RequireLLM: true}
			return withCore(cmd.Context(), opts, func(core *app.Core) error {
				return buildGraph(cmd.Context(), core)
			})
		},
	}
}

func buildGraph(ctx context.Context, core *app.Core) error {
	products, err := core.Products.ListAll(dbctx.New(ctx))
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("catalog is empty; run kgctl ingest first")
	}
	core.Graph.EnsureSchema(ctx)

	var merged, failed int
	for i, p := range products {
		if err := ctx.Err(); err != nil {
			return err
		}
		ex, err := core.Extractor.ExtractOne(ctx, embeddingText(p))
		if err != nil {
			failed++
			core.Log.Warn("extraction failed", "title", p.Title, "error", err)
			continue
		}
		n, err := core.Graph.MergeExtraction(ctx, ex)
		if err != nil {
			failed++
			core.Log.Warn("graph merge failed", "title", p.Title, "error", err)
			continue
		}
		merged += n
		if (i+1)%100 == 0 {
			core.Log.Info("graph build progress", "processed", i+1, "total", len(products))
		}
	}
	core.Log.Info("graph build finished", "products", len(products), "merged", merged, "failed", failed)
	return nil
}
