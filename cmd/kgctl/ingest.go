package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hedspi/phone-assistant/internal/app"
	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/modules/retrieval"
	"github.com/hedspi/phone-assistant/internal/pkg/dbctx"
)

func newIngestCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "ingest <products.json>",
		Short: "Embed a product catalog and upsert it into the vector index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := readProducts(args[0])
			if err != nil {
				return err
			}
			return withCore(cmd.Context(), app.CoreOptions{}, func(core *app.Core) error {
				return ingest(cmd.Context(), core, products, batchSize)
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch", 64, "products embedded per request")
	return cmd
}

func readProducts(path string) ([]types.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var products []types.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	out := products[:0]
	for _, p := range products {
		if strings.TrimSpace(p.Title) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// ingest embeds products and writes them to the vector index. When the index
// lives outside the catalog database the batch is also upserted into the
// catalog, which build-graph reads from.
func ingest(ctx context.Context, core *app.Core, products []types.Product, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 64
	}
	_, local := core.Store.(*retrieval.LocalIndex)
	mirror := !local && core.Products != nil
	bar := progressbar.NewOptions(len(products),
		progressbar.OptionSetDescription("embedding products"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("products"),
		progressbar.OptionShowIts(),
	)
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		batch := products[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = embeddingText(p)
		}
		vecs, err := core.Embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed products %d-%d: %w", start, end, err)
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}
		if err := core.Store.UpsertProducts(ctx, batch); err != nil {
			return fmt.Errorf("upsert products %d-%d: %w", start, end, err)
		}
		if mirror {
			if _, err := core.Products.Upsert(dbctx.New(ctx), batch); err != nil {
				return fmt.Errorf("catalog products %d-%d: %w", start, end, err)
			}
		}
		_ = bar.Add(len(batch))
	}
	_ = bar.Finish()
	core.Log.Info("catalog ingested", "products", len(products), "provider", core.Cfg.VectorProvider, "catalog_mirrored", mirror)
	return nil
}

// embeddingText is the text a product is indexed under.
func embeddingText(p types.Product) string {
	parts := []string{p.Title}
	for _, s := range []string{p.Specs, p.Promotion, p.Price} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(p.ColorOptions) > 0 {
		parts = append(parts, strings.Join(p.ColorOptions, ", "))
	}
	return strings.Join(parts, "\n")
}
