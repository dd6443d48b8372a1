package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hedspi/phone-assistant/internal/app"
)

func newImportEmbeddingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-embeddings <embeddings.json>",
		Short: "Store trained entity vectors on the Neo4j graph nodes",
		Long: `import-embeddings reads a JSON object mapping entity name to vector, as
written by the offline node2vec trainer, and sets it as the embedding property
of the matching Entity node. Graph expansion ranks neighbours by these vectors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vecs, err := readNodeEmbeddings(args[0])
			if err != nil {
				return err
			}
			opts := app.CoreOptions{RequireGraph: true}
			return withCore(cmd.Context(), opts, func(core *app.Core) error {
				return importEmbeddings(cmd.Context(), core, vecs)
			})
		},
	}
}

// readNodeEmbeddings decodes a name->vector file. Every vector must have the
// same, non-zero length.
func readNodeEmbeddings(path string) (map[string][]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	var vecs map[string][]float32
	if err := json.Unmarshal(raw, &vecs); err != nil {
		return nil, fmt.Errorf("decode embeddings %s: %w", path, err)
	}
	dim := -1
	for name, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding for %q is empty", name)
		}
		if dim >= 0 && len(v) != dim {
			return nil, fmt.Errorf("embedding for %q has %d dimensions, want %d", name, len(v), dim)
		}
		dim = len(v)
	}
	return vecs, nil
}

func importEmbeddings(ctx context.Context, core *app.Core, vecs map[string][]float32) error {
	n, err := core.Graph.SetNodeEmbeddings(ctx, vecs)
	if err != nil {
		return err
	}
	if n < len(vecs) {
		core.Log.Warn("some embeddings matched no entity", "unmatched", len(vecs)-n)
	}
	core.Log.Info("node embeddings imported", "entries", len(vecs), "updated", n)
	return nil
}
