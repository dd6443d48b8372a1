package openai

import (
	"context"
	"strings"
)

var queryNoise = strings.NewReplacer("###", "", "\n", "", "<br>", "")

// EmbedQuery embeds a single user text. Markup noise is stripped first and
// blank input yields an empty vector with no error; callers treat an empty
// vector as "nothing to search for".
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}
	cleaned := queryNoise.Replace(text)
	if strings.TrimSpace(cleaned) == "" {
		return []float32{}, nil
	}
	vecs, err := e.Embed(ctx, []string{cleaned})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return []float32{}, nil
	}
	return vecs[0], nil
}
