package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hedspi/phone-assistant/internal/pkg/vecmath"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/openai"
	"github.com/hedspi/phone-assistant/internal/platform/redis"
)

const (
	DefaultCacheThreshold = 0.94
	DefaultCacheLimit     = 4
)

type CacheHit struct {
	Question string
	Answer   string
	Score    float64
}

// SemanticCache answers repeated questions from earlier replies whose
// question embedding is close enough to the new one.
type SemanticCache struct {
	log       *logger.Logger
	store     redis.AnswerStore
	embedder  openai.Embedder
	threshold float64
	limit     int
}

func NewSemanticCache(log *logger.Logger, store redis.AnswerStore, embedder openai.Embedder, threshold float64, limit int) *SemanticCache {
	if threshold <= 0 {
		threshold = DefaultCacheThreshold
	}
	if limit <= 0 {
		limit = DefaultCacheLimit
	}
	return &SemanticCache{
		log:       log.With("module", "SemanticCache"),
		store:     store,
		embedder:  embedder,
		threshold: threshold,
		limit:     limit,
	}
}

// Search returns up to limit entries scoring at least the threshold, best first.
func (c *SemanticCache) Search(ctx context.Context, question string) ([]CacheHit, error) {
	vec, err := openai.EmbedQuery(ctx, c.embedder, question)
	if err != nil {
		return nil, fmt.Errorf("semantic cache: %w", err)
	}
	if len(vec) == 0 {
		return nil, ErrInvalidQuery
	}
	entries, err := c.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic cache: %w", err)
	}
	hits := make([]CacheHit, 0, c.limit)
	for _, e := range entries {
		score := vecmath.Cosine(vec, e.Embedding)
		if score < c.threshold {
			continue
		}
		hits = append(hits, CacheHit{Question: e.Question, Answer: e.Answer, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > c.limit {
		hits = hits[:c.limit]
	}
	return hits, nil
}

// Lookup returns the best cached answer, if any.
func (c *SemanticCache) Lookup(ctx context.Context, question string) (string, bool) {
	hits, err := c.Search(ctx, question)
	if err != nil || len(hits) == 0 {
		if err != nil && err != ErrInvalidQuery {
			c.log.Warn("semantic cache lookup failed", "error", err)
		}
		return "", false
	}
	c.log.Debug("semantic cache hit", "score", hits[0].Score)
	return hits[0].Answer, true
}

// Store records an answer. Blank questions are ignored.
func (c *SemanticCache) Store(ctx context.Context, question, answer string) error {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return nil
	}
	vec, err := openai.EmbedQuery(ctx, c.embedder, question)
	if err != nil {
		return fmt.Errorf("semantic cache: %w", err)
	}
	if len(vec) == 0 {
		return nil
	}
	return c.store.Put(ctx, redis.CachedAnswer{Question: question, Embedding: vec, Answer: answer})
}
