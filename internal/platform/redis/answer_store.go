package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hedspi/phone-assistant/internal/platform/envutil"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

// CachedAnswer is one question/answer pair keyed by the question embedding.
type CachedAnswer struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Embedding []float32 `json:"embedding"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type AnswerStore interface {
	Put(ctx context.Context, a CachedAnswer) error
	All(ctx context.Context) ([]CachedAnswer, error)
	Clear(ctx context.Context) error
	Close() error
}

type Options struct {
	Addr       string
	Password   string
	DB         int
	Key        string
	MaxEntries int
	TTL        time.Duration
}

func OptionsFromEnv() Options {
	return Options{
		Addr:       envutil.String("REDIS_ADDR", ""),
		Password:   envutil.String("REDIS_PASSWORD", ""),
		DB:         envutil.Int("REDIS_DB", 0),
		Key:        envutil.String("CACHE_KEY", "phone-assistant:answers"),
		MaxEntries: envutil.Int("CACHE_MAX_ENTRIES", 1000),
		TTL:        time.Duration(envutil.Int("CACHE_TTL_SECONDS", 86400)) * time.Second,
	}
}

type answerStore struct {
	log *logger.Logger
	rdb *goredis.Client
	key string
	max int
	ttl time.Duration
}

func NewAnswerStore(log *logger.Logger, opts Options) (AnswerStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if opts.Key == "" {
		opts.Key = "phone-assistant:answers"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &answerStore{
		log: log.With("service", "RedisAnswerStore"),
		rdb: rdb,
		key: opts.Key,
		max: opts.MaxEntries,
		ttl: opts.TTL,
	}, nil
}

func (s *answerStore) Put(ctx context.Context, a CachedAnswer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode cached answer: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, s.key, raw)
	if s.max > 0 {
		pipe.LTrim(ctx, s.key, 0, int64(s.max-1))
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put answer: %w", err)
	}
	return nil
}

// All returns entries newest first. Undecodable entries are skipped.
func (s *answerStore) All(ctx context.Context) ([]CachedAnswer, error) {
	raws, err := s.rdb.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list answers: %w", err)
	}
	out := make([]CachedAnswer, 0, len(raws))
	for _, r := range raws {
		var a CachedAnswer
		if err := json.Unmarshal([]byte(r), &a); err != nil {
			s.log.Warn("skipping undecodable cached answer", "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *answerStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func (s *answerStore) Close() error {
	return s.rdb.Close()
}
