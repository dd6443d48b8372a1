package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hedspi/phone-assistant/internal/domain/chat"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

// FallbackMessage is returned to users when every key failed on every cycle.
const FallbackMessage = "Internet error. Please check your connection."

var (
	ErrNoKeys    = errors.New("llm: at least one API key is required")
	ErrExhausted = errors.New("llm: all API keys exhausted")
	ErrNoChoice  = errors.New("llm: empty response")
)

var tracer = otel.Tracer("github.com/hedspi/phone-assistant/internal/platform/llm")

// ModelFactory builds the client bound to one API key.
type ModelFactory func(apiKey string) (llms.Model, error)

// OpenAIFactory builds OpenAI-compatible chat models through langchaingo.
func OpenAIFactory(cfg Config) ModelFactory {
	return func(apiKey string) (llms.Model, error) {
		opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	}
}

// Gateway fronts an ordered pool of API keys. A failed attempt advances to
// the next key; each full pass over the pool consumes one try.
type Gateway struct {
	log     *logger.Logger
	cfg     Config
	models  []llms.Model
	keys    *keyCursor
	observe Observer
}

// Observer receives the outcome of every rotated call.
type Observer func(op, status string, dur time.Duration)

// keyCursor is the active key position, shared by every derived gateway.
type keyCursor struct {
	mu  sync.Mutex
	idx int
}

func (k *keyCursor) current() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.idx
}

// advance moves to the next key and reports whether it wrapped around.
func (k *keyCursor) advance(n int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.idx++
	if k.idx >= n {
		k.idx = 0
		return true
	}
	return false
}

func New(log *logger.Logger, cfg Config, factory ModelFactory) (*Gateway, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(cfg.APIKeys) == 0 {
		return nil, ErrNoKeys
	}
	if factory == nil {
		factory = OpenAIFactory(cfg)
	}
	if cfg.NumTry <= 0 {
		cfg.NumTry = 3
	}
	models := make([]llms.Model, 0, len(cfg.APIKeys))
	for i, key := range cfg.APIKeys {
		m, err := factory(key)
		if err != nil {
			return nil, fmt.Errorf("llm: init model for key #%d: %w", i, err)
		}
		models = append(models, m)
	}
	return &Gateway{
		log:    log.With("service", "LLMGateway", "model", cfg.Model),
		cfg:    cfg,
		models: models,
		keys:   &keyCursor{},
	}, nil
}

// Derive shares the key pool and rotation state under different settings.
func (g *Gateway) Derive(cfg Config) *Gateway {
	cfg.APIKeys = g.cfg.APIKeys
	if cfg.NumTry <= 0 {
		cfg.NumTry = g.cfg.NumTry
	}
	return &Gateway{log: g.log, cfg: cfg, models: g.models, keys: g.keys, observe: g.observe}
}

// SetObserver must be called before the gateway is shared or derived.
func (g *Gateway) SetObserver(o Observer) { g.observe = o }

// GetMessage answers a single prompt. It never fails: exhaustion yields FallbackMessage.
func (g *Gateway) GetMessage(ctx context.Context, prompt string) string {
	return g.Chat(ctx, []chat.Message{{Role: chat.RoleUser, Content: prompt}})
}

// Complete is GetMessage with the error surfaced instead of the fallback text.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	return g.Generate(ctx, []chat.Message{{Role: chat.RoleUser, Content: prompt}})
}

// Chat answers a conversation. It never fails: exhaustion yields FallbackMessage.
func (g *Gateway) Chat(ctx context.Context, messages []chat.Message) string {
	text, err := g.Generate(ctx, messages)
	if err != nil {
		g.log.Error("llm generation failed", "error", err)
		return FallbackMessage
	}
	return text
}

// StreamMessage streams chunks to onChunk and returns the assembled text.
func (g *Gateway) StreamMessage(ctx context.Context, prompt string, onChunk func(string)) string {
	return g.StreamChat(ctx, []chat.Message{{Role: chat.RoleUser, Content: prompt}}, onChunk)
}

// StreamChat is the streaming form of Chat. A retry after a partial stream
// may repeat chunks already delivered.
func (g *Gateway) StreamChat(ctx context.Context, msgs []chat.Message, onChunk func(string)) string {
	text, err := g.Generate(ctx, msgs, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if onChunk != nil && len(chunk) > 0 {
			onChunk(string(chunk))
		}
		return nil
	}))
	if err != nil {
		g.log.Error("llm stream failed", "error", err)
		return FallbackMessage
	}
	return text
}

// Generate runs one completion under the rotation policy.
func (g *Gateway) Generate(ctx context.Context, messages []chat.Message, extra ...llms.CallOption) (string, error) {
	content := g.toContent(messages)
	opts := append(g.samplingOptions(), extra...)

	var text string
	err := g.rotate(ctx, "generate", func(ctx context.Context, m llms.Model) error {
		resp, err := m.GenerateContent(ctx, content, opts...)
		if err != nil {
			return err
		}
		if resp == nil || len(resp.Choices) == 0 {
			return ErrNoChoice
		}
		text = resp.Choices[0].Content
		return nil
	})
	return text, err
}

// FunctionCalling forces the model to pick one or more of tools.
func (g *Gateway) FunctionCalling(ctx context.Context, prompt string, tools []chat.ToolSpec) ([]chat.ToolCall, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("llm: no tools declared")
	}
	defs := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	content := g.toContent([]chat.Message{{Role: chat.RoleUser, Content: prompt}})
	opts := []llms.CallOption{
		llms.WithTemperature(g.cfg.Temperature),
		llms.WithMaxTokens(g.cfg.MaxTokens),
		llms.WithTools(defs),
		llms.WithToolChoice("required"),
	}

	var calls []chat.ToolCall
	err := g.rotate(ctx, "function_calling", func(ctx context.Context, m llms.Model) error {
		resp, err := m.GenerateContent(ctx, content, opts...)
		if err != nil {
			return err
		}
		if resp == nil || len(resp.Choices) == 0 {
			return ErrNoChoice
		}
		calls = calls[:0]
		for _, choice := range resp.Choices {
			for _, tc := range choice.ToolCalls {
				if tc.FunctionCall == nil {
					continue
				}
				calls = append(calls, chat.ToolCall{
					Name:      tc.FunctionCall.Name,
					Arguments: json.RawMessage(argsOrEmpty(tc.FunctionCall.Arguments)),
				})
			}
			if choice.FuncCall != nil && len(choice.ToolCalls) == 0 {
				calls = append(calls, chat.ToolCall{
					Name:      choice.FuncCall.Name,
					Arguments: json.RawMessage(argsOrEmpty(choice.FuncCall.Arguments)),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return calls, nil
}

func argsOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}

func (g *Gateway) rotate(ctx context.Context, op string, call func(context.Context, llms.Model) error) error {
	ctx, span := tracer.Start(ctx, "llm."+op)
	defer span.End()
	start := time.Now()
	status := "error"
	if g.observe != nil {
		defer func() { g.observe(op, status, time.Since(start)) }()
	}

	tries := g.cfg.NumTry
	attempts := 0
	var last error
	for tries > 0 {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		idx := g.keys.current()
		attempts++
		err := call(ctx, g.models[idx])
		if err == nil {
			span.SetAttributes(attribute.Int("llm.attempts", attempts), attribute.Int("llm.key_index", idx))
			status = "ok"
			return nil
		}
		last = err
		g.log.Info("llm key failed, trying next key", "key_index", idx, "attempt", attempts, "error", err)

		if g.keys.advance(len(g.models)) {
			tries--
		}
	}
	span.SetAttributes(attribute.Int("llm.attempts", attempts))
	span.SetStatus(codes.Error, "exhausted")
	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, last)
}

func (g *Gateway) samplingOptions() []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(g.cfg.Temperature),
		llms.WithCandidateCount(1),
	}
	if g.cfg.TopP > 0 {
		opts = append(opts, llms.WithTopP(g.cfg.TopP))
	}
	if g.cfg.TopK > 0 {
		opts = append(opts, llms.WithTopK(g.cfg.TopK))
	}
	if g.cfg.Seed != 0 {
		opts = append(opts, llms.WithSeed(g.cfg.Seed))
	}
	if g.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.cfg.MaxTokens))
	}
	return opts
}

func (g *Gateway) toContent(messages []chat.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages)+1)
	if g.cfg.Instructions != "" && (len(messages) == 0 || messages[0].Role != chat.RoleSystem) {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, g.cfg.Instructions))
	}
	for _, m := range messages {
		out = append(out, llms.TextParts(roleType(m.Role), m.Content))
	}
	return out
}

func roleType(r chat.Role) llms.ChatMessageType {
	switch r {
	case chat.RoleSystem:
		return llms.ChatMessageTypeSystem
	case chat.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
