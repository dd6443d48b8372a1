package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hedspi/phone-assistant/internal/data/repos"
	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/modules/retrieval"
	"github.com/hedspi/phone-assistant/internal/modules/routing"
	"github.com/hedspi/phone-assistant/internal/pkg/dbctx"
	"github.com/hedspi/phone-assistant/internal/platform/llm"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

var ErrEmptyInput = errors.New("assistant: empty input")

type State int

const (
	StateAwaitingInput State = iota
	StateProcessing
)

func (s State) String() string {
	if s == StateProcessing {
		return "PROCESSING"
	}
	return "AWAITING_INPUT"
}

type Router interface {
	NeedsRetrieval(ctx context.Context, query string) bool
}

type Retriever interface {
	GraphSearchResult(ctx context.Context, query string) (string, error)
}

// Responder produces the reply from the full conversation.
type Responder interface {
	Chat(ctx context.Context, msgs []types.Message) string
	StreamChat(ctx context.Context, msgs []types.Message, onChunk func(string)) string
}

// Rewriter turns a context-dependent follow-up into a standalone query.
type Rewriter interface {
	GetMessage(ctx context.Context, prompt string) string
}

type AnswerCache interface {
	Lookup(ctx context.Context, question string) (string, bool)
	Store(ctx context.Context, question, answer string) error
}

// Answer cache outcomes reported to TurnObserver.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheSkipped = ""
)

// TurnObserver records per-turn metrics. lookup is CacheSkipped when no cache
// was consulted.
type TurnObserver interface {
	ObserveTurn(route, lookup string, dur time.Duration)
}

type ControllerDeps struct {
	Log      *logger.Logger
	Router   Router
	RAG      Retriever
	LLM      Responder
	Rewriter Rewriter

	// Optional.
	Cache      AnswerCache
	Transcript repos.MessageRepo
	Metrics    TurnObserver
}

type ControllerConfig struct {
	NumHistory int
	MaxHistory int
}

func (c ControllerConfig) withDefaults() ControllerConfig {
	if c.NumHistory <= 0 {
		c.NumHistory = 10
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 20
	}
	return c
}

// Controller runs one conversation. Turns are serialised; readers such as
// GetHistory do not wait for a running turn.
type Controller struct {
	sessionID string
	log       *logger.Logger
	deps      ControllerDeps
	maxQuery  int

	turn sync.Mutex

	mu         sync.RWMutex
	history    *History
	queries    []string
	numHistory int
	state      State
}

func NewController(sessionID string, deps ControllerDeps, cfg ControllerConfig) *Controller {
	cfg = cfg.withDefaults()
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		sessionID:  sessionID,
		log:        log.With("module", "ConversationController", "session_id", sessionID),
		deps:       deps,
		maxQuery:   cfg.MaxHistory,
		history:    NewHistory(Instructions, cfg.MaxHistory),
		numHistory: cfg.NumHistory,
	}
}

func (c *Controller) SessionID() string { return c.sessionID }

// GetMessage answers one user input.
func (c *Controller) GetMessage(ctx context.Context, query string) (string, error) {
	return c.run(ctx, query, func(msgs []types.Message) string {
		return c.deps.LLM.Chat(ctx, msgs)
	}, nil)
}

// StreamMessage answers like GetMessage while forwarding reply chunks.
func (c *Controller) StreamMessage(ctx context.Context, query string, onChunk func(string)) (string, error) {
	return c.run(ctx, query, func(msgs []types.Message) string {
		return c.deps.LLM.StreamChat(ctx, msgs, onChunk)
	}, onChunk)
}

func (c *Controller) run(ctx context.Context, query string, generate func([]types.Message) string, onChunk func(string)) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyInput
	}

	c.turn.Lock()
	defer c.turn.Unlock()
	c.setState(StateProcessing)
	defer c.setState(StateAwaitingInput)
	start := time.Now()

	c.noteQuery(query)
	standalone, product := c.standalone(ctx, query)

	var (
		reply     string
		cached    bool
		effective = standalone
	)
	// Keyed on the standalone query so identical follow-ups about different
	// products never share an answer.
	cacheKey := retrieval.CleanQuery(standalone)
	useCache := product && c.deps.Cache != nil && cacheKey != ""
	if useCache {
		reply, cached = c.deps.Cache.Lookup(ctx, cacheKey)
		if cached && onChunk != nil {
			onChunk(reply)
		}
	}
	if !cached {
		if product {
			effective = c.augment(ctx, standalone)
		}
		msgs := append(c.snapshot(), types.Message{Role: types.RoleUser, Content: effective})
		reply = generate(msgs)
	}

	c.mu.Lock()
	c.history.Append(types.RoleUser, effective)
	c.history.Append(types.RoleAssistant, reply)
	c.mu.Unlock()

	if useCache && !cached && reply != llm.FallbackMessage {
		if err := c.deps.Cache.Store(ctx, cacheKey, reply); err != nil {
			c.log.Warn("semantic cache store failed", "error", err)
		}
	}
	c.persist(ctx, types.Message{Role: types.RoleUser, Content: query}, types.Message{Role: types.RoleAssistant, Content: reply})
	if c.deps.Metrics != nil {
		route, lookup := routing.ChitchatRoute, CacheSkipped
		if product {
			route = routing.ProductRoute
		}
		switch {
		case cached:
			lookup = CacheHit
		case useCache:
			lookup = CacheMiss
		}
		c.deps.Metrics.ObserveTurn(route, lookup, time.Since(start))
	}
	return reply, nil
}

// BuildQuery records the user turn and returns the retrieval-augmented
// query without calling the main model.
func (c *Controller) BuildQuery(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	c.noteQuery(query)
	effective, product := c.standalone(ctx, query)
	if product {
		effective = c.augment(ctx, effective)
	}
	c.AppendUserTurn(query)
	return effective
}

// AppendUserTurn records a user turn produced outside GetMessage.
func (c *Controller) AppendUserTurn(content string) {
	c.mu.Lock()
	c.history.Append(types.RoleUser, content)
	c.mu.Unlock()
}

// standalone decides whether query needs retrieval. Product queries are
// rewritten against the recent turns into a self-contained question.
func (c *Controller) standalone(ctx context.Context, query string) (string, bool) {
	cleaned := retrieval.CleanQuery(query)
	if cleaned == "" {
		cleaned = query
	}
	if !c.deps.Router.NeedsRetrieval(ctx, query) {
		return cleaned, false
	}

	c.mu.RLock()
	n := c.numHistory
	recent := c.history.Last(n)
	c.mu.RUnlock()
	recent = append(recent, types.Message{Role: types.RoleUser, Content: cleaned})
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}

	rewritten := strings.TrimSpace(c.deps.Rewriter.GetMessage(ctx, rewritePrompt(FormatHistory(recent))))
	if rewritten == "" || rewritten == llm.FallbackMessage {
		rewritten = cleaned
	}
	return rewritten, true
}

// augment appends the graph-expanded product context to a standalone query.
func (c *Controller) augment(ctx context.Context, standalone string) string {
	bonus, err := c.deps.RAG.GraphSearchResult(ctx, standalone)
	if err != nil {
		c.log.Warn("graph search failed", "error", err)
	}
	return standalone + "\n" + bonus
}

func (c *Controller) persist(ctx context.Context, msgs ...types.Message) {
	if c.deps.Transcript == nil {
		return
	}
	if err := c.deps.Transcript.Append(dbctx.New(ctx), c.sessionID, msgs...); err != nil {
		c.log.Warn("transcript persist failed", "error", err)
	}
}

func (c *Controller) noteQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)
	if len(c.queries) > c.maxQuery {
		c.queries = c.queries[len(c.queries)-c.maxQuery:]
	}
}

func (c *Controller) snapshot() []types.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.Messages()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// GetHistory returns the conversation without the system entry.
func (c *Controller) GetHistory() []types.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.Turns()
}

// Queries returns the raw user inputs, oldest first.
func (c *Controller) Queries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.queries...)
}

// DeleteHistory clears the conversation and its stored transcript.
func (c *Controller) DeleteHistory(ctx context.Context) (string, error) {
	c.turn.Lock()
	defer c.turn.Unlock()
	c.mu.Lock()
	c.history.Reset()
	c.queries = nil
	c.mu.Unlock()
	if c.deps.Transcript != nil {
		if _, err := c.deps.Transcript.DeleteBySession(dbctx.New(ctx), c.sessionID); err != nil {
			return "", err
		}
	}
	return historyDeleted, nil
}

// Transcript returns the persisted turns, or nil when persistence is off.
func (c *Controller) Transcript(ctx context.Context) ([]*types.ChatMessage, error) {
	if c.deps.Transcript == nil {
		return nil, nil
	}
	return c.deps.Transcript.ListBySession(dbctx.New(ctx), c.sessionID, 0)
}

func (c *Controller) NumHistory() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.numHistory
}

func (c *Controller) SetNumHistory(n int) error {
	if n <= 0 {
		return errors.New("num_history must be positive")
	}
	c.mu.Lock()
	c.numHistory = n
	c.mu.Unlock()
	return nil
}
