package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

const (
	ToolShopInfo    = "get_shop_info"
	ToolWebSearch   = "get_web_search"
	ToolProductLink = "get_product_link"
	ToolGeneral     = "get_general_message"
)

// networkError is returned for a turn whose tool could not be resolved.
const networkError = "Lỗi đường truyền mạng"

var ErrUnknownTool = errors.New("assistant: unknown tool")

// ToolArgs carries the decoded arguments of any declared tool.
type ToolArgs struct {
	Query       string `json:"query"`
	ProductName string `json:"product_name"`
}

type ToolHandler func(ctx context.Context, args ToolArgs) (string, error)

type ToolCaller interface {
	FunctionCalling(ctx context.Context, prompt string, tools []types.ToolSpec) ([]types.ToolCall, error)
}

type ShopInfoSource interface {
	ShopInfo(ctx context.Context, query string) (string, error)
}

type WebSearch interface {
	Search(ctx context.Context, query string) (string, error)
}

type LinkFinder interface {
	ProductLink(ctx context.Context, name string) (string, error)
}

type AgentDeps struct {
	Log        *logger.Logger
	LLM        ToolCaller
	Controller *Controller
	ShopInfo   ShopInfoSource
	Web        WebSearch
	Links      LinkFinder
}

// Agent answers with a single round of tool calls.
type Agent struct {
	log      *logger.Logger
	llm      ToolCaller
	ctrl     *Controller
	specs    []types.ToolSpec
	handlers map[string]ToolHandler
}

func NewAgent(deps AgentDeps) (*Agent, error) {
	if deps.LLM == nil || deps.Controller == nil {
		return nil, errors.New("agent: LLM and Controller are required")
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	a := &Agent{
		log:   log.With("module", "Agent", "session_id", deps.Controller.SessionID()),
		llm:   deps.LLM,
		ctrl:  deps.Controller,
		specs: ToolSpecs(),
	}
	a.handlers = map[string]ToolHandler{
		ToolShopInfo:    a.withSource(deps.ShopInfo, ToolShopInfo),
		ToolWebSearch:   a.withWeb(deps.Web),
		ToolProductLink: a.withLinks(deps.Links),
		ToolGeneral:     a.general,
	}
	if err := ValidateTools(a.specs, a.handlers); err != nil {
		return nil, err
	}
	return a, nil
}

func queryOnly() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": queryParamDescription},
		},
		"required": []string{"query"},
	}
}

// ToolSpecs declares the closed tool set offered to the model.
func ToolSpecs() []types.ToolSpec {
	return []types.ToolSpec{
		{Name: ToolShopInfo, Description: shopInfoDescription, Parameters: queryOnly()},
		{Name: ToolWebSearch, Description: webSearchDescription, Parameters: queryOnly()},
		{
			Name:        ToolProductLink,
			Description: productLinkDescription,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":        map[string]any{"type": "string", "description": queryParamDescription},
					"product_name": map[string]any{"type": "string", "description": productNameParamDescription},
				},
				"required": []string{"query", "product_name"},
			},
		},
		{Name: ToolGeneral, Description: generalDescription, Parameters: queryOnly()},
	}
}

// ValidateTools checks that every declared tool has a handler and every
// handler is declared, and that required parameters map onto ToolArgs.
func ValidateTools(specs []types.ToolSpec, handlers map[string]ToolHandler) error {
	known := map[string]bool{"query": true, "product_name": true}
	declared := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return errors.New("tool with empty name")
		}
		if declared[s.Name] {
			return fmt.Errorf("tool %q declared twice", s.Name)
		}
		declared[s.Name] = true
		if handlers[s.Name] == nil {
			return fmt.Errorf("%w: no handler for %q", ErrUnknownTool, s.Name)
		}
		for _, p := range s.Required() {
			if !known[p] {
				return fmt.Errorf("tool %q requires unsupported parameter %q", s.Name, p)
			}
		}
	}
	var extra []string
	for name := range handlers {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("handlers without declaration: %s", strings.Join(extra, ", "))
	}
	return nil
}

// Execute asks the model which tools to call, runs each of them and joins the results.
func (a *Agent) Execute(ctx context.Context, prompt string) string {
	calls, err := a.llm.FunctionCalling(ctx, prompt, a.specs)
	if err != nil {
		return "Error processing agent: " + err.Error()
	}
	results := make([]string, 0, len(calls))
	for _, call := range calls {
		h, ok := a.handlers[call.Name]
		if !ok {
			a.log.Warn("model requested unknown tool", "tool", call.Name)
			return networkError
		}
		var args ToolArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			a.log.Warn("tool arguments decode failed", "tool", call.Name, "error", err)
			continue
		}
		if strings.TrimSpace(args.Query) == "" {
			args.Query = prompt
		}
		out, err := h(ctx, args)
		if err != nil {
			a.log.Warn("tool failed", "tool", call.Name, "error", err)
			out = args.Query + "\n" + networkError
		}
		results = append(results, out)
	}
	return strings.Join(results, "\n")
}

func (a *Agent) withSource(src ShopInfoSource, name string) ToolHandler {
	return func(ctx context.Context, args ToolArgs) (string, error) {
		a.ctrl.AppendUserTurn(args.Query)
		if src == nil {
			return "", fmt.Errorf("%s: not configured", name)
		}
		info, err := src.ShopInfo(ctx, args.Query)
		if err != nil {
			return "", err
		}
		return args.Query + "\n" + info, nil
	}
}

func (a *Agent) withWeb(web WebSearch) ToolHandler {
	return func(ctx context.Context, args ToolArgs) (string, error) {
		a.ctrl.AppendUserTurn(args.Query)
		if web == nil {
			return "", errors.New("web search: not configured")
		}
		res, err := web.Search(ctx, args.Query)
		if err != nil {
			return "", err
		}
		return args.Query + "\n" + res, nil
	}
}

func (a *Agent) withLinks(links LinkFinder) ToolHandler {
	return func(ctx context.Context, args ToolArgs) (string, error) {
		a.ctrl.AppendUserTurn(args.Query)
		if links == nil {
			return "", errors.New("product link: not configured")
		}
		name := strings.TrimSpace(args.ProductName)
		if name == "" {
			name = args.Query
		}
		url, err := links.ProductLink(ctx, name)
		if err != nil {
			return "", err
		}
		if url == "" {
			url = "Không tìm thấy đường dẫn cho sản phẩm " + name
		}
		return args.Query + "\n" + url, nil
	}
}

func (a *Agent) general(ctx context.Context, args ToolArgs) (string, error) {
	return a.ctrl.BuildQuery(ctx, args.Query), nil
}
