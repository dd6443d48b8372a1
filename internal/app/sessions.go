package app

import (
	"github.com/hedspi/phone-assistant/internal/modules/assistant"
	"github.com/hedspi/phone-assistant/internal/modules/retrieval"
	"github.com/hedspi/phone-assistant/internal/modules/routing"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

type sessionDeps struct {
	log      *logger.Logger
	cfg      Config
	core     *Core
	router   *routing.Router
	rag      *retrieval.RAG
	cache    assistant.AnswerCache
	shopInfo assistant.ShopInfoSource
	web      assistant.WebSearch
}

// sessionFactory builds a controller and agent per session. The LLM key pool
// and every store are shared; only conversation state is per session.
func sessionFactory(d sessionDeps) assistant.SessionFactory {
	rewriter := d.core.LLM.Derive(d.cfg.LLM.WithInstructions(assistant.SummaryInstructions))
	return func(id string) (*assistant.Session, error) {
		deps := assistant.ControllerDeps{
			Log:        d.log,
			Router:     d.router,
			RAG:        d.rag,
			LLM:        d.core.LLM,
			Rewriter:   rewriter,
			Cache:      d.cache,
			Transcript: d.core.Messages,
		}
		if d.core.Metrics != nil {
			deps.Metrics = d.core.Metrics
		}
		ctrl := assistant.NewController(id, deps, assistant.ControllerConfig{
			NumHistory: d.cfg.NumHistory,
			MaxHistory: d.cfg.MaxHistory,
		})
		agent, err := assistant.NewAgent(assistant.AgentDeps{
			Log:        d.log,
			LLM:        d.core.LLM,
			Controller: ctrl,
			ShopInfo:   d.shopInfo,
			Web:        d.web,
			Links:      d.rag,
		})
		if err != nil {
			return nil, err
		}
		d.log.Info("session created", "session_id", id)
		return &assistant.Session{ID: id, Controller: ctrl, Agent: agent}, nil
	}
}
