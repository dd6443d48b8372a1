package domain

import (
	"github.com/hedspi/phone-assistant/internal/domain/catalog"
	"github.com/hedspi/phone-assistant/internal/domain/chat"
	"github.com/hedspi/phone-assistant/internal/domain/graph"
)

type (
	Product        = catalog.Product
	ProductHit     = catalog.ProductHit
	CatalogProduct = catalog.CatalogProduct

	Role        = chat.Role
	Message     = chat.Message
	ChatMessage = chat.ChatMessage
	ToolSpec    = chat.ToolSpec
	ToolCall    = chat.ToolCall

	GraphNode  = graph.Node
	GraphEdge  = graph.Edge
	Entity     = graph.Entity
	Triple     = graph.Triple
	Extraction = graph.Extraction
)

const (
	RoleSystem    = chat.RoleSystem
	RoleUser      = chat.RoleUser
	RoleAssistant = chat.RoleAssistant
)

// Models lists every persisted type for AutoMigrate.
func Models() []any {
	return []any{
		&catalog.CatalogProduct{},
		&chat.ChatMessage{},
	}
}
