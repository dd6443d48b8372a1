package assistant

import (
	"strings"

	types "github.com/hedspi/phone-assistant/internal/domain"
)

// History is an append-only conversation whose first entry is the system
// message. Past max entries, the oldest non-system entries are dropped.
type History struct {
	max  int
	msgs []types.Message
}

func NewHistory(system string, max int) *History {
	if max < 2 {
		max = 2
	}
	return &History{
		max:  max,
		msgs: []types.Message{{Role: types.RoleSystem, Content: system}},
	}
}

func (h *History) Append(role types.Role, content string) {
	h.msgs = append(h.msgs, types.Message{Role: role, Content: content})
	h.truncate()
}

func (h *History) truncate() {
	if len(h.msgs) <= h.max {
		return
	}
	drop := len(h.msgs) - h.max
	kept := make([]types.Message, 0, h.max)
	kept = append(kept, h.msgs[0])
	kept = append(kept, h.msgs[1+drop:]...)
	h.msgs = kept
}

// Messages includes the system entry.
func (h *History) Messages() []types.Message {
	return append([]types.Message(nil), h.msgs...)
}

// Turns excludes the system entry.
func (h *History) Turns() []types.Message {
	return append([]types.Message(nil), h.msgs[1:]...)
}

// Last returns up to n most recent turns, never the system entry.
func (h *History) Last(n int) []types.Message {
	turns := h.msgs[1:]
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]types.Message(nil), turns...)
}

func (h *History) Len() int { return len(h.msgs) }

func (h *History) Reset() {
	h.msgs = h.msgs[:1]
}

// FormatHistory renders messages as "role: content" lines.
func FormatHistory(msgs []types.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
