package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hedspi/phone-assistant/internal/http/response"
	"github.com/hedspi/phone-assistant/internal/modules/assistant"
	"github.com/hedspi/phone-assistant/internal/modules/retrieval"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

const HeaderSessionID = "X-Session-ID"

const (
	msgMissingInput  = "Missing 'input' field"
	msgConfigUpdated = "Configuration updated successfully"
	msgInvalidQuery  = "Invalid query or embedding generation failed."
)

// SessionStore resolves the conversation addressed by a request.
type SessionStore interface {
	Get(id string) (*assistant.Session, error)
}

type ChatHandler struct {
	log      *logger.Logger
	sessions SessionStore
	now      func() time.Time
}

func NewChatHandler(log *logger.Logger, sessions SessionStore) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), sessions: sessions, now: time.Now}
}

type messageReq struct {
	Input *string `json:"input"`
}

type configReq struct {
	NumHistory *int `json:"num_history"`
}

func (h *ChatHandler) session(c *gin.Context) (*assistant.Session, bool) {
	sess, err := h.sessions.Get(c.GetHeader(HeaderSessionID))
	if err != nil {
		h.log.Error("session init failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return sess, true
}

// bindInput reads {"input": "..."}; a missing field or body is a 400.
func bindInput(c *gin.Context) (string, bool) {
	var req messageReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Input == nil {
		response.Fail(c, http.StatusBadRequest, msgMissingInput)
		return "", false
	}
	return *req.Input, true
}

// POST /get_message
func (h *ChatHandler) GetMessage(c *gin.Context) {
	input, ok := bindInput(c)
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	start := h.now()
	reply, err := sess.Controller.GetMessage(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"response": reply, "time": h.now().Sub(start).Seconds()})
}

// POST /stream_message streams the reply as server-sent "chunk" events
// followed by one "done" event carrying the full text.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	input, ok := bindInput(c)
	if !ok {
		return
	}
	if strings.TrimSpace(input) == "" {
		response.Fail(c, http.StatusBadRequest, assistant.ErrEmptyInput.Error())
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}

	chunks := make(chan string, 16)
	done := make(chan string, 1)
	ctx := c.Request.Context()
	go func() {
		defer close(chunks)
		reply, err := sess.Controller.StreamMessage(ctx, input, func(s string) {
			select {
			case chunks <- s:
			case <-ctx.Done():
			}
		})
		if err != nil {
			h.log.Warn("stream turn failed", "error", err)
		}
		done <- reply
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	for s := range chunks {
		c.SSEvent("chunk", s)
		c.Writer.Flush()
	}
	c.SSEvent("done", gin.H{"response": <-done})
	c.Writer.Flush()
}

// GET /get_history
func (h *ChatHandler) GetHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	hist := sess.Controller.GetHistory()
	response.Success(c, gin.H{"history": hist, "count": len(hist)})
}

// DELETE /delete_history
func (h *ChatHandler) DeleteHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	msg, err := sess.Controller.DeleteHistory(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": msg})
}

// GET /config
func (h *ChatHandler) GetConfig(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, gin.H{"num_history": sess.Controller.NumHistory()})
}

// POST /config
func (h *ChatHandler) UpdateConfig(c *gin.Context) {
	var req configReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if req.NumHistory != nil {
		if err := sess.Controller.SetNumHistory(*req.NumHistory); err != nil {
			response.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	response.Success(c, gin.H{"message": msgConfigUpdated, "num_history": sess.Controller.NumHistory()})
}

// GET /export_history
func (h *ChatHandler) ExportHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	hist := sess.Controller.GetHistory()
	payload := gin.H{
		"history":     hist,
		"count":       len(hist),
		"exported_at": unixSeconds(h.now()),
	}
	transcript, err := sess.Controller.Transcript(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if transcript != nil {
		payload["transcript"] = transcript
	}
	response.Success(c, payload)
}

// POST /agent
func (h *ChatHandler) Agent(c *gin.Context) {
	input, ok := bindInput(c)
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if sess.Agent == nil {
		response.Fail(c, http.StatusServiceUnavailable, "agent not configured")
		return
	}
	start := h.now()
	reply := sess.Agent.Execute(c.Request.Context(), input)
	response.Success(c, gin.H{"response": reply, "time": h.now().Sub(start).Seconds()})
}

func (h *ChatHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyInput):
		response.Fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, retrieval.ErrInvalidQuery):
		response.Fail(c, http.StatusBadRequest, msgInvalidQuery)
		return
	}
	h.log.Error("chat request failed", "path", c.FullPath(), "error", err)
	response.Fail(c, http.StatusInternalServerError, err.Error())
}

// NotFound answers unknown routes.
func NotFound(c *gin.Context) {
	response.Fail(c, http.StatusNotFound, "Endpoint not found")
}
