package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/replgate/replgate/internal/logging"
	"github.com/replgate/replgate/internal/session"
)

// Version reported on the root endpoint.
const Version = "0.3.0"

// defaultOutputLimit bounds a single raw-output page.
const defaultOutputLimit = 64 * 1024

// Handlers contains all HTTP handlers.
type Handlers struct {
	manager *session.Manager
	store   *logging.Store
}

// NewHandlers creates a new handler set.
func NewHandlers(manager *session.Manager, store *logging.Store) *Handlers {
	return &Handlers{
		manager: manager,
		store:   store,
	}
}

// InputRequest carries a command or raw input for a session. WaitForReady
// and AddTerminator default to true when omitted.
type InputRequest struct {
	Input         string `json:"input" binding:"required"`
	WaitForReady  *bool  `json:"wait_for_ready,omitempty"`
	TimeoutMs     int    `json:"timeout_ms,omitempty"`
	AddTerminator *bool  `json:"add_terminator,omitempty"`
}

// SignalRequest names a control signal.
type SignalRequest struct {
	Signal string `json:"signal" binding:"required"`
}

// GuidanceRequest answers an escalation question.
type GuidanceRequest struct {
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer" binding:"required"`
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "replgate",
		"version": Version,
	})
}

// Health handles the health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.manager.Count(),
	})
}

// CreateSession spawns a session and blocks until it is ready, escalates,
// or fails.
func (h *Handlers) CreateSession(c *gin.Context) {
	var cfg session.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, _ := h.manager.Create(cfg)
	c.JSON(resultStatus(res, http.StatusBadRequest), res)
}

// ListSessions lists all sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	infos := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": infos,
		"count":    len(infos),
	})
}

// GetSession returns the full session snapshot.
func (h *Handlers) GetSession(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}
	c.JSON(http.StatusOK, s.Details())
}

// DestroySession kills the session's process and removes it.
func (h *Handlers) DestroySession(c *gin.Context) {
	sessionID := c.Param("id")
	destroyed := h.manager.Destroy(sessionID)
	if !destroyed {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"destroyed":  true,
		"session_id": sessionID,
	})
}

// SendInput delivers input to the session, optionally waiting for the next
// prompt.
func (h *Handlers) SendInput(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}

	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := session.InputOptions{
		WaitForReady:  true,
		AddTerminator: true,
		TimeoutMs:     req.TimeoutMs,
	}
	if req.WaitForReady != nil {
		opts.WaitForReady = *req.WaitForReady
	}
	if req.AddTerminator != nil {
		opts.AddTerminator = *req.AddTerminator
	}

	res := s.ExecuteCommand(req.Input, opts)
	c.JSON(resultStatus(res, http.StatusConflict), res)
}

// SendSignal delivers a control signal (interrupt, suspend, quit).
func (h *Handlers) SendSignal(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}

	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.SendSignal(req.Signal)
	c.JSON(resultStatus(res, http.StatusBadRequest), res)
}

// ApplyGuidance answers an escalation question.
func (h *Handlers) ApplyGuidance(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}

	var req GuidanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.ApplyGuidance(session.ParseGuidance(req.Answer))
	c.JSON(resultStatus(res, http.StatusConflict), res)
}

// GetOutput returns a page of the raw output buffer.
func (h *Handlers) GetOutput(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}

	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", defaultOutputLimit)

	chunk, total := s.BufferedOutput(offset, limit)
	next := offset + len(chunk)
	c.JSON(http.StatusOK, gin.H{
		"session_id":  s.ID,
		"output":      chunk,
		"offset":      offset,
		"total":       total,
		"next_offset": next,
		"has_more":    next < total,
	})
}

// GetText returns terminal-rendered text: the cursor line by default, the
// whole screen with ?full_screen=true.
func (h *Handlers) GetText(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}

	fullScreen := c.Query("full_screen") == "true"
	c.JSON(http.StatusOK, gin.H{
		"session_id":  s.ID,
		"text":        s.CleanText(fullScreen),
		"full_screen": fullScreen,
	})
}

// GetSessionLogs returns collected log events for one session.
func (h *Handlers) GetSessionLogs(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}

	limit := intQuery(c, "limit", 100)
	c.JSON(http.StatusOK, gin.H{
		"session_id": s.ID,
		"logs":       h.store.Session(s.ID, limit),
	})
}

// GetLogs returns collected service-level log events, or one session's
// events with ?session_id=.
func (h *Handlers) GetLogs(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	if sessionID := c.Query("session_id"); sessionID != "" {
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"logs":       h.store.Session(sessionID, limit),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs": h.store.Global(limit),
	})
}

// lookup resolves the :id parameter, writing a 404 on a miss.
func (h *Handlers) lookup(c *gin.Context) *session.Session {
	s := h.manager.Get(c.Param("id"))
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		c.Abort()
		return nil
	}
	return s
}

// resultStatus maps an engine Result onto an HTTP status: 200 on success,
// 202 when a question is pending an answer, failStatus otherwise.
func resultStatus(res session.Result, failStatus int) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.Question != "":
		return http.StatusAccepted
	default:
		return failStatus
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
