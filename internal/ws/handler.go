package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/replgate/replgate/internal/logging"
	"github.com/replgate/replgate/internal/monitoring"
	"github.com/replgate/replgate/internal/session"
	"github.com/replgate/replgate/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// outBufferSize bounds the per-viewer outbound queue. A viewer that cannot
// keep up drops frames rather than stalling the PTY reader; the next screen
// refresh resynchronizes it.
const outBufferSize = 256

// Message is a viewer-to-server control frame.
type Message struct {
	Type   string `json:"type"`
	Data   string `json:"data,omitempty"`
	Signal string `json:"signal,omitempty"`
	Cols   int    `json:"cols,omitempty"`
	Rows   int    `json:"rows,omitempty"`
}

// Handler manages WebSocket viewer connections.
type Handler struct {
	manager *session.Manager
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(manager *session.Manager, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
		metrics: metrics,
	}
}

type frame struct {
	binary  bool
	payload []byte
}

// HandleStream upgrades the connection and attaches it to the session as a
// live viewer.
func (h *Handler) HandleStream(c *gin.Context) {
	s := h.manager.Get(c.Param("id"))
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	viewerID := id.NewViewerID().String()
	out := make(chan frame, outBufferSize)
	done := make(chan struct{})

	// Single writer goroutine: gorilla connections do not allow concurrent
	// writes, and output arrives on the PTY reader goroutine.
	go func() {
		for {
			select {
			case f := <-out:
				msgType := websocket.TextMessage
				if f.binary {
					msgType = websocket.BinaryMessage
				}
				if err := conn.WriteMessage(msgType, f.payload); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	h.sendHello(out, s, viewerID)

	unsubscribe := s.Subscribe(viewerID, func(p []byte) {
		select {
		case out <- frame{binary: true, payload: p}:
			if h.metrics != nil {
				h.metrics.RecordWSMessage("out", "output")
			}
		default:
		}
	})
	defer unsubscribe()
	defer close(done)

	h.logger.Info("viewer attached",
		zap.String("session_id", s.ID), zap.String("viewer_id", viewerID))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendJSON(out, gin.H{"type": "error", "message": "malformed message"})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}
		h.dispatch(out, s, msg)
	}

	h.logger.Info("viewer detached",
		zap.String("session_id", s.ID), zap.String("viewer_id", viewerID))
}

func (h *Handler) dispatch(out chan<- frame, s *session.Session, msg Message) {
	switch msg.Type {
	case "input":
		// Raw keystrokes: no prompt wait, no terminator, and no command
		// lock, so typing works while an HTTP command wait is in flight.
		if err := s.WriteRaw([]byte(msg.Data)); err != nil {
			h.sendJSON(out, gin.H{"type": "error", "message": err.Error()})
		}
	case "signal":
		res := s.SendSignal(msg.Signal)
		if !res.Success {
			h.sendJSON(out, gin.H{"type": "error", "message": res.Error})
		}
	case "resize":
		if msg.Cols <= 0 || msg.Rows <= 0 {
			h.sendJSON(out, gin.H{"type": "error", "message": "cols and rows must be positive"})
			return
		}
		if err := s.Resize(msg.Cols, msg.Rows); err != nil {
			h.sendJSON(out, gin.H{"type": "error", "message": err.Error()})
			return
		}
		h.sendJSON(out, gin.H{"type": "resized", "cols": msg.Cols, "rows": msg.Rows})
	case "ping":
		h.sendJSON(out, gin.H{"type": "pong", "timestamp": time.Now().Unix()})
	default:
		h.sendJSON(out, gin.H{"type": "error", "message": "unknown message type"})
	}
}

// sendHello delivers the replay blob so a fresh viewer renders the screen
// as it stands before any live bytes arrive.
func (h *Handler) sendHello(out chan<- frame, s *session.Session, viewerID string) {
	screen, err := s.SerializeScreen()
	if err != nil {
		h.logger.Warn("screen serialization failed",
			zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	h.sendJSON(out, gin.H{
		"type":       "screen",
		"session_id": s.ID,
		"viewer_id":  viewerID,
		"screen":     json.RawMessage(screen),
	})
}

func (h *Handler) sendJSON(out chan<- frame, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	select {
	case out <- frame{payload: payload}:
	default:
	}
}
