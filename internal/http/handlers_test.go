package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replgate/replgate/internal/logging"
	"github.com/replgate/replgate/internal/pty"
	"github.com/replgate/replgate/internal/session"
)

// stubHandle is a scriptable process handle for transport-level tests.
type stubHandle struct {
	mu      sync.Mutex
	written []byte
	dataFns []func([]byte)
	killed  bool
	respond func(p []byte)
}

func (f *stubHandle) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.written = append(f.written, p...)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		respond(p)
	}
	return len(p), nil
}

func (f *stubHandle) OnData(fn func(p []byte)) {
	f.mu.Lock()
	f.dataFns = append(f.dataFns, fn)
	f.mu.Unlock()
}

func (f *stubHandle) OnExit(fn func(code int)) {}

func (f *stubHandle) Resize(cols, rows uint16) error { return nil }

func (f *stubHandle) Kill() error {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
	return nil
}

func (f *stubHandle) emit(s string) {
	f.mu.Lock()
	fns := make([]func([]byte), len(f.dataFns))
	copy(fns, f.dataFns)
	f.mu.Unlock()
	for _, fn := range fns {
		fn([]byte(s))
	}
}

func newTestRouter(handles ...*stubHandle) (*gin.Engine, *session.Manager) {
	gin.SetMode(gin.TestMode)

	var (
		mu sync.Mutex
		i  int
	)
	spawner := func(command string, args []string, opts pty.SpawnOptions) (pty.Handle, error) {
		mu.Lock()
		defer mu.Unlock()
		h := handles[i]
		i++
		return h, nil
	}

	tuning := session.Tuning{
		DefaultTimeout: 250 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		MaxWait:        time.Second,
		HistoryLimit:   10,
		Cols:           80,
		Rows:           24,
	}
	store := logging.NewStore(100, 100)
	manager := session.NewManager(spawner, tuning, logging.NewNop(), store, nil)

	router := gin.New()
	NewHandlers(manager, store).Register(router)
	return router, manager
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

// createReadySession drives POST /sessions against a stub that prompts.
func createReadySession(t *testing.T, router *gin.Engine, h *stubHandle) string {
	t.Helper()

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.emit("Python 3.12.1\r\n>>> ")
	}()

	w, body := doJSON(t, router, "POST", "/sessions", session.Config{
		ReplType: "python",
		Shell:    "/bin/bash",
	})
	require.Equal(t, http.StatusOK, w.Code, "create: %v", body)
	require.Equal(t, true, body["success"])
	return body["session_id"].(string)
}

func TestRootAndHealth(t *testing.T) {
	router, _ := newTestRouter()

	w, body := doJSON(t, router, "GET", "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "replgate", body["service"])

	w, body = doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestCreateGetListDestroy(t *testing.T) {
	h := &stubHandle{}
	router, manager := newTestRouter(h)

	sid := createReadySession(t, router, h)
	assert.True(t, strings.HasPrefix(sid, "sess_"))

	w, body := doJSON(t, router, "GET", "/sessions/"+sid, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, float64(80), body["cols"])

	w, body = doJSON(t, router, "GET", "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, _ = doJSON(t, router, "DELETE", "/sessions/"+sid, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, manager.Count())

	w, _ = doJSON(t, router, "DELETE", "/sessions/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDestroyReportsFlag(t *testing.T) {
	h := &stubHandle{}
	router, _ := newTestRouter(h)
	sid := createReadySession(t, router, h)

	w, body := doJSON(t, router, "DELETE", "/sessions/"+sid, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["destroyed"])
}

func TestCreateSessionRejectsBadStartDir(t *testing.T) {
	router, _ := newTestRouter()

	w, body := doJSON(t, router, "POST", "/sessions", session.Config{
		StartDir: "/definitely/not/a/dir",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "start_dir")
}

func TestSendInputRoundTrip(t *testing.T) {
	h := &stubHandle{}
	router, _ := newTestRouter(h)
	sid := createReadySession(t, router, h)

	h.mu.Lock()
	h.respond = func(p []byte) { h.emit("2\r\n>>> ") }
	h.mu.Unlock()

	w, body := doJSON(t, router, "POST", "/sessions/"+sid+"/input", InputRequest{Input: "1+1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["raw_output"], "2")
}

func TestSendInputTimeoutThenGuidance(t *testing.T) {
	h := &stubHandle{}
	router, _ := newTestRouter(h)
	sid := createReadySession(t, router, h)

	// The command lands in an unrecognized sub-prompt.
	h.mu.Lock()
	h.respond = func(p []byte) {
		if strings.HasPrefix(string(p), "debug()") {
			h.emit("(custom-debug) ")
		}
	}
	h.mu.Unlock()

	w, body := doJSON(t, router, "POST", "/sessions/"+sid+"/input", InputRequest{Input: "debug()"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "command_timeout", body["question_type"])
	assert.NotEmpty(t, body["question_id"])
	assert.Equal(t, true, body["can_continue"])

	w, body = doJSON(t, router, "POST", "/sessions/"+sid+"/guidance", GuidanceRequest{
		QuestionID: body["question_id"].(string),
		Answer:     "READY: (custom-debug)",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
}

func TestSendSignal(t *testing.T) {
	h := &stubHandle{}
	router, _ := newTestRouter(h)
	sid := createReadySession(t, router, h)

	w, body := doJSON(t, router, "POST", "/sessions/"+sid+"/signal", SignalRequest{Signal: "interrupt"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	w, _ = doJSON(t, router, "POST", "/sessions/"+sid+"/signal", SignalRequest{Signal: "hangup"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOutputPagination(t *testing.T) {
	h := &stubHandle{}
	router, _ := newTestRouter(h)
	sid := createReadySession(t, router, h)

	// Pages are contiguous: walking next_offset reassembles the buffer.
	chunk, total := pageOutput(t, router, sid, 0, 10)
	assembled := chunk
	offset := len(chunk)
	for offset < total {
		chunk, _ = pageOutput(t, router, sid, offset, 10)
		assembled += chunk
		offset += len(chunk)
	}
	assert.Contains(t, assembled, "Python 3.12.1")
	assert.Contains(t, assembled, ">>> ")
}

func pageOutput(t *testing.T, router *gin.Engine, sid string, offset, limit int) (string, int) {
	t.Helper()
	w, body := doJSON(t, router, "GET",
		"/sessions/"+sid+"/output?offset="+strconv.Itoa(offset)+"&limit="+strconv.Itoa(limit), nil)
	require.Equal(t, http.StatusOK, w.Code)

	chunk := body["output"].(string)
	total := int(body["total"].(float64))
	next := int(body["next_offset"].(float64))
	require.Equal(t, offset+len(chunk), next)
	require.Equal(t, next < total, body["has_more"].(bool))
	return chunk, total
}

func TestGetText(t *testing.T) {
	h := &stubHandle{}
	router, _ := newTestRouter(h)
	sid := createReadySession(t, router, h)

	w, body := doJSON(t, router, "GET", "/sessions/"+sid+"/text", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ">>>", body["text"])

	w, body = doJSON(t, router, "GET", "/sessions/"+sid+"/text?full_screen=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["text"], "Python 3.12.1")
}

func TestLogsEndpoints(t *testing.T) {
	h := &stubHandle{}
	router, _ := newTestRouter(h)
	sid := createReadySession(t, router, h)

	w, body := doJSON(t, router, "GET", "/sessions/"+sid+"/logs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, body["logs"])

	w, body = doJSON(t, router, "GET", "/logs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, body["logs"])
}

func TestUnknownSession(t *testing.T) {
	router, _ := newTestRouter()

	for _, route := range []struct{ method, path string }{
		{"GET", "/sessions/sess_missing"},
		{"POST", "/sessions/sess_missing/signal"},
		{"GET", "/sessions/sess_missing/output"},
		{"GET", "/sessions/sess_missing/text"},
	} {
		w, _ := doJSON(t, router, route.method, route.path, SignalRequest{Signal: "interrupt"})
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", route.method, route.path)
	}
}
