package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func scrape(m *Metrics) string {
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	return w.Body.String()
}

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/sessions/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/sessions/sess_abc123", nil))

	body := scrape(m)
	assert.Contains(t, body, `path="/sessions/:id"`)
	// The raw URL would explode label cardinality, one series per session.
	assert.NotContains(t, body, "sess_abc123")
}

func TestMiddlewareRecordsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/no/such/route", nil))

	body := scrape(m)
	assert.Contains(t, body, `path="unmatched"`)
	assert.Contains(t, body, `status="404"`)
}

func TestSessionLifecycleCounters(t *testing.T) {
	m := NewMetrics()

	m.SessionCreated()
	m.SessionCreated()
	m.SessionDestroyed()
	m.CommandExecuted("success")
	m.EscalationRaised()
	m.GuidanceApplied("ready")

	body := scrape(m)
	assert.Contains(t, body, "replgate_sessions_total 2")
	assert.Contains(t, body, "replgate_sessions_active 1")
	assert.Contains(t, body, `replgate_commands_total{status="success"} 1`)
	assert.Contains(t, body, "replgate_escalations_total 1")
	assert.Contains(t, body, `replgate_guidance_total{kind="ready"} 1`)
}
