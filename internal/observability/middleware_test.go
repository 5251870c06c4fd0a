package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRequestLoggerUsesRouteTemplateAndQuietPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(logger, "/health"))
	r.Use(RequestMetricsMiddleware("test"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/sessions/:code", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected quiet path below info level, got %q", buf.String())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/ABC123", nil))
	line := buf.String()
	if !strings.Contains(line, `"path":"/sessions/:code"`) {
		t.Fatalf("expected route template in log line, got %q", line)
	}
	if !strings.Contains(line, `"level":"warn"`) {
		t.Fatalf("expected warn level for 404, got %q", line)
	}
}
