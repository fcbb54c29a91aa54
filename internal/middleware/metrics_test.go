package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	method, path string
	status       int
}

type observerStub struct {
	calls []observed
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.calls = append(o.calls, observed{method: method, path: path, status: status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/sessions/:id/screen", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/sessions/a/screen", "/sessions/b/screen", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, obs.calls, 3)
	assert.Equal(t, "/sessions/:id/screen", obs.calls[0].path)
	assert.Equal(t, "/sessions/:id/screen", obs.calls[1].path)
	assert.Equal(t, observed{method: http.MethodGet, path: "unmatched", status: http.StatusNotFound}, obs.calls[2])
}
