package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureCounter struct {
	mu      sync.Mutex
	records [][]Label
}

func (c *captureCounter) Inc(_ context.Context, labels ...Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, append([]Label(nil), labels...))
}

func (c *captureCounter) Add(ctx context.Context, _ float64, labels ...Label) {
	c.Inc(ctx, labels...)
}

type captureHistogram struct {
	records int
}

func (h *captureHistogram) Record(context.Context, float64, ...Label) {
	h.records++
}

func labelValue(labels []Label, key string) string {
	for _, l := range labels {
		if l.Key == key {
			return l.Value
		}
	}
	return ""
}

func TestGinHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantRoute  string
		wantClass  string
	}{
		{"route template", http.MethodGet, "/api/v2/metrics/", http.StatusOK, "/api/v2/metrics/", "2xx"},
		{"method not allowed", http.MethodPost, "/api/v2/metrics/", http.StatusMethodNotAllowed, "/api/v2/metrics/", "4xx"},
		{"unmatched path", http.MethodGet, "/random-scan-value", http.StatusNotFound, UnknownRoute, "4xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &captureCounter{}
			histogram := &captureHistogram{}
			httpMetrics := &HTTPServerMetrics{service: "awx", requestTotal: counter, duration: histogram}

			router := gin.New()
			router.Use(GinHTTPMiddleware(httpMetrics))
			router.GET("/api/v2/metrics/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
			router.POST("/api/v2/metrics/", func(c *gin.Context) { c.Status(http.StatusMethodNotAllowed) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			require.Len(t, counter.records, 1)
			assert.Equal(t, tt.wantRoute, labelValue(counter.records[0], LabelRoute))
			assert.Equal(t, tt.wantClass, labelValue(counter.records[0], LabelStatusClass))
			assert.Equal(t, "awx", labelValue(counter.records[0], LabelService))
			assert.Equal(t, 1, histogram.records)
		})
	}
}

func TestGinHTTPMiddlewareNilMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinHTTPMiddleware(nil))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNewHTTPServerMetrics(t *testing.T) {
	_, err := NewHTTPServerMetrics(nil, nil)
	assert.Error(t, err)

	m, err := NewHTTPServerMetrics(Discard(), nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown", m.service)

	var nilMetrics *HTTPServerMetrics
	nilMetrics.Observe(context.Background(), "GET", "/", 200, 0)
}
