package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/genes/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/genes/Shh", "/genes/Gfap", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/genes/:id", "GET", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.ObserveGrouping("all", time.Millisecond, 2)
	m.ObserveGrouping("age", time.Millisecond, 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fallbackColors))

	m.ObserveCache("genebody", false)
	m.ObserveCache("genebody", true)
	m.ObserveCache("genebody", true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("genebody", "hit")))

	m.Observe(context.Background(), "export", true, time.Second)
	m.Observe(context.Background(), "", true, time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(m.operations))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveCache("tss", false)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `expression_atlas_feature_cache_lookups_total{result="miss",source="tss"} 1`)
}
