package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/service"
)

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/classes/:id/timetable", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/classes/a/timetable", "/classes/b/timetable", "/health", "/wp-login.php"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var total *float64
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		require.Len(t, family.GetMetric(), 2)
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			switch labels["path"] {
			case "/classes/:id/timetable":
				v := metric.GetCounter().GetValue()
				total = &v
				require.Equal(t, "200", labels["status"])
			case unmatchedRoute:
				require.Equal(t, "404", labels["status"])
			default:
				t.Fatalf("unexpected path label %q", labels["path"])
			}
		}
	}
	require.NotNil(t, total)
	require.Equal(t, 2.0, *total)
	count, err := testutil.GatherAndCount(metrics.Registry(), "http_request_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
