package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/v1/users/me", "GET", 200, time.Millisecond)
	m.RecordRequest("/v1/users/me", "GET", 200, time.Millisecond)
	m.RecordError("/v1/users/me", "GET", "UNAUTHENTICATED")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/v1/users/me|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/v1/users/me|GET|UNAUTHENTICATED"])
	assert.Equal(t, 2*time.Millisecond, snap.Latency["/v1/users/me|GET|200"])

	var nilMetrics *Metrics
	nilMetrics.RecordRequest("/", "GET", 200, 0)
	assert.Empty(t, nilMetrics.Snapshot().Requests)
}

func TestRequestLoggerRecordsRoute(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/v1/users/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/users/42", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, int64(1), m.Snapshot().Requests["/v1/users/:id|GET|204"])
}
