package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Statuses(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck(PingCheck())

	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, resp.Status)
	assert.Equal(t, "OK", resp.Checks["ping"].Message)

	hc.RegisterCheck(&HealthCheck{
		Name:      "cache",
		CheckFunc: func(ctx context.Context) error { return errors.New("cold") },
	})
	assert.Equal(t, HealthStatusDegraded, hc.Check(context.Background()).Status)

	hc.RegisterCheck(ServiceCheck("redis", func(ctx context.Context) error {
		return errors.New("connection refused")
	}))
	resp = hc.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Message)
}

func TestHealthChecker_Timeout(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck(&HealthCheck{
		Name:     "slow",
		Timeout:  10 * time.Millisecond,
		Critical: true,
		CheckFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks["slow"].Message, "deadline exceeded")
}

func TestServer_Routes(t *testing.T) {
	InitMetrics()

	hc := NewHealthChecker()
	hc.RegisterCheck(PingCheck())
	srv := httptest.NewServer(NewServer(0, hc).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, HealthStatusHealthy, body.Status)

	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	RecordAggregation("fail-soft", "succeeded", 5*time.Millisecond)
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ReadinessUnhealthy(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck(ServiceCheck("redis", func(ctx context.Context) error {
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "not ready"))
}

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsAfterResolution.WithLabelValues("fail-fast"))

	RecordOperation("fail-fast", "succeeded", true)
	RecordOperation("fail-fast", "failed", false)

	after := testutil.ToFloat64(operationsAfterResolution.WithLabelValues("fail-fast"))
	assert.Equal(t, before+1, after)
	assert.GreaterOrEqual(t, testutil.ToFloat64(operationsTotal.WithLabelValues("fail-fast", "failed")), 1.0)
}
