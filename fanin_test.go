package fanin

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/fanin/aggregator"
	"github.com/aixgo-dev/fanin/pkg/config"
	"github.com/aixgo-dev/fanin/pkg/observability"
)

func mustParse(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func TestRun_FailSoft(t *testing.T) {
	cfg := mustParse(t, `
policy: fail-soft
fallback: FALLBACK
timeout: 2s
services:
  - id: A
    message: A
    delay: 10ms
  - id: B
    message: B
    delay: 5ms
    fail: true
  - id: C
    message: C
    delay: 1ms
`)

	report, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, aggregator.FailSoft, report.Policy)
	assert.Equal(t, "A FALLBACK C", report.Joined)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.String(), `"A FALLBACK C"`)
}

func TestRun_FailPartialWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := mustParse(t, `
policy: fail-partial
services:
  - id: cache-1
    kind: redis
    message: one
  - id: broken
    message: two
    delay: 1ms
    fail: true
  - id: cache-2
    kind: redis
    message: three
    rate_limit:
      requests_per_second: 100
      burst: 1
`)
	cfg.Redis.Addr = mr.Addr()

	r, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	health := r.Health().Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
	assert.Contains(t, health.Checks, "redis")

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, report.Values)
	assert.True(t, strings.Contains(report.String(), "[one, three]"))
}

func TestRun_AllOrNothingFailure(t *testing.T) {
	cfg := mustParse(t, `
policy: all-or-nothing
message: ping
services:
  - id: A
    delay: 5ms
  - id: B
    delay: 1ms
    fail: true
`)

	_, err := Run(context.Background(), cfg, nil)
	require.Error(t, err)

	var aggErr *aggregator.AggregateError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, "B", aggErr.Cause.ServiceID)
}

func TestRun_CompletionOrderDefaultMessage(t *testing.T) {
	cfg := mustParse(t, `
policy: completion-order
services:
  - id: A
    delay: 20ms
  - id: B
    delay: 1ms
`)

	report, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "hello"}, report.Values)
}

func TestRun_ExplicitEmptyMessage(t *testing.T) {
	cfg := mustParse(t, `
policy: all-or-nothing
message: ""
separator: "|"
services:
  - id: A
    delay: 1ms
  - id: B
    delay: 1ms
`)

	report, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "|", report.Joined)
}

func TestRun_NoServices(t *testing.T) {
	cfg := mustParse(t, "policy: fail-fast\n")

	report, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "", report.Joined)
}

func TestRun_TimeoutBoundsWaitOnly(t *testing.T) {
	cfg := mustParse(t, `
policy: fail-fast
timeout: 20ms
services:
  - id: slow
    message: x
    delay: 300ms
`)

	r, err := NewRunner(cfg, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	// Close drains the still-running operation.
	require.NoError(t, r.Close())
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestNewRunner_InvalidConfig(t *testing.T) {
	cfg := mustParse(t, `
policy: eventually
services:
  - id: A
`)

	_, err := NewRunner(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewRunner_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := mustParse(t, `
services:
  - id: cache
    kind: redis
`)
	cfg.Redis.Addr = addr

	_, err := NewRunner(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}
