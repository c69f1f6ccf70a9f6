package observability

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospitalsync/infrastructure/config"
)

func TestCreateObservability_NilConfig(t *testing.T) {
	_, err := CreateObservability(nil)
	assert.EqualError(t, err, "configuration is required")
}

func TestCreateObservability_UnsupportedMetrics(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Adapters.Metrics = "cloudwatch"

	_, err := CreateObservability(cfg)
	assert.EqualError(t, err, "unsupported metrics adapter: cloudwatch")
}

func TestCreateObservability_Stdout(t *testing.T) {
	cfg := config.DefaultConfig()

	obs, err := CreateObservability(cfg)
	require.NoError(t, err)

	logger, metrics, err := obs.ComponentsScoped("orchestrator")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NotNil(t, metrics)
	assert.NoError(t, obs.Flush())
}

func TestCreateObservability_PrometheusPushesOnFlush(t *testing.T) {
	var pushes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pushes, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Adapters.Metrics = "prometheus"
	cfg.Observability.PushgatewayURL = srv.URL

	obs, err := CreateObservability(cfg)
	require.NoError(t, err)

	_, metrics, err := obs.ComponentsScoped("orchestrator")
	require.NoError(t, err)
	metrics.IncrementCounter("runs_total", nil)

	require.NoError(t, obs.Flush())
	assert.Equal(t, int32(1), atomic.LoadInt32(&pushes))
}
