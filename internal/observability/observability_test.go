package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMission(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		durationMS int64
	}{
		{"complete mission", "complete", 1200},
		{"failed mission", "failed", 300},
		{"zero duration", "complete", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordMission(tt.status, tt.durationMS)
			assert.Greater(t, testutil.ToFloat64(missionsTotal.WithLabelValues(tt.status)), 0.0)
		})
	}
}

func TestRecordCounters(t *testing.T) {
	before := testutil.ToFloat64(codeAttemptsTotal.WithLabelValues("fail"))
	RecordCodeAttempt("fail")
	assert.Equal(t, before+1, testutil.ToFloat64(codeAttemptsTotal.WithLabelValues("fail")))

	RecordDependencyInstall("missing_module", 2)
	assert.GreaterOrEqual(t, testutil.ToFloat64(dependencyInstallsTotal.WithLabelValues("missing_module")), 2.0)

	RecordToolCall("web_search", "ok")
	RecordSandboxRun("run", "ok")
	RecordStep("code", "complete")
	RecordLLMCall("ollama", "phi4", "success", 1500)
	assert.Greater(t, testutil.ToFloat64(llmCallsTotal.WithLabelValues("ollama", "phi4", "success")), 0.0)
}

func TestHandlerServesMetrics(t *testing.T) {
	RecordStep("tool", "complete")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "taskpilot_steps_total"))
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer("taskpilot", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
