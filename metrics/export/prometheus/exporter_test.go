package prometheus

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/credential/memory"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenNothingCollected(t *testing.T) {
	exp := New(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{},
		Histograms: map[authcore.MetricID][]uint64{},
	}})
	require.Empty(t, exp.Render())
	require.Empty(t, (*Exporter)(nil).Render())
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess:       7,
				authcore.MetricTOTPReplayRejected: 2,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	require.Contains(t, out, "# TYPE authcore_login_success_total counter\n")
	require.Contains(t, out, "authcore_login_success_total 7\n")
	require.Contains(t, out, "authcore_totp_replay_rejected_total 2\n")
	require.Contains(t, out, "authcore_login_failure_total 0\n")
	require.Contains(t, out, `authcore_authenticate_latency_seconds_bucket{le="0.005"} 1`)
	require.Contains(t, out, `authcore_authenticate_latency_seconds_bucket{le="+Inf"} 36`)
	require.Contains(t, out, "authcore_authenticate_latency_seconds_count 36\n")
	require.Contains(t, out, "authcore_audit_dropped_total 2\n")
}

func TestRenderOmitsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := New(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 1},
		Histograms: map[authcore.MetricID][]uint64{},
	}})
	require.NotContains(t, exp.Render(), "latency_seconds")
}

func TestHandlerServesEngineCounters(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	cfg := authcore.DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub

	engine, err := authcore.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New()).
		WithMetricsEnabled(true).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	_, err = engine.Authenticate(context.Background(), "garbage")
	require.Error(t, err)

	rec := httptest.NewRecorder()
	New(engine).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	require.Contains(t, rec.Body.String(), "authcore_authenticate_failure_total 1\n")
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:           1000,
			authcore.MetricLoginFailure:           40,
			authcore.MetricSessionRefreshed:       800,
			authcore.MetricTOTPSuccess:            300,
			authcore.MetricRecoveryCodeUsed:       4,
			authcore.MetricPasswordResetRequest:   12,
			authcore.MetricEmailOTPDispatchFailed: 1,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricAuthenticateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
		},
	}})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
