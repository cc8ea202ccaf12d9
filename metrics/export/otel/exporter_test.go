package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[authcore.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authcore.MetricsSnapshot{
		Counters:   make(map[authcore.MetricID]uint64, len(f.counters)),
		Histograms: map[authcore.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.latency != nil {
		out.Histograms[authcore.MetricAuthenticateLatency] = append([]uint64(nil), f.latency...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterCollectsCountersAndBuckets(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:     3,
			authcore.MetricRecoveryCodeUsed: 1,
		},
		latency: []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped: 1,
	}

	exp, err := New(provider.Meter("authcore-test"), src)
	require.NoError(t, err)
	defer func() { require.NoError(t, exp.Close()) }()

	got := collectSums(t, reader)
	require.Equal(t, int64(3), got["authcore_login_success_total"])
	require.Equal(t, int64(1), got["authcore_recovery_code_used_total"])
	require.Equal(t, int64(0), got["authcore_login_failure_total"])
	require.Equal(t, int64(1), got["authcore_authenticate_latency_seconds_bucket_le_0_005"])
	require.Equal(t, int64(8), got["authcore_authenticate_latency_seconds_bucket_le_inf"])
	require.Equal(t, int64(8), got["authcore_authenticate_latency_seconds_count"])
	require.Equal(t, int64(1), got["authcore_audit_dropped_total"])
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()

	_, err := New(provider.Meter("authcore-test"), nil)
	require.ErrorIs(t, err, ErrNilSource)

	_, err = New(nil, &fakeSource{})
	require.ErrorIs(t, err, ErrNilMeter)

	require.NoError(t, (*Exporter)(nil).Close())
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{counters: map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 1}}

	exp, err := New(provider.Meter("authcore-test"), src)
	require.NoError(t, err)
	defer func() { require.NoError(t, exp.Close()) }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[authcore.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
