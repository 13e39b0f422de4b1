package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metric:
		for _, m := range fam.GetMetric() {
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metric
				}
			}
			if fam.GetType() == dto.MetricType_HISTOGRAM {
				return float64(m.GetHistogram().GetSampleCount())
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s%v not gathered", name, labels)
	return 0
}

func TestChannelCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewChannelCollector(reg)
	if err != nil {
		t.Fatalf("NewChannelCollector: %v", err)
	}

	c.RecordHit()
	c.RecordHit()
	c.RecordMiss()
	c.RecordBypass()
	c.RecordRoundtrip("channel_state", 0.012)
	c.RecordRoundtrip("sim_init", 0.5)

	if got := counterValue(t, reg, "channel_cache_hits_total", nil); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := counterValue(t, reg, "channel_cache_misses_total", nil); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := counterValue(t, reg, "channel_optimizer_bypass_total", nil); got != 1 {
		t.Errorf("bypasses = %v, want 1", got)
	}
	if got := counterValue(t, reg, "oracle_roundtrips_total", map[string]string{"kind": "channel_state"}); got != 1 {
		t.Errorf("channel_state roundtrips = %v, want 1", got)
	}
	if got := counterValue(t, reg, "oracle_roundtrip_duration_seconds", nil); got != 2 {
		t.Errorf("duration samples = %v, want 2", got)
	}
}

func TestChannelCollectorReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewChannelCollector(reg)
	if err != nil {
		t.Fatalf("first NewChannelCollector: %v", err)
	}
	second, err := NewChannelCollector(reg)
	if err != nil {
		t.Fatalf("second NewChannelCollector: %v", err)
	}

	// Both collectors must feed the same underlying series.
	first.RecordHit()
	second.RecordHit()
	if got := counterValue(t, reg, "channel_cache_hits_total", nil); got != 2 {
		t.Errorf("hits across re-registration = %v, want 2", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *ChannelCollector
	c.RecordHit()
	c.RecordMiss()
	c.RecordBypass()
	c.RecordRoundtrip("sim_close", 0)
}
