package stats

import "testing"

func TestHelp(t *testing.T) {
	if got := Help(MetricSizeBytes); got == MetricSizeBytes {
		t.Errorf("Help(%q) has no description", MetricSizeBytes)
	}
	if got := Help("unknown_metric"); got != "unknown_metric" {
		t.Errorf("Help(unknown) = %q, want name", got)
	}
}

func TestBool(t *testing.T) {
	if Bool(true) != 1 || Bool(false) != 0 {
		t.Errorf("Bool() = %d/%d, want 1/0", Bool(true), Bool(false))
	}
}

func TestNoop(t *testing.T) {
	var c Collector = NewNoop()
	c.IncCounter(MetricWrites, 1)
	c.SetGauge(MetricReady, 1)
	c.ObserveHistogram(MetricWriteSeconds, 0.1)
}
