package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/microgrid-dispatch/core/metrics"
)

func TestPromSink_RecordTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ev := coremetrics.TickEvent{Duration: 20 * time.Millisecond, Active: 5, NotDue: 3, Due: 1, Finished: 1}
	if err := sink.RecordTick(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	expected := `
# HELP dispatch_evaluations_total Dispatch eligibility evaluations by resulting status
# TYPE dispatch_evaluations_total counter
dispatch_evaluations_total{status="due_now"} 1
dispatch_evaluations_total{status="finished"} 1
dispatch_evaluations_total{status="not_due"} 3
`
	if err := testutil.CollectAndCompare(sink.evaluations, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.active); v != 5 {
		t.Errorf("expected 5 active, got %v", v)
	}
	if c := testutil.CollectAndCount(sink.tickDuration); c != 1 {
		t.Errorf("tick duration not recorded")
	}
	if v := testutil.ToFloat64(sink.dropped); v != 0 {
		t.Errorf("expected no drops, got %v", v)
	}
	_ = sink.RecordTick(coremetrics.TickEvent{Due: 4, Dropped: 3})
	if v := testutil.ToFloat64(sink.dropped); v != 3 {
		t.Errorf("expected 3 drops, got %v", v)
	}
}

func TestPromSink_RecordFiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	_ = sink.RecordFiring(coremetrics.FiringEvent{Type: "charge", DryRun: true, Delay: time.Second})
	_ = sink.RecordFiring(coremetrics.FiringEvent{Type: "charge"})
	if v := testutil.ToFloat64(sink.firings.WithLabelValues("charge", "true")); v != 1 {
		t.Errorf("expected 1 dry-run firing, got %v", v)
	}
	if v := testutil.ToFloat64(sink.firings.WithLabelValues("charge", "false")); v != 1 {
		t.Errorf("expected 1 live firing, got %v", v)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	_ = a.RecordTick(coremetrics.TickEvent{Due: 2})
	if v := testutil.ToFloat64(b.evaluations.WithLabelValues("due_now")); v != 2 {
		t.Errorf("collectors not shared, got %v", v)
	}
}
