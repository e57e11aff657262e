package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus("ledger_test")
	if err := p.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p.ObserveOperation("archive", "ok", 3*time.Millisecond)
	p.ObserveOperation("archive", "ok", 5*time.Millisecond)
	p.ObserveOperation("archive", "not_found", time.Millisecond)
	p.ObserveOrphanLeg("archive")
	p.ObserveBulkItem("archive_many", "changed")

	if got := testutil.ToFloat64(p.operations.WithLabelValues("archive", "ok")); got != 2 {
		t.Errorf("ok operations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.orphans.WithLabelValues("archive")); got != 1 {
		t.Errorf("orphans = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.bulkItems.WithLabelValues("archive_many", "changed")); got != 1 {
		t.Errorf("bulk items = %v, want 1", got)
	}

	if err := p.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestNoOpRecorder(t *testing.T) {
	var r Recorder = NoOp{}
	r.ObserveOperation("create", "ok", time.Second)
	r.ObserveOrphanLeg("archive")
	r.ObserveBulkItem("restore_many", "skipped")
}
