package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_ObserveQuery(t *testing.T) {
	r := Recorder{}
	r.ObserveQuery("MetricsOrder", "grouped", 5*time.Millisecond, nil)
	r.ObserveQuery("MetricsOrder", "grouped", time.Millisecond, errors.New("boom"))

	if v := testutil.ToFloat64(QueriesTotal.WithLabelValues("MetricsOrder", "grouped", "ok")); v != 1 {
		t.Errorf("ok queries = %f, want 1", v)
	}
	if v := testutil.ToFloat64(QueriesTotal.WithLabelValues("MetricsOrder", "grouped", "error")); v != 1 {
		t.Errorf("failed queries = %f, want 1", v)
	}
	if testutil.CollectAndCount(QueryDuration) == 0 {
		t.Error("expected query duration observations")
	}
}

func TestRecorder_ObserveWrite(t *testing.T) {
	r := Recorder{}
	r.ObserveWrite("MetricsItem", "insert", 3, nil)
	r.ObserveWrite("MetricsItem", "delete", 2, nil)
	r.ObserveWrite("MetricsItem", "insert", 4, errors.New("dup"))

	if v := testutil.ToFloat64(StructuresIndexedTotal.WithLabelValues("MetricsItem")); v != 3 {
		t.Errorf("indexed = %f, want 3", v)
	}
	if v := testutil.ToFloat64(WritesTotal.WithLabelValues("MetricsItem", "insert", "error")); v != 1 {
		t.Errorf("failed inserts = %f, want 1", v)
	}
}

func TestRecorder_ObserveSync(t *testing.T) {
	Recorder{}.ObserveSync("MetricsSync", "MetricsSyncUniques", 4)
	if v := testutil.ToFloat64(SyncDeletedTotal.WithLabelValues("MetricsSync", "MetricsSyncUniques")); v != 4 {
		t.Errorf("pruned = %f, want 4", v)
	}
}

func TestRegisterStoreMetrics_Idempotent(t *testing.T) {
	RegisterStoreMetrics()
	RegisterStoreMetrics()
}
