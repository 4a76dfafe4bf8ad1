package control_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ulala-x/serverlink/control"
)

func TestMetricsRegistryCounters(t *testing.T) {
	mr := control.NewMetricsRegistry()

	mr.MessagesSent.Add(3)
	mr.MessagesRecv.Inc()
	mr.PipeHWMHits.Inc()
	mr.SocketsLive.Set(2)
	mr.QueueDepth.WithLabelValues("timer-wheel").Set(5)

	if got := testutil.ToFloat64(mr.MessagesSent); got != 3 {
		t.Errorf("MessagesSent = %v, want 3", got)
	}
	if got := testutil.ToFloat64(mr.MessagesRecv); got != 1 {
		t.Errorf("MessagesRecv = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mr.SocketsLive); got != 2 {
		t.Errorf("SocketsLive = %v, want 2", got)
	}

	families, err := mr.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("Gather() returned no metric families")
	}
}
