package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorsRegisterAndRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	collectors, err := NewCollectors(registry)
	if err != nil {
		t.Fatalf("failed to register collectors: %v", err)
	}

	collectors.ObserveFeed(true, 20*time.Millisecond)
	collectors.CountNotification("like", "created")
	collectors.CountPushResult("pruned")
	collectors.CountRelayInvocation("delivered")
	collectors.RecordSweep(70, 50)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := map[string]bool{}
	for _, family := range families {
		found[family.GetName()] = true
	}
	for _, name := range []string{
		"brewlog_feed_rank_duration_seconds",
		"brewlog_notifications_total",
		"brewlog_push_results_total",
		"brewlog_outbox_invocations_total",
		"brewlog_sweep_nudges_total",
		"brewlog_sweep_last_candidates",
	} {
		if !found[name] {
			t.Fatalf("expected metric family %s to be gathered", name)
		}
	}
}

func TestCollectorsRejectDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewCollectors(registry); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := NewCollectors(registry); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestNilCollectorsAreNoOps(t *testing.T) {
	var collectors *Collectors
	collectors.ObserveFeed(false, time.Second)
	collectors.CountNotification("nudge", "created")
	collectors.CountPushResult("delivered")
	collectors.CountRelayInvocation("failed")
	collectors.RecordSweep(1, 1)
}
