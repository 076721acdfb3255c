package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_JSONFieldNames(t *testing.T) {
	stats := PoolStats{
		Total:         10,
		Idle:          5,
		Acquired:      5,
		Max:           20,
		AcquireCount:  100,
		EmptyAcquires: 2,
		PingLatency:   "1.5ms",
	}

	b, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal pool stats: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal pool stats: %v", err)
	}
	if got["total_conns"].(float64) != 10 {
		t.Errorf("expected total_conns 10, got %v", got["total_conns"])
	}
	if got["acquired_conns"].(float64) != 5 {
		t.Errorf("expected acquired_conns 5, got %v", got["acquired_conns"])
	}
	if got["ping_latency"] != "1.5ms" {
		t.Errorf("expected ping_latency to round-trip, got %v", got["ping_latency"])
	}
}

func TestPoolStats_OmitsEmptyPingLatency(t *testing.T) {
	b, err := json.Marshal(PoolStats{Max: 20})
	if err != nil {
		t.Fatalf("marshal pool stats: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal pool stats: %v", err)
	}
	if _, ok := got["ping_latency"]; ok {
		t.Error("expected ping_latency omitted when unset")
	}
}
