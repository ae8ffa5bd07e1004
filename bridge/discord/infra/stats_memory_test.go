package infra

import (
	"context"
	"testing"

	"discord-bridge/bridge/discord/domain"
)

func TestMemoryStatsStore_CountsByOp(t *testing.T) {
	s := NewMemoryStatsStore()
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Op: "get guild roles", Allowed: true})
	_ = s.Record(ctx, domain.StatsEvent{Op: "get guild roles", Allowed: true})
	_ = s.Record(ctx, domain.StatsEvent{Op: "get guild member", Allowed: false})

	total := s.Total()
	if total.Allowed != 2 || total.Denied != 1 {
		t.Fatalf("unexpected totals: %+v", total)
	}

	byOp := s.ByOp()
	if byOp["get guild roles"].Allowed != 2 {
		t.Fatalf("unexpected per-op counters: %+v", byOp)
	}
	if byOp["get guild member"].Denied != 1 {
		t.Fatalf("unexpected per-op counters: %+v", byOp)
	}
}
