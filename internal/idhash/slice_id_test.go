package idhash

import (
	"testing"

	"backtest-engine/internal/domain"
)

func TestComputeSliceHash_PermutationInvariant(t *testing.T) {
	a := domain.TokenKey{Address: "AAA", Chain: "solana"}
	b := domain.TokenKey{Address: "BBB", Chain: "solana"}

	windows := []domain.PlanWindow{
		{CallID: "c1", Token: a, From: 1000, To: 2000},
		{CallID: "c2", Token: b, From: 1500, To: 2500},
	}
	reversed := []domain.PlanWindow{windows[1], windows[0]}

	h1 := ComputeSliceHash(domain.Interval1m, domain.SliceSchemaVersion, windows)
	h2 := ComputeSliceHash(domain.Interval1m, domain.SliceSchemaVersion, reversed)

	if h1 != h2 {
		t.Fatalf("slice hash must be invariant to window order: %s != %s", h1, h2)
	}
	if h1 == "" {
		t.Fatal("slice hash must not be empty")
	}
}

func TestComputeSliceHash_DiffersOnInputChange(t *testing.T) {
	a := domain.TokenKey{Address: "AAA", Chain: "solana"}
	w1 := []domain.PlanWindow{{CallID: "c1", Token: a, From: 1000, To: 2000}}
	w2 := []domain.PlanWindow{{CallID: "c1", Token: a, From: 1000, To: 2001}}

	h1 := ComputeSliceHash(domain.Interval1m, domain.SliceSchemaVersion, w1)
	h2 := ComputeSliceHash(domain.Interval1m, domain.SliceSchemaVersion, w2)

	if h1 == h2 {
		t.Fatal("slice hash must change when a window boundary changes")
	}
}

func TestComputePolicyHash_TieBreakAffectsHash(t *testing.T) {
	risk := domain.RiskPolicy{EntryDelayMs: 500}
	params := []byte(`{"tpMult":2,"slMult":0.5}`)

	h1 := ComputePolicyHash(domain.PolicyFixedTPSL, params, domain.TieBreakStopFirst, risk)
	h2 := ComputePolicyHash(domain.PolicyFixedTPSL, params, domain.TieBreakTargetFirst, risk)

	if h1 == h2 {
		t.Fatal("distinct tie-break configuration must hash to a distinct policy identity")
	}
}

func TestComputeCallsHash_OrderInvariant(t *testing.T) {
	calls := []domain.Call{
		{CallID: "c1", Caller: "alice", Token: domain.TokenKey{Address: "A"}, CallTimestamp: 1},
		{CallID: "c2", Caller: "bob", Token: domain.TokenKey{Address: "B"}, CallTimestamp: 2},
	}
	reversed := []domain.Call{calls[1], calls[0]}

	if ComputeCallsHash(calls) != ComputeCallsHash(reversed) {
		t.Fatal("calls hash must be invariant to call order")
	}
}
