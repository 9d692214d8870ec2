package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"backtest-engine/internal/domain"
)

// ComputeSliceHash computes the Slice content hash over the sorted
// eligible windows, the schema version, and the interval. Windows
// are sorted by (token, chain, callID) first so that permuting the input
// slice produces an identical hash, matching the reproducibility
// guarantee the Materializer must provide.
func ComputeSliceHash(interval domain.Interval, schemaVersion int, windows []domain.PlanWindow) string {
	sorted := make([]domain.PlanWindow, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Token.Address != sorted[j].Token.Address {
			return sorted[i].Token.Address < sorted[j].Token.Address
		}
		if sorted[i].Token.Chain != sorted[j].Token.Chain {
			return sorted[i].Token.Chain < sorted[j].Token.Chain
		}
		return sorted[i].CallID < sorted[j].CallID
	})

	h := sha256.New()
	fmt.Fprintf(h, "interval=%s|schema=%d", interval, schemaVersion)
	for _, w := range sorted {
		fmt.Fprintf(h, "|%s:%s:%s:%d:%d", w.Token.Address, w.Token.Chain, w.CallID, w.From, w.To)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ComputePolicyHash computes a Policy's content hash: a policy is
// identified by a content hash and a discriminated kind. The hash
// covers every parameter and the tie-break field so a non-default
// tie-break produces a distinct, addressable identity.
func ComputePolicyHash(kind domain.PolicyKind, paramsJSON []byte, tieBreak domain.TieBreak, risk domain.RiskPolicy) string {
	h := sha256.New()
	fmt.Fprintf(h, "kind=%s|tieBreak=%s|entryDelayMs=%d|takerBps=%g|slippageBps=%g|sizeUsd=%g|",
		kind, tieBreak, risk.EntryDelayMs, risk.TakerFeeBps, risk.SlippageBps, risk.SizeUSD)
	h.Write(paramsJSON)
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeCallsHash computes the content hash of a set of calls, used
// as the `calls` entry of a run manifest's Inputs.
func ComputeCallsHash(calls []domain.Call) string {
	sorted := make([]domain.Call, len(calls))
	copy(sorted, calls)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CallID < sorted[j].CallID })

	h := sha256.New()
	for _, c := range sorted {
		fmt.Fprintf(h, "%s:%s:%s:%s:%d|", c.CallID, c.Caller, c.Token.Address, c.Token.Chain, c.CallTimestamp)
	}
	return hex.EncodeToString(h.Sum(nil))
}
