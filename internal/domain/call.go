package domain

// TokenKey identifies a tradable instrument on a specific chain.
type TokenKey struct {
	Address string
	Chain   string
}

// Call is an alert emitted by a named caller for a token at a timestamp.
// Immutable. CallTimestamp is the observation time; entry is derived from
// it via an entryDelayMs applied by the Planner, never mutated here.
type Call struct {
	CallID        string
	Caller        string
	Token         TokenKey
	CallTimestamp int64 // unix ms
}
