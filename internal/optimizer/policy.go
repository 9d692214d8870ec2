package optimizer

import (
	"backtest-engine/internal/domain"
	"backtest-engine/internal/idhash"
	"backtest-engine/internal/policy"
)

// BuildPolicy constructs the exit_stack{fixed_tp_sl, time_cap} policy a
// ParamTuple represents, plus its content hash under risk.
// Composed programmatically via policy.NewExitStack rather than
// through the FromSpec JSON boundary, since the Optimizer never sees
// --policy-json: it only sees ParamTuples it generated itself.
func BuildPolicy(tuple ParamTuple, risk domain.RiskPolicy) (policy.Policy, string, error) {
	tp, err := policy.NewFixedTPSL(domain.FixedTPSLConfig{TPMult: tuple.TPMult, SLMult: tuple.SLMult}, risk.TieBreak)
	if err != nil {
		return nil, "", err
	}
	tc, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: int64(tuple.MaxHoldHrs * 3600000)})
	if err != nil {
		return nil, "", err
	}
	stack, err := policy.NewExitStack(tp, tc)
	if err != nil {
		return nil, "", err
	}

	paramsJSON, err := stack.ParamsJSON()
	if err != nil {
		return nil, "", err
	}
	hash := idhash.ComputePolicyHash(domain.PolicyExitStack, paramsJSON, risk.TieBreak, risk)
	return stack, hash, nil
}
