package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
)

func TestBuildPolicy_ProducesExitStackAndStableHash(t *testing.T) {
	tuple := ParamTuple{TPMult: 2, SLMult: 1, MaxHoldHrs: 4}
	risk := domain.RiskPolicy{TieBreak: domain.TieBreakStopFirst}

	pol, hash, err := BuildPolicy(tuple, risk)
	require.NoError(t, err)
	require.NotNil(t, pol)
	require.NotEmpty(t, hash)
	require.Equal(t, domain.PolicyExitStack, pol.Kind())

	_, hash2, err := BuildPolicy(tuple, risk)
	require.NoError(t, err)
	require.Equal(t, hash, hash2)
}

func TestBuildPolicy_DifferentTupleDifferentHash(t *testing.T) {
	risk := domain.RiskPolicy{TieBreak: domain.TieBreakStopFirst}
	_, h1, err := BuildPolicy(ParamTuple{TPMult: 2, SLMult: 1, MaxHoldHrs: 4}, risk)
	require.NoError(t, err)
	_, h2, err := BuildPolicy(ParamTuple{TPMult: 3, SLMult: 1, MaxHoldHrs: 4}, risk)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
