package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
)

func newPos(entry float64) *domain.Position {
	pos := domain.NewPosition()
	pos.EntryPrice = entry
	pos.EntryTs = 1000
	pos.State = domain.PositionInPosition
	return pos
}

func TestFixedTPSL_TPHit(t *testing.T) {
	p, err := NewFixedTPSL(domain.FixedTPSLConfig{TPMult: 1.5, SLMult: 0.9}, "")
	require.NoError(t, err)

	pos := newPos(100)
	actions := p.OnBar(domain.Candle{Timestamp: 1060, Low: 140, High: 160, Close: 150}, pos, nil)
	require.Len(t, actions, 1)
	require.Equal(t, domain.ExitReasonTP, domain.ExitReason(actions[0].Reason))
	require.Equal(t, 150.0, actions[0].PriceRef)
}

func TestFixedTPSL_BothTouchedStopFirstByDefault(t *testing.T) {
	p, err := NewFixedTPSL(domain.FixedTPSLConfig{TPMult: 1.5, SLMult: 0.9}, "")
	require.NoError(t, err)

	pos := newPos(100)
	actions := p.OnBar(domain.Candle{Timestamp: 1060, Low: 85, High: 160, Close: 150}, pos, nil)
	require.Len(t, actions, 1)
	require.Equal(t, domain.ExitReasonSL, domain.ExitReason(actions[0].Reason))
}

func TestFixedTPSL_BothTouchedTargetFirstWhenConfigured(t *testing.T) {
	p, err := NewFixedTPSL(domain.FixedTPSLConfig{TPMult: 1.5, SLMult: 0.9}, domain.TieBreakTargetFirst)
	require.NoError(t, err)

	pos := newPos(100)
	actions := p.OnBar(domain.Candle{Timestamp: 1060, Low: 85, High: 160, Close: 150}, pos, nil)
	require.Len(t, actions, 1)
	require.Equal(t, domain.ExitReasonTP, domain.ExitReason(actions[0].Reason))
}

func TestTimeCap_ForcesExitAtElapsed(t *testing.T) {
	p, err := NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 60000})
	require.NoError(t, err)

	pos := newPos(100)
	actions := p.OnBar(domain.Candle{Timestamp: 1059, Low: 90, High: 110, Close: 105}, pos, nil)
	require.Empty(t, actions)

	actions = p.OnBar(domain.Candle{Timestamp: 1060, Low: 90, High: 110, Close: 105}, pos, nil)
	require.Len(t, actions, 1)
	require.Equal(t, domain.ActionExitFull, actions[0].Kind)
	require.Equal(t, 105.0, actions[0].PriceRef)
}

func TestTrailingStop_ArmsRaisesAndExits(t *testing.T) {
	p, err := NewTrailingStop(domain.TrailingStopConfig{ArmAtMult: 1.2, TrailPct: 0.1})
	require.NoError(t, err)

	pos := newPos(100)
	p.OnEntry(pos, domain.Candle{Timestamp: 1000})

	actions := p.OnBar(domain.Candle{Timestamp: 1060, Low: 100, High: 110, Close: 105}, pos, nil)
	require.Empty(t, actions)
	require.False(t, pos.Armed)

	actions = p.OnBar(domain.Candle{Timestamp: 1120, Low: 118, High: 125, Close: 122}, pos, nil)
	require.True(t, pos.Armed)
	require.Len(t, actions, 1)
	require.Equal(t, domain.ActionAdjustStop, actions[0].Kind)
	require.InDelta(t, 112.5, pos.StopPrice, 1e-9)

	actions = p.OnBar(domain.Candle{Timestamp: 1180, Low: 110, High: 113, Close: 112}, pos, nil)
	require.NotEmpty(t, actions)
	found := false
	for _, a := range actions {
		if a.Kind == domain.ActionExitFull {
			found = true
		}
	}
	require.True(t, found, "expected an exit action once price falls back through the trailing stop")
}

func TestTrancheLadder_FiresRungsInOrderAndClosesResidual(t *testing.T) {
	p, err := NewTrancheLadder(domain.TrancheLadderConfig{
		Tranches: []domain.TrancheStep{{Mult: 1.2, Frac: 0.5}, {Mult: 1.5, Frac: 0.5}},
		Residual: domain.TrancheResidualClose,
	})
	require.NoError(t, err)

	pos := newPos(100)
	actions := p.OnBar(domain.Candle{Timestamp: 1060, Low: 118, High: 122, Close: 120}, pos, nil)
	require.Len(t, actions, 1)
	require.Equal(t, domain.ActionExitTranche, actions[0].Kind)
	pos.ExitedTranches["t0"] = struct{}{}

	actions = p.OnBar(domain.Candle{Timestamp: 1120, Low: 148, High: 152, Close: 150}, pos, nil)
	require.Len(t, actions, 2)
	require.Equal(t, domain.ActionExitTranche, actions[0].Kind)
	require.Equal(t, domain.ActionExitFull, actions[1].Kind)
}

func TestExitStack_FirstNonEmptyLayerWins(t *testing.T) {
	timeCap, err := NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 1000000})
	require.NoError(t, err)
	tpsl, err := NewFixedTPSL(domain.FixedTPSLConfig{TPMult: 1.1, SLMult: 0.9}, "")
	require.NoError(t, err)

	stack, err := NewExitStack(tpsl, timeCap)
	require.NoError(t, err)

	pos := newPos(100)
	actions := stack.OnBar(domain.Candle{Timestamp: 1060, Low: 95, High: 112, Close: 108}, pos, nil)
	require.Len(t, actions, 1)
	require.Equal(t, domain.ExitReasonTP, domain.ExitReason(actions[0].Reason))
}

func TestFromSpec_UnknownKindErrors(t *testing.T) {
	_, err := FromSpec(domain.PolicyKind("bogus"), nil, "")
	require.ErrorIs(t, err, ErrUnknownPolicyKind)
}
