package capital

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		InitialCapital:         decimal.NewFromInt(10000),
		MaxAllocationPct:       decimal.NewFromFloat(0.10), // 1000 per position
		MaxRiskPerTradeUsd:     decimal.NewFromInt(2000),
		MaxConcurrentPositions: 2,
		MinExecutableSizeUsd:   decimal.NewFromInt(50),
	}
}

func TestLedger_TryAdmit_SizesToMaxAllocationPct(t *testing.T) {
	l := NewLedger(testConfig())
	size, ok := l.TryAdmit()
	require.True(t, ok)
	require.True(t, size.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, 1, l.OpenPositions())
	require.True(t, l.Available().Equal(decimal.NewFromInt(9000)))
}

func TestLedger_TryAdmit_DeclinesPastMaxConcurrentPositions(t *testing.T) {
	l := NewLedger(testConfig())
	_, ok1 := l.TryAdmit()
	_, ok2 := l.TryAdmit()
	_, ok3 := l.TryAdmit()
	require.True(t, ok1)
	require.True(t, ok2)
	require.False(t, ok3)
}

func TestLedger_TryAdmit_DeclinesBelowMinExecutableSize(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCapital = decimal.NewFromInt(100)
	cfg.MaxAllocationPct = decimal.NewFromFloat(0.10) // sizes to 10, below the 50 floor
	l := NewLedger(cfg)
	size, ok := l.TryAdmit()
	require.False(t, ok)
	require.True(t, size.IsZero())
}

func TestLedger_Release_ReturnsCapitalAndFreesSlot(t *testing.T) {
	l := NewLedger(testConfig())
	size, ok := l.TryAdmit()
	require.True(t, ok)

	l.Release(size, decimal.NewFromInt(50))
	require.Equal(t, 0, l.OpenPositions())
	require.True(t, l.Available().Equal(decimal.NewFromInt(10050)))
}

func TestLedger_TryAdmit_CapsAtMaxRiskPerTrade(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAllocationPct = decimal.NewFromFloat(0.50) // would size to 5000
	cfg.MaxRiskPerTradeUsd = decimal.NewFromInt(1500)
	l := NewLedger(cfg)
	size, ok := l.TryAdmit()
	require.True(t, ok)
	require.True(t, size.Equal(decimal.NewFromInt(1500)))
}
