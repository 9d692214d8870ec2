package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultScore_PenalizesDrawdownAndTimeExposed(t *testing.T) {
	score := DefaultScore(LambdaWeights{Drawdown: 1, Time: 10})

	base := TupleAggregate{MedianReturnBps: 500, P95DrawdownBps: -100, AvgTimeExposedMs: 3_600_000}
	got := score(base)
	want := 500.0 - 1*100.0 - 10*1.0
	require.InDelta(t, want, got, 1e-9)
}

func TestDefaultScore_TreatsDrawdownSignSymmetrically(t *testing.T) {
	score := DefaultScore(DefaultLambdaWeights)
	positiveInput := score(TupleAggregate{MedianReturnBps: 100, P95DrawdownBps: 50})
	negativeInput := score(TupleAggregate{MedianReturnBps: 100, P95DrawdownBps: -50})
	require.InDelta(t, positiveInput, negativeInput, 1e-9)
}
