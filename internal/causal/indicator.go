package causal

// Indicator computes a named technical indicator over the accessor's
// causal history, funneled through the same cursor as current/history so
// no indicator implementation can accidentally read a future bar.
type Indicator func(a *Accessor, params map[string]float64) (float64, bool)

// registry is the closed, compile-time set of indicators available to
// policies. There is no runtime string-keyed registry in the core's
// replay path; this map exists only so the Causal Accessor's
// Indicator(name, params) contract has a single implementation to
// dispatch to, not as an extension point for user-supplied code.
var registry = map[string]Indicator{
	"sma": sma,
	"rsi": rsi,
}

// Indicator evaluates a registered indicator by name against this
// accessor's causal window. Returns (0, false) for an unknown name.
func (a *Accessor) Indicator(name string, params map[string]float64) (float64, bool) {
	fn, ok := registry[name]
	if !ok {
		return 0, false
	}
	return fn(a, params)
}

// sma computes a simple moving average of Close over the last `period`
// bars (default 14), using only causal history.
func sma(a *Accessor, params map[string]float64) (float64, bool) {
	period := int(params["period"])
	if period <= 0 {
		period = 14
	}
	hist := a.History(period - 1)
	if len(hist) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, b := range hist {
		sum += b.Close
	}
	return sum / float64(len(hist)), true
}

// rsi computes a Wilder-smoothed relative strength index over the last
// `period` bars (default 14), bounded to [0,100]. Returns (50, false)
// when fewer than period+1 causal bars exist yet (warmup not complete),
// the neutral midpoint.
func rsi(a *Accessor, params map[string]float64) (float64, bool) {
	period := int(params["period"])
	if period <= 0 {
		period = 14
	}
	hist := a.History(period)
	if len(hist) < period+1 {
		return 50, false
	}

	var gainSum, lossSum float64
	for i := 1; i < len(hist); i++ {
		delta := hist[i].Close - hist[i-1].Close
		if delta >= 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	rsiValue := 100 - (100 / (1 + rs))
	if rsiValue < 0 {
		rsiValue = 0
	}
	if rsiValue > 100 {
		rsiValue = 100
	}
	return rsiValue, true
}
