package replay

import "errors"

// ErrNonMonotonic is returned by Coalesce when a candle sequence is not
// monotonically increasing after coalescing duplicate timestamps. This
// is fatal for the affected call, not for the run as a whole: the
// caller wraps it in engineerr.DataIntegrity and excludes the call.
var ErrNonMonotonic = errors.New("replay: candle sequence is not monotonically increasing after coalesce")
