package storage

import "errors"

// Storage errors for append-only stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Append-only stores do not allow updates.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingCanonicalView is returned by the Alert Store when the
	// embedded analytical database lacks canon.alerts_std. The CLI
	// surfaces it as a fatal configuration error naming the view; the
	// database path is not part of that message.
	ErrMissingCanonicalView = errors.New("canonical view canon.alerts_std not found")

	// ErrStoreUnavailable is returned when both the warehouse and
	// archive Candle Store are unreachable.
	ErrStoreUnavailable = errors.New("candle store unavailable")
)
