// Package engineerr implements the engine's closed error taxonomy.
// Every error the core surfaces across a package boundary is one of the
// five kinds below, wrapped with context via fmt.Errorf("...: %w", err)
// and classified with errors.Is/errors.As; no panics cross package
// boundaries.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories.
type Kind string

const (
	// KindConfiguration covers missing canonical views, bad intervals,
	// malformed policy JSON, unrecognized strategy modes. Never retried.
	KindConfiguration Kind = "configuration"
	// KindCoverage covers "no eligible calls after coverage". Fatal to the run.
	KindCoverage Kind = "coverage"
	// KindTransientStore covers store disconnects, timeouts, 5xx responses.
	// Retried with backoff up to maxRetries before being marked terminal.
	KindTransientStore Kind = "transient_store"
	// KindDataIntegrity covers non-monotonic timestamps, negative prices,
	// high<low. Recorded to diagnostics; the offending call is marked failed.
	KindDataIntegrity Kind = "data_integrity"
	// KindPolicy covers a policy's onBar hitting an unexpected condition.
	KindPolicy Kind = "policy"
)

// Error is the concrete taxonomy type. CallID is empty for run-level
// (non per-call) errors such as Planner/Materializer failures.
type Error struct {
	kind    Kind
	CallID  string
	Message string
	Hash    string // hash of the offending inputs
	err     error
}

func (e *Error) Error() string {
	var sb []byte
	sb = fmt.Appendf(sb, "%s: %s", e.kind, e.Message)
	if e.CallID != "" {
		sb = fmt.Appendf(sb, " (call=%s)", e.CallID)
	}
	if e.err != nil {
		sb = fmt.Appendf(sb, ": %v", e.err)
	}
	return string(sb)
}

func (e *Error) Unwrap() error { return e.err }

// Kind reports the error's taxonomy category.
func (e *Error) Kind() Kind { return e.kind }

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, Message: message, err: cause}
}

// Configuration wraps a configuration-kind failure.
func Configuration(message string, cause error) *Error {
	return newErr(KindConfiguration, message, cause)
}

// Coverage wraps a coverage-kind failure.
func Coverage(message string, cause error) *Error {
	return newErr(KindCoverage, message, cause)
}

// TransientStore wraps a transient-store-kind failure.
func TransientStore(message string, cause error) *Error {
	return newErr(KindTransientStore, message, cause)
}

// DataIntegrity wraps a data-integrity-kind failure for a specific call.
func DataIntegrity(callID, message string, cause error) *Error {
	e := newErr(KindDataIntegrity, message, cause)
	e.CallID = callID
	return e
}

// Policy wraps a policy-kind failure for a specific call and hash.
func Policy(callID, policyHash, message string, cause error) *Error {
	e := newErr(KindPolicy, message, cause)
	e.CallID = callID
	e.Hash = policyHash
	return e
}

// Is reports whether err (or any error it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}

// Retryable reports whether the engine should retry the operation:
// only TransientStoreError is retried; deterministic errors
// (DataIntegrityError, PolicyError, ConfigurationError, CoverageError)
// never are.
func Retryable(err error) bool {
	return Is(err, KindTransientStore)
}
