package models

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable means discovery found nothing to fetch after the
// bounded look-back window. It is distinct from a remote call failing and is
// the one pipeline error that propagates to callers instead of being masked
// by a placeholder.
var ErrSourceUnavailable = errors.New("no source data available")

// TransientError wraps any remote call failure (network, timeout, non-2xx,
// malformed response). Always recoverable by falling to the next tier.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch failure from %s: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RenderError means the external rendering collaborator exited non-zero, timed
// out, or left a missing/empty output file. Treated as a fetch failure for
// fallback purposes.
type RenderError struct {
	Tool string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render via %s failed: %v", e.Tool, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
