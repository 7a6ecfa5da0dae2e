package entity

import "errors"

// Domain-specific sentinel errors, checked with errors.Is at call sites.
var (
	ErrConfigInvalid  = errors.New("integration config invalid")
	ErrAlreadyRunning = errors.New("sync already running for this integration")
	ErrFeedUnreachable = errors.New("feed unreachable")
	ErrFeedAuth        = errors.New("feed authentication failed")
	ErrFeedTimeout      = errors.New("feed operation timed out")
	ErrFeedNotFound     = errors.New("feed listing empty or path missing")
)

// FeedErrorKind classifies a feed-level failure for the Orchestrator's
// retry policy (spec.md §4.1, §7).
type FeedErrorKind string

const (
	FeedErrorUnreachable FeedErrorKind = "FeedUnreachable"
	FeedErrorAuth        FeedErrorKind = "FeedAuth"
	FeedErrorTimeout     FeedErrorKind = "FeedTimeout"
	FeedErrorNotFound    FeedErrorKind = "FeedNotFound"
	FeedErrorConfig      FeedErrorKind = "ConfigInvalid"
)

// FeedError is a typed error surfaced by the Feed Client. Retryable
// kinds are retried by the Orchestrator; the HTTP-API client also
// retries transient page failures (network errors, 429, 5xx) with
// backoff before it returns a FeedError (spec.md §4.1).
type FeedError struct {
	Kind      FeedErrorKind
	Retryable bool
	Err       error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *FeedError) Unwrap() error { return e.Err }

// NewFeedError wraps err with a classification. Unreachable/Auth/Timeout
// are retryable; NotFound and ConfigInvalid are not.
func NewFeedError(kind FeedErrorKind, err error) *FeedError {
	retryable := kind == FeedErrorUnreachable || kind == FeedErrorAuth || kind == FeedErrorTimeout
	return &FeedError{Kind: kind, Retryable: retryable, Err: err}
}
