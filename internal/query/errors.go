package query

import (
	"context"
	"errors"
)

// Client input errors. They are detected before any I/O.
var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidPagination  = errors.New("invalid pagination")
	ErrInvalidTxID        = errors.New("invalid transaction id")
	ErrInvalidScript      = errors.New("invalid script")
	ErrInvalidTransaction = errors.New("invalid raw transaction")
	ErrTxRejected         = errors.New("transaction rejected")
)

// Data consistency errors: a collaborator answered, but not with what the
// engine needs.
var (
	ErrMissingTransactionDetail = errors.New("missing transaction detail")
	ErrMissingTimestamp         = errors.New("cannot get the transaction's time")
	ErrMissingOutputReference   = errors.New("missing output reference")
)

// ErrUpstream matches every *UpstreamError under errors.Is.
var ErrUpstream = errors.New("upstream failure")

// UpstreamError wraps a failure reported by the daemon, the index or the
// mempool.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports true for ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Source: source, Err: err}
}

// IsClientError reports whether err was caused by invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidPagination) ||
		errors.Is(err, ErrInvalidTxID) ||
		errors.Is(err, ErrInvalidScript) ||
		errors.Is(err, ErrInvalidTransaction) ||
		errors.Is(err, ErrTxRejected)
}

// IsUpstream reports whether err came from a collaborator.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// Class buckets err for metrics and transport status mapping.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsClientError(err):
		return "client"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case IsUpstream(err):
		return "upstream"
	default:
		return "internal"
	}
}
