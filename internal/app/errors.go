package app

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pmctl/internal/appconfig"
)

// ValidationError reports options rejected before any remote call.
type ValidationError = appconfig.ValidationError

var (
	// ErrMissingField is wrapped by ValidationError for absent mandatory options.
	ErrMissingField = appconfig.ErrMissingField
	// ErrInvalidOptions is wrapped by ValidationError for malformed options.
	ErrInvalidOptions = appconfig.ErrInvalidOptions
)

// RemoteError is returned when the daemon rejects a dispatched command or
// the channel fails mid-call.
type RemoteError struct {
	Command string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Command, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Code returns the gRPC status code carried by the failure, or
// codes.Unknown for non-status errors.
func (e *RemoteError) Code() codes.Code {
	st, ok := status.FromError(e.Err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}

// ConnectionError is returned when opening or closing the shared
// connection fails.
type ConnectionError struct {
	// Op is "connect" or "disconnect".
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s to daemon: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProcessFailure records one process a bulk operation could not act on.
type ProcessFailure struct {
	Process Process
	Err     error
}

// BulkError aggregates per-process failures of start/stop/restart/delete.
// The processes that did succeed are still returned next to it.
type BulkError struct {
	Op       string
	Failures []ProcessFailure
}

func (e *BulkError) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("%s process %d: %v", e.Op, f.Process.ID, f.Err)
	}
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, fmt.Sprintf("%d", f.Process.ID))
	}
	return fmt.Sprintf("%s failed for %d processes (ids: %s)", e.Op, len(e.Failures), strings.Join(ids, ", "))
}

// Unwrap exposes every per-process error to errors.Is and errors.As.
func (e *BulkError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IsValidation reports whether err was raised by option normalization.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
