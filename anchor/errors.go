package anchor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Done is returned by EventIterator.Next when no events remain.
	Done = errors.New("anchor: no more events")
	// ErrFinalized is returned when an accumulator is used after Finalize.
	ErrFinalized = errors.New("anchor: accumulator already finalized")
	// ErrInvalidWindow is returned when the window end precedes its start.
	ErrInvalidWindow = errors.New("anchor: window end is before window start")
	// ErrNotAdmitted is returned when Canonicalize receives a zero AdmittedEvent.
	ErrNotAdmitted = errors.New("anchor: event was not admitted")
	// ErrUnknownSchema is returned by LookupSchema for an unregistered version.
	ErrUnknownSchema = errors.New("anchor: unknown schema version")
)

// FieldMissingError reports an event lacking one or more required fields.
type FieldMissingError struct {
	Identity string
	Missing  []string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("event identity %q has missing field(s) %s", e.Identity, strings.Join(e.Missing, ", "))
}

// NotTerminalError reports an event whose confirmation status may still change.
type NotTerminalError struct {
	Identity string
	Status   string
}

func (e *NotTerminalError) Error() string {
	return fmt.Sprintf("event identity %q has illegal confirmation status %q", e.Identity, e.Status)
}

// SchemaViolationError reports an admitted event whose values cannot be
// canonicalized, such as a floating-point number.
type SchemaViolationError struct {
	Identity string
	Err      error
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("event identity %q violates the canonical schema: %v", e.Identity, e.Err)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// SourceError wraps a failure surfaced by the event source: transport errors,
// malformed pages, or cancellation while fetching.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("event source: %v", e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsPermanent reports whether re-running the same window cannot succeed without
// the ledger data changing in a way that is not expected to happen on its own.
// Pending events and source failures are transient; everything else is not.
func IsPermanent(err error) bool {
	var (
		notTerminal *NotTerminalError
		source      *SourceError
	)
	switch {
	case err == nil:
		return false
	case errors.As(err, &notTerminal), errors.As(err, &source):
		return false
	default:
		return true
	}
}
