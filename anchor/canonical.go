package anchor

import (
	"simplehash/internal/bencode"
)

// Canonicalize returns the canonical bencoding of an admitted event. The output
// depends only on the event's field values, never on map insertion order.
func Canonicalize(event AdmittedEvent) ([]byte, error) {
	if !event.valid() {
		return nil, ErrNotAdmitted
	}
	b, err := bencode.Marshal(event.fields)
	if err != nil {
		return nil, &SchemaViolationError{Identity: event.identity, Err: err}
	}
	return b, nil
}
