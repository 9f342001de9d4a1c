package anchor

import "fmt"

// ConfirmationStatus is the lifecycle state of a ledger event.
type ConfirmationStatus string

const (
	StatusPending   ConfirmationStatus = "PENDING"
	StatusConfirmed ConfirmationStatus = "CONFIRMED"
	StatusFailed    ConfirmationStatus = "FAILED"
)

// Field names used by the validator itself.
const (
	FieldIdentity           = "identity"
	FieldConfirmationStatus = "confirmation_status"
)

// v1Fields is the V1 field set in the order the ledger documents it.
// It is never handed out directly; see Schema.Fields.
var v1Fields = [...]string{
	"identity",
	"asset_identity",
	"event_attributes",
	"asset_attributes",
	"operation",
	"behaviour",
	"timestamp_declared",
	"timestamp_accepted",
	"timestamp_committed",
	"principal_accepted",
	"principal_declared",
	"confirmation_status",
	"from",
	"tenant_identity",
}

var v1Terminal = [...]ConfirmationStatus{StatusConfirmed, StatusFailed}

// Schema describes one canonicalization variant: which fields an event must carry,
// which statuses are final, and under which version name the result is published.
// A Schema value is immutable; a new schema version is a new constructor, never an
// edit of an existing one.
type Schema struct {
	version  string
	fields   []string
	terminal []ConfirmationStatus
}

// SchemaV1 returns the "V1" simple hash schema.
func SchemaV1() Schema {
	return Schema{
		version:  "V1",
		fields:   v1Fields[:],
		terminal: v1Terminal[:],
	}
}

// LookupSchema returns the schema published under version. An empty version
// selects V1.
func LookupSchema(version string) (Schema, error) {
	switch version {
	case "", "V1":
		return SchemaV1(), nil
	}
	return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, version)
}

// Version returns the schema version name.
func (s Schema) Version() string { return s.version }

// Fields returns a copy of the required field names.
func (s Schema) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// IsTerminal reports whether events in the given status may be anchored.
func (s Schema) IsTerminal(status ConfirmationStatus) bool {
	for _, t := range s.terminal {
		if t == status {
			return true
		}
	}
	return false
}
