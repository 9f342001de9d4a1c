package anchor

import "sort"

// Admit checks that event may be anchored under s and returns its redacted form.
//
// Field completeness is checked before the confirmation status, so an event that
// is both incomplete and pending reports FieldMissingError. Fields outside the
// schema are dropped, not rejected, so the ledger can add fields without breaking
// older clients. The input is not modified.
func (s Schema) Admit(event RawEvent) (AdmittedEvent, error) {
	var missing []string
	for _, f := range s.fields {
		if _, ok := event[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return AdmittedEvent{}, &FieldMissingError{Identity: event.Identity(), Missing: missing}
	}

	status := textValue(event[FieldConfirmationStatus])
	if !s.IsTerminal(ConfirmationStatus(status)) {
		return AdmittedEvent{}, &NotTerminalError{Identity: event.Identity(), Status: status}
	}

	redacted := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		redacted[f] = event[f]
	}
	return AdmittedEvent{
		schemaVersion: s.version,
		identity:      event.Identity(),
		fields:        redacted,
	}, nil
}

// Admit validates event against the V1 schema.
func Admit(event RawEvent) (AdmittedEvent, error) {
	return SchemaV1().Admit(event)
}
