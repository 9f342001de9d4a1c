package anchor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawEvent is an event as delivered by the ledger service. Values are strings,
// json.Number, nested maps or lists of the same.
type RawEvent map[string]any

// Identity returns the event's identity as text, or "" when the field is absent.
func (e RawEvent) Identity() string {
	return textValue(e[FieldIdentity])
}

// AdmittedEvent is an event that passed validation, projected onto exactly the
// fields of its schema. It can only be obtained from Schema.Admit.
type AdmittedEvent struct {
	schemaVersion string
	identity      string
	fields        map[string]any
}

// Identity returns the event identity.
func (e AdmittedEvent) Identity() string { return e.identity }

// SchemaVersion returns the version of the schema that admitted the event.
func (e AdmittedEvent) SchemaVersion() string { return e.schemaVersion }

// valid reports whether e was built by Admit rather than being a zero value.
func (e AdmittedEvent) valid() bool { return e.fields != nil }

// DecodeEvents parses a JSON document holding either an array of events or a
// ledger page object ({"events": [...]}). Numbers are kept as json.Number so
// integer literals survive unchanged and fractional ones can be rejected.
func DecodeEvents(data []byte) ([]RawEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode events: empty document")
	}

	var events []RawEvent
	if trimmed[0] == '[' {
		if err := unmarshalUseNumber(trimmed, &events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	} else {
		var page struct {
			Events *[]RawEvent `json:"events"`
		}
		if err := unmarshalUseNumber(trimmed, &page); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		if page.Events == nil {
			return nil, fmt.Errorf("decode events: no events field")
		}
		events = *page.Events
	}

	for i, ev := range events {
		if ev == nil {
			return nil, fmt.Errorf("decode events: entry %d is not an object", i)
		}
	}
	return events, nil
}

func unmarshalUseNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func textValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
