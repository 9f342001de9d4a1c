package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(RawEvent)
		wantMissing []string
		wantStatus  string
	}{
		{name: "confirmed", mutate: func(RawEvent) {}},
		{name: "failed", mutate: func(e RawEvent) { e["confirmation_status"] = "FAILED" }},
		{
			name:       "pending",
			mutate:     func(e RawEvent) { e["confirmation_status"] = "PENDING" },
			wantStatus: "PENDING",
		},
		{
			name:       "unknown status",
			mutate:     func(e RawEvent) { e["confirmation_status"] = "STORED" },
			wantStatus: "STORED",
		},
		{
			name: "missing fields sorted",
			mutate: func(e RawEvent) {
				delete(e, "tenant_identity")
				delete(e, "behaviour")
			},
			wantMissing: []string{"behaviour", "tenant_identity"},
		},
		{
			name: "missing field wins over pending",
			mutate: func(e RawEvent) {
				delete(e, "from")
				e["confirmation_status"] = "PENDING"
			},
			wantMissing: []string{"from"},
		},
		{
			name:        "missing status",
			mutate:      func(e RawEvent) { delete(e, "confirmation_status") },
			wantMissing: []string{"confirmation_status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := sampleEvent(7, StatusConfirmed)
			tt.mutate(ev)

			admitted, err := Admit(ev)
			switch {
			case tt.wantMissing != nil:
				var missing *FieldMissingError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tt.wantMissing, missing.Missing)
				assert.Equal(t, "assets/aaaa/events/0007", missing.Identity)
			case tt.wantStatus != "":
				var notTerminal *NotTerminalError
				require.ErrorAs(t, err, &notTerminal)
				assert.Equal(t, tt.wantStatus, notTerminal.Status)
			default:
				require.NoError(t, err)
				assert.Equal(t, "assets/aaaa/events/0007", admitted.Identity())
				assert.Equal(t, "V1", admitted.SchemaVersion())
			}
		})
	}
}

func TestAdmit_MissingIdentity(t *testing.T) {
	ev := sampleEvent(1, StatusConfirmed)
	delete(ev, "identity")

	_, err := Admit(ev)
	var missing *FieldMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "", missing.Identity)
	assert.Equal(t, []string{"identity"}, missing.Missing)
}

func TestAdmit_RedactsAndLeavesInputAlone(t *testing.T) {
	ev := sampleEvent(1, StatusConfirmed)
	ev["transaction_id"] = "0xabc"
	ev["block_number"] = "42"

	admitted, err := Admit(ev)
	require.NoError(t, err)
	assert.Len(t, admitted.fields, 14)
	assert.NotContains(t, admitted.fields, "transaction_id")
	assert.Contains(t, ev, "transaction_id")
	assert.Len(t, ev, 16)
}

func TestSchemaV1_Immutable(t *testing.T) {
	fields := SchemaV1().Fields()
	require.Len(t, fields, 14)
	fields[0] = "tampered"

	assert.Equal(t, "identity", SchemaV1().Fields()[0])
	assert.True(t, SchemaV1().IsTerminal(StatusConfirmed))
	assert.True(t, SchemaV1().IsTerminal(StatusFailed))
	assert.False(t, SchemaV1().IsTerminal(StatusPending))
}

func TestCanonicalize(t *testing.T) {
	admitted, err := Admit(sampleEvent(1, StatusConfirmed))
	require.NoError(t, err)

	b, err := Canonicalize(admitted)
	require.NoError(t, err)
	assert.Equal(t, goldenCanonical, string(b))

	_, err = Canonicalize(AdmittedEvent{})
	assert.ErrorIs(t, err, ErrNotAdmitted)
}

func TestCanonicalize_BooleansAsIntegers(t *testing.T) {
	ev := sampleEvent(1, StatusConfirmed)
	ev["asset_attributes"] = map[string]any{"archived": true, "deleted": false}
	admitted, err := Admit(ev)
	require.NoError(t, err)

	b, err := Canonicalize(admitted)
	require.NoError(t, err)
	assert.Contains(t, string(b), "16:asset_attributesd8:archivedi1e7:deletedi0ee")
}

func TestCanonicalize_RejectsNulls(t *testing.T) {
	ev := sampleEvent(1, StatusConfirmed)
	ev["asset_attributes"] = map[string]any{"archived": nil}
	admitted, err := Admit(ev)
	require.NoError(t, err)

	_, err = Canonicalize(admitted)
	var violation *SchemaViolationError
	assert.ErrorAs(t, err, &violation)
}
