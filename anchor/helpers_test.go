package anchor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	goldenCanonical = "d16:asset_attributesde14:asset_identity11:assets/aaaa9:behaviour14:RecordEvidence" +
		"19:confirmation_status9:CONFIRMED16:event_attributesd16:arc_display_type10:Inspection5:counti1ee" +
		"4:from42:0xF17B3B9a3691846CA0533Ce01Fa3E35d6d6f714C8:identity23:assets/aaaa/events/0001" +
		"9:operation6:Record18:principal_acceptedd6:issuer11:idp.example7:subject5:alicee" +
		"18:principal_declaredd6:issuer11:idp.example7:subject5:alicee15:tenant_identity11:tenant/0001" +
		"18:timestamp_accepted20:2022-10-07T07:01:34Z19:timestamp_committed20:2022-10-07T07:01:35Z" +
		"18:timestamp_declared20:2022-10-07T07:01:34Ze"
	goldenSingle   = "5e1d57125c257ccbac6bb3f2b71b5ecc09c325248e7250d4b652722bd6d2bc1f"
	goldenPair     = "4c7e957baa20c2d307b425ab33f46407e88b944e5d2b872a32f425558140bed7"
	goldenReversed = "f93adcfada3cbebcda6e37e08b84981ff31fe88dcb5ae07a56886a932d162f96"
	emptyDigest    = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

var (
	windowStart = time.Date(2022, 10, 7, 7, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2022, 10, 7, 8, 0, 0, 0, time.UTC)
)

func sampleEvent(n int, status ConfirmationStatus) RawEvent {
	principal := map[string]any{"issuer": "idp.example", "subject": "alice"}
	return RawEvent{
		"identity":            fmt.Sprintf("assets/aaaa/events/%04d", n),
		"asset_identity":      "assets/aaaa",
		"event_attributes":    map[string]any{"arc_display_type": "Inspection", "count": json.Number(fmt.Sprint(n))},
		"asset_attributes":    map[string]any{},
		"operation":           "Record",
		"behaviour":           "RecordEvidence",
		"timestamp_declared":  "2022-10-07T07:01:34Z",
		"timestamp_accepted":  "2022-10-07T07:01:34Z",
		"timestamp_committed": "2022-10-07T07:01:35Z",
		"principal_accepted":  principal,
		"principal_declared":  principal,
		"confirmation_status": string(status),
		"from":                "0xF17B3B9a3691846CA0533Ce01Fa3E35d6d6f714C",
		"tenant_identity":     "tenant/0001",
	}
}

// countingLister records how many times Next was called and can fail at a
// given position.
type countingLister struct {
	events []RawEvent
	failAt int
	err    error
	pulls  int
}

func (c *countingLister) ListEvents(start, end time.Time) EventIterator { return c }

func (c *countingLister) Next(ctx context.Context) (RawEvent, error) {
	c.pulls++
	pos := c.pulls - 1
	if c.err != nil && pos == c.failAt {
		return nil, c.err
	}
	if pos >= len(c.events) {
		return nil, Done
	}
	return c.events[pos], nil
}
