package pagination

import (
	"context"
	"encoding/json"
)

// Accumulator collects every page's records in memory, in arrival order.
// Use it when the full result set comfortably fits in memory; unbounded
// audit pulls should stream into a durable sink instead.
type Accumulator struct {
	records []json.RawMessage
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Write appends the page's records.
func (a *Accumulator) Write(_ context.Context, records []json.RawMessage) error {
	a.records = append(a.records, records...)
	return nil
}

// Records returns everything accumulated so far.
func (a *Accumulator) Records() []json.RawMessage {
	return a.records
}
