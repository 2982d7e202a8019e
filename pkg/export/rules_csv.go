// Package export flattens API objects into local files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// ruleFields is the fixed column set for rule exports; it covers every
// top-level field a rule can carry across rule types.
var ruleFields = []string{
	"rulesetId",
	"id",
	"name",
	"title",
	"type",
	"createdAt",
	"updatedAt",
	"severityOfAlerts",
	"alertDescription",
	"aggregateFields",
	"filter",
	"window",
	"threshold",
	"suppressions",
	"enabled",
	"fileIntegrityPaths",
	"ignoreFiles",
	"eventsToMonitor",
}

// missingValue fills columns a rule type does not carry.
const missingValue = "NA"

// WriteRulesCSV renders rules into w, one row per rule, with a header row.
// Nested values (arrays, objects) are flattened to compact JSON strings.
func WriteRulesCSV(w io.Writer, rules []json.RawMessage) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ruleFields); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, raw := range rules {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("rule %d is not a JSON object: %w", i, err)
		}

		row := make([]string, len(ruleFields))
		for j, name := range ruleFields {
			row[j] = renderValue(fields[name])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write rule %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// renderValue renders one cell: absent fields become the NA marker,
// strings lose their quotes, everything else stays compact JSON.
func renderValue(raw json.RawMessage) string {
	if raw == nil {
		return missingValue
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
