package sink

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGroupByOrganization(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"id":"e1","organizationId":"org-a"}`),
		json.RawMessage(`{"id":"e2","organizationId":"org-b"}`),
		json.RawMessage(`{"id":"e3","organizationId":"org-a"}`),
	}

	groups, err := groupByOrganization(records)
	if err != nil {
		t.Fatalf("groupByOrganization failed: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if len(groups["org-a"]) != 2 {
		t.Errorf("org-a records = %d, want 2", len(groups["org-a"]))
	}
	if len(groups["org-b"]) != 1 {
		t.Errorf("org-b records = %d, want 1", len(groups["org-b"]))
	}
	if groups["org-a"][0].id != "e1" || groups["org-a"][1].id != "e3" {
		t.Errorf("org-a order = %s,%s, want e1,e3", groups["org-a"][0].id, groups["org-a"][1].id)
	}
}

func TestGroupByOrganization_MissingFields(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"event":"no id or org"}`),
	}

	groups, err := groupByOrganization(records)
	if err != nil {
		t.Fatalf("groupByOrganization failed: %v", err)
	}

	recs := groups["unknown"]
	if len(recs) != 1 {
		t.Fatalf("unknown-org records = %d, want 1", len(recs))
	}
	if len(recs[0].id) != 64 {
		t.Errorf("fallback id = %q, want a sha256 hex digest", recs[0].id)
	}

	// Identical content must hash to the identical id.
	again, err := groupByOrganization(records)
	if err != nil {
		t.Fatalf("groupByOrganization failed: %v", err)
	}
	if again["unknown"][0].id != recs[0].id {
		t.Error("content-hash id is not stable")
	}
}

func TestGroupByOrganization_RejectsNonObjects(t *testing.T) {
	if _, err := groupByOrganization([]json.RawMessage{json.RawMessage(`"just a string"`)}); err == nil {
		t.Error("non-object record accepted")
	}
}

func TestTableName(t *testing.T) {
	tests := []struct {
		org  string
		want string
	}{
		{"org-a", "audit_log_org_a"},
		{"ORG123", "audit_log_org123"},
		{"5b0/..;drop", "audit_log_5b0______drop"},
		{"unknown", "audit_log_unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.org, func(t *testing.T) {
			if got := tableName(tt.org); got != tt.want {
				t.Errorf("tableName(%q) = %q, want %q", tt.org, got, tt.want)
			}
		})
	}
}

func TestTableName_NoHostileCharacters(t *testing.T) {
	got := tableName(`x"; DROP TABLE users; --`)
	if strings.ContainsAny(got, `";- `) {
		t.Errorf("tableName produced unsafe identifier %q", got)
	}
}
