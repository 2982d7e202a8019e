package threatstack

import (
	"encoding/json"
	"time"
)

// Agent status filter values for the agents endpoint.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Window bounds a time-windowed audit log pull. The window applies to the
// first page request only; the continuation token encodes the position
// within the window server-side.
type Window struct {
	From  time.Time
	Until time.Time
}

// LastDays returns a window covering the past n days up to now.
func LastDays(n int) Window {
	now := time.Now().UTC()
	return Window{
		From:  now.AddDate(0, 0, -n),
		Until: now,
	}
}

// Ruleset is one ruleset as returned by GET /v2/rulesets. Rules holds the
// rule IDs; each rule body is fetched individually.
type Ruleset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rules       []string `json:"rules"`
}

// rulesetsEnvelope is the GET /v2/rulesets response body.
type rulesetsEnvelope struct {
	Rulesets []Ruleset `json:"rulesets"`
}

// pageEnvelope is the shape shared by paginated endpoints: one record array
// under an endpoint-specific key, plus a continuation token. A null token
// decodes to the empty string, which is exactly the terminal value.
type pageEnvelope struct {
	Recs   []json.RawMessage `json:"recs"`
	Agents []json.RawMessage `json:"agents"`
	Token  string            `json:"token"`
}
