// Package threatstack exposes typed operations over the Threat Stack v2
// endpoints the scripts need: audit logs, agents, rulesets and rules, and
// the data portability (S3 export) integration.
package threatstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/opswatch/threatstack-client/pkg/client"
	"github.com/opswatch/threatstack-client/pkg/pagination"
)

// isoFormat renders window bounds; the API accepts ISO-8601 timestamps.
const isoFormat = time.RFC3339

// API wraps a signed client with endpoint-level operations.
type API struct {
	client *client.Client
}

// New creates an API facade over c.
func New(c *client.Client) *API {
	return &API{client: c}
}

// AuditLogs returns a fetch func for GET /v2/auditlogs. The window, when
// given, is sent with the first (token-less) request only; every follow-up
// request carries just the continuation token.
func (a *API) AuditLogs(window *Window) pagination.FetchFunc {
	return func(ctx context.Context, token string) (*pagination.Page, error) {
		q := url.Values{}
		if token != "" {
			q.Set("token", token)
		} else if window != nil {
			q.Set("from", window.From.UTC().Format(isoFormat))
			q.Set("until", window.Until.UTC().Format(isoFormat))
		}

		raw, err := a.client.Get(ctx, "/v2/auditlogs", q)
		if err != nil {
			return nil, err
		}

		var env pageEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode audit log page: %w", err)
		}
		return &pagination.Page{Records: env.Recs, Token: env.Token}, nil
	}
}

// Agents returns a fetch func for GET /v2/agents. The status filter stays
// on every request; only the window-less token advances between pages.
func (a *API) Agents(status string) pagination.FetchFunc {
	return func(ctx context.Context, token string) (*pagination.Page, error) {
		q := url.Values{}
		if status != "" {
			q.Set("status", status)
		}
		if token != "" {
			q.Set("token", token)
		}

		raw, err := a.client.Get(ctx, "/v2/agents", q)
		if err != nil {
			return nil, err
		}

		var env pageEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode agents page: %w", err)
		}
		return &pagination.Page{Records: env.Agents, Token: env.Token}, nil
	}
}

// Rulesets fetches all rulesets in the organization.
func (a *API) Rulesets(ctx context.Context) ([]Ruleset, error) {
	raw, err := a.client.Get(ctx, "/v2/rulesets", nil)
	if err != nil {
		return nil, err
	}

	var env rulesetsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode rulesets: %w", err)
	}
	return env.Rulesets, nil
}

// Rule fetches one rule's body under a ruleset.
func (a *API) Rule(ctx context.Context, rulesetID, ruleID string) (json.RawMessage, error) {
	return a.client.Get(ctx, "/v2/rulesets/"+rulesetID+"/rules/"+ruleID, nil)
}

// UpdateRule replaces a rule via PUT. The body participates in the request
// signature's payload hash.
func (a *API) UpdateRule(ctx context.Context, rulesetID, ruleID string, rule json.RawMessage) (json.RawMessage, error) {
	return a.client.Put(ctx, "/v2/rulesets/"+rulesetID+"/rules/"+ruleID, rule)
}

// DataPortability fetches the organization's S3 export integration setup.
func (a *API) DataPortability(ctx context.Context) (json.RawMessage, error) {
	return a.client.Get(ctx, "/v2/integrations/s3export", nil)
}
