// Package sink provides durable destinations for streamed pages. The MySQL
// sink bounds memory on unbounded audit pulls: each page is written and
// forgotten instead of accumulated.
package sink

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrWrite marks terminal sink failures. The sink never retries: the caller
// decides whether to abort the run or restart it (there is no resume-token
// persistence, so a restart re-pulls the window).
var ErrWrite = errors.New("sink write failed")

// MySQL streams audit records into one table per organization. Tables are
// provisioned lazily on first sight of an organization and remembered for
// the lifetime of this instance; the memo is mutex-guarded so the sink is
// safe to share.
type MySQL struct {
	db     *sql.DB
	logger zerolog.Logger

	mu          sync.Mutex
	provisioned map[string]struct{}
}

// NewMySQL creates a sink over an open database handle. The handle stays
// owned by the caller.
func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{
		db:          db,
		logger:      log.With().Str("component", "mysql-sink").Logger(),
		provisioned: make(map[string]struct{}),
	}
}

// record is one parsed audit entry.
type record struct {
	id  string
	org string
	raw json.RawMessage
}

// Write persists one page. Records are grouped by organization, each
// organization's table is provisioned on first sight, and the whole page is
// written in a single transaction. Inserts are keyed on the record id so
// re-writing the same page is idempotent.
func (s *MySQL) Write(ctx context.Context, records []json.RawMessage) error {
	if len(records) == 0 {
		return nil
	}

	groups, err := groupByOrganization(records)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	// DDL commits implicitly in MySQL, so provisioning happens before the
	// page transaction opens.
	orgs := make([]string, 0, len(groups))
	for org := range groups {
		orgs = append(orgs, org)
	}
	sort.Strings(orgs)

	for _, org := range orgs {
		if err := s.ensureTable(ctx, org); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrWrite, err)
	}
	defer tx.Rollback()

	total := 0
	for _, org := range orgs {
		stmt := fmt.Sprintf(
			"INSERT INTO %s (id, raw) VALUES (?, ?) ON DUPLICATE KEY UPDATE raw = VALUES(raw)",
			tableName(org),
		)
		for _, rec := range groups[org] {
			if _, err := tx.ExecContext(ctx, stmt, rec.id, []byte(rec.raw)); err != nil {
				return fmt.Errorf("%w: insert into %s: %v", ErrWrite, tableName(org), err)
			}
			total++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrWrite, err)
	}

	s.logger.Debug().
		Int("records", total).
		Int("organizations", len(orgs)).
		Msg("Page written")

	return nil
}

// ensureTable provisions the organization's table once per instance.
func (s *MySQL) ensureTable(ctx context.Context, org string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.provisioned[org]; ok {
		return nil
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		raw JSON NOT NULL,
		inserted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, tableName(org))

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("provision table for %q: %w", org, err)
	}

	s.provisioned[org] = struct{}{}
	s.logger.Info().
		Str("organization", org).
		Str("table", tableName(org)).
		Msg("Provisioned audit table")

	return nil
}

// groupByOrganization splits a page by each record's organizationId.
// Records without one land under "unknown"; records without an id get a
// content hash so idempotent re-writes still key correctly.
func groupByOrganization(records []json.RawMessage) (map[string][]record, error) {
	groups := make(map[string][]record)

	for i, raw := range records {
		var fields struct {
			ID             string `json:"id"`
			OrganizationID string `json:"organizationId"`
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("record %d is not a JSON object: %v", i, err)
		}

		rec := record{id: fields.ID, org: fields.OrganizationID, raw: raw}
		if rec.org == "" {
			rec.org = "unknown"
		}
		if rec.id == "" {
			sum := sha256.Sum256(raw)
			rec.id = hex.EncodeToString(sum[:])
		}

		groups[rec.org] = append(groups[rec.org], rec)
	}

	return groups, nil
}

// tableName derives the per-organization table, keeping only characters
// MySQL accepts in unquoted identifiers.
func tableName(org string) string {
	var b strings.Builder
	b.WriteString("audit_log_")
	for _, r := range strings.ToLower(org) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
