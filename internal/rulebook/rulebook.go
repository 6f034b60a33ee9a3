// Package rulebook persists the two kinds of standing program the
// dialogue loop can install on a user's behalf: makerule programs built
// through the guided category → device → example → filter → run builder
// (spec.md §4.4 item 6), and permission rules granted through
// askForPermission's five-option consent card (spec.md §4.4 item 7).
//
// Grounded on the reference architecture's internal/planlib package: a
// SQL-backed library keyed by principal, storing a JSON-encoded program
// body alongside small denormalized columns used for lookups, with a
// parallel usage-pattern table recording success/failure counts.
package rulebook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
	"github.com/cascade-run/cascade/internal/handler"
)

// ErrRuleNotFound is returned when a lookup finds no matching rule.
var ErrRuleNotFound = errors.New("rulebook: rule not found")

// PermissionDecision is the closed vocabulary of askForPermission's
// consent card (spec.md §4.4 item 7).
type PermissionDecision string

const (
	PermissionYesOnce             PermissionDecision = "yes_once"
	PermissionAlwaysFromAnyone    PermissionDecision = "always_from_anyone"
	PermissionAlwaysFromPrincipal PermissionDecision = "always_from_principal"
	PermissionNo                  PermissionDecision = "no"
	PermissionOnlyIf              PermissionDecision = "only_if"
)

// Rule is a standing program installed by makerule or by an
// always-granted permission decision.
type Rule struct {
	ID         string
	Kind       string // "makerule" or "permission"
	Principal  string // owning speaker, or "*" for always-from-anyone
	Category   string
	Program    *handler.ProgramAST
	Filters    []handler.Filter
	CreatedAt  int64
	UsageCount int
}

// Rulebook stores and evaluates standing rules.
type Rulebook struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed rulebook at path.
func Open(path string) (*Rulebook, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, err
	}

	r := &Rulebook{db: db}
	if err := r.init(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Rulebook) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		id           TEXT PRIMARY KEY,
		kind         TEXT NOT NULL,
		principal    TEXT NOT NULL,
		category     TEXT NOT NULL,
		program_json TEXT NOT NULL,
		filters_json TEXT NOT NULL DEFAULT '[]',
		usage_count  INTEGER NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_principal ON rules(principal, category);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (r *Rulebook) Close() error {
	return r.db.Close()
}

// Install persists a new rule and assigns it an ID.
func (r *Rulebook) Install(ctx context.Context, kind, principal, category string, program *handler.ProgramAST, filters []handler.Filter) (*Rule, error) {
	rule := &Rule{
		ID:        uuid.New().String(),
		Kind:      kind,
		Principal: principal,
		Category:  category,
		Program:   program,
		Filters:   filters,
		CreatedAt: time.Now().Unix(),
	}

	programJSON, err := json.Marshal(program)
	if err != nil {
		return nil, err
	}
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rules (id, kind, principal, category, program_json, filters_json, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, rule.ID, rule.Kind, rule.Principal, rule.Category, programJSON, filtersJSON, rule.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// FindGrant looks up a standing permission grant for principal (or the
// wildcard "*" grant) in category. Callers should check the caller's
// specific principal first, then fall back to "*".
func (r *Rulebook) FindGrant(ctx context.Context, principal, category string) (*Rule, error) {
	return r.findOne(ctx, "SELECT id, kind, principal, category, program_json, filters_json, usage_count, created_at FROM rules WHERE kind = 'permission' AND principal = ? AND category = ? ORDER BY created_at DESC LIMIT 1", principal, category)
}

// ListMakerules returns every makerule program a principal has
// installed, most recent first.
func (r *Rulebook) ListMakerules(ctx context.Context, principal string) ([]*Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, principal, category, program_json, filters_json, usage_count, created_at
		FROM rules
		WHERE kind = 'makerule' AND principal = ?
		ORDER BY created_at DESC
	`, principal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// RecordUsage increments a rule's usage counter, e.g. each time a
// standing permission is exercised.
func (r *Rulebook) RecordUsage(ctx context.Context, ruleID string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE rules SET usage_count = usage_count + 1 WHERE id = ?", ruleID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Revoke deletes a rule.
func (r *Rulebook) Revoke(ctx context.Context, ruleID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", ruleID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *Rulebook) findOne(ctx context.Context, query string, args ...any) (*Rule, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, ErrRuleNotFound
	}
	return rule, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(s rowScanner) (*Rule, error) {
	var rule Rule
	var programJSON, filtersJSON string

	if err := s.Scan(&rule.ID, &rule.Kind, &rule.Principal, &rule.Category, &programJSON, &filtersJSON, &rule.UsageCount, &rule.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(programJSON), &rule.Program); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filtersJSON), &rule.Filters); err != nil {
		return nil, err
	}
	return &rule, nil
}
