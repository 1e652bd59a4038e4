// Package store provides the Data Access Layer for the rules system.
// It handles all direct interactions with the PostgreSQL database using
// the pgx driver. The rules table is the source of truth; the predicate
// cache is only ever a derived view of it.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/validation"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Rule represents one row of the rules table.
type Rule struct {
	ID        string
	Name      string
	Entity    string
	Enabled   bool
	Filters   []ruleengine.FilterClause
	Actions   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleRepository defines the persistence operations for rules.
type RuleRepository interface {
	// CreateRule inserts a new rule and populates its timestamps.
	CreateRule(ctx context.Context, r *Rule) error

	// GetRule fetches a rule by id. Returns ErrNotFound if absent.
	GetRule(ctx context.Context, id string) (*Rule, error)

	// UpdateRule overwrites a rule's mutable fields. Returns ErrNotFound
	// if the rule does not exist.
	UpdateRule(ctx context.Context, r *Rule) error

	// DeleteRule removes a rule. Returns ErrNotFound if absent.
	DeleteRule(ctx context.Context, id string) error

	// ListAllRules returns every rule, ordered by id for deterministic
	// reconciliation. Feeds the syncer.
	ListAllRules(ctx context.Context) ([]*Rule, error)

	// GetRuleActionIDs returns the action ids of a rule, or an empty
	// slice if the rule no longer exists.
	GetRuleActionIDs(ctx context.Context, ruleID string) ([]string, error)
}

// PostgresRuleStore implements RuleRepository backed by PostgreSQL.
type PostgresRuleStore struct {
	db *pgxpool.Pool
}

// Compile-time checks: the store is both the repository and the
// executor's rule resolver.
var (
	_ RuleRepository          = (*PostgresRuleStore)(nil)
	_ ruleengine.RuleResolver = (*PostgresRuleStore)(nil)
)

// NewPostgresRuleStore creates a repository instance with the given pool.
func NewPostgresRuleStore(db *pgxpool.Pool) *PostgresRuleStore {
	validation.AssertNotNil(db, "database pool")
	return &PostgresRuleStore{db: db}
}

// CreateRule inserts a new rule. Filters are stored as JSONB in
// normalized form, actions as a text array of pre-resolved ids.
func (s *PostgresRuleStore) CreateRule(ctx context.Context, r *Rule) error {
	query := `
		INSERT INTO rules (id, name, entity, enabled, filters, actions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		r.ID,
		r.Name,
		r.Entity,
		r.Enabled,
		r.Filters,
		r.Actions,
	).Scan(&r.CreatedAt, &r.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("rule with id %q already exists", r.ID)
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// GetRule fetches a single rule by id.
func (s *PostgresRuleStore) GetRule(ctx context.Context, id string) (*Rule, error) {
	query := `
		SELECT id, name, entity, enabled, filters, actions, created_at, updated_at
		FROM rules
		WHERE id = $1
	`

	var r Rule
	err := s.db.QueryRow(ctx, query, id).Scan(
		&r.ID,
		&r.Name,
		&r.Entity,
		&r.Enabled,
		&r.Filters,
		&r.Actions,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rule %q: %w", id, err)
	}
	return &r, nil
}

// UpdateRule overwrites the mutable fields of an existing rule.
func (s *PostgresRuleStore) UpdateRule(ctx context.Context, r *Rule) error {
	// RETURNING lets us detect missing rows without a second query.
	query := `
		UPDATE rules
		SET name = $2, entity = $3, enabled = $4, filters = $5, actions = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRow(ctx, query,
		r.ID,
		r.Name,
		r.Entity,
		r.Enabled,
		r.Filters,
		r.Actions,
	).Scan(&r.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update rule %q: %w", r.ID, err)
	}
	return nil
}

// DeleteRule removes a rule by id.
func (s *PostgresRuleStore) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAllRules returns every rule in the table.
func (s *PostgresRuleStore) ListAllRules(ctx context.Context) ([]*Rule, error) {
	query := `
		SELECT id, name, entity, enabled, filters, actions, created_at, updated_at
		FROM rules
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(
			&r.ID,
			&r.Name,
			&r.Entity,
			&r.Enabled,
			&r.Filters,
			&r.Actions,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		rules = append(rules, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return rules, nil
}

// GetRuleActionIDs returns the action ids attached to a rule. A missing
// rule yields an empty slice, not an error: the executor treats a rule
// deleted mid-dispatch as having nothing to run.
func (s *PostgresRuleStore) GetRuleActionIDs(ctx context.Context, ruleID string) ([]string, error) {
	var actions []string
	err := s.db.QueryRow(ctx, `SELECT actions FROM rules WHERE id = $1`, ruleID).Scan(&actions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get actions for rule %q: %w", ruleID, err)
	}
	return actions, nil
}
