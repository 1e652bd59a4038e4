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

// RuleAction represents one row of the rule_actions table.
type RuleAction struct {
	ID        string
	Name      string
	Action    ruleengine.ActionKind
	Data      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleActionRepository defines the persistence operations for actions.
type RuleActionRepository interface {
	CreateRuleAction(ctx context.Context, a *RuleAction) error

	// GetRuleAction fetches an action by id. Returns ErrNotFound if absent.
	GetRuleAction(ctx context.Context, id string) (*RuleAction, error)

	UpdateRuleAction(ctx context.Context, a *RuleAction) error

	// DeleteRuleAction removes an action. Rules referencing it keep the
	// dangling id; resolution silently drops it at dispatch time.
	DeleteRuleAction(ctx context.Context, id string) error

	// GetActionsByIDs loads action snapshots for the given ids, silently
	// dropping ids that do not resolve.
	GetActionsByIDs(ctx context.Context, ids []string) ([]ruleengine.RuleAction, error)

	// ResolveIDs trims an id list to only ids present in the table,
	// preserving no particular order. Used when validating a rule's
	// actions field before persisting it.
	ResolveIDs(ctx context.Context, ids []string) ([]string, error)
}

// PostgresRuleActionStore implements RuleActionRepository on PostgreSQL.
type PostgresRuleActionStore struct {
	db *pgxpool.Pool
}

var (
	_ RuleActionRepository      = (*PostgresRuleActionStore)(nil)
	_ ruleengine.ActionResolver = (*PostgresRuleActionStore)(nil)
)

// NewPostgresRuleActionStore creates a repository instance with the given pool.
func NewPostgresRuleActionStore(db *pgxpool.Pool) *PostgresRuleActionStore {
	validation.AssertNotNil(db, "database pool")
	return &PostgresRuleActionStore{db: db}
}

// CreateRuleAction inserts a new action definition.
func (s *PostgresRuleActionStore) CreateRuleAction(ctx context.Context, a *RuleAction) error {
	query := `
		INSERT INTO rule_actions (id, name, action, data)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		a.ID,
		a.Name,
		string(a.Action),
		a.Data,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("rule action with id %q already exists", a.ID)
		}
		return fmt.Errorf("failed to insert rule action: %w", err)
	}
	return nil
}

// GetRuleAction fetches a single action by id.
func (s *PostgresRuleActionStore) GetRuleAction(ctx context.Context, id string) (*RuleAction, error) {
	query := `
		SELECT id, name, action, data, created_at, updated_at
		FROM rule_actions
		WHERE id = $1
	`

	var a RuleAction
	var kind string
	err := s.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Name,
		&kind,
		&a.Data,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rule action %q: %w", id, err)
	}
	a.Action = ruleengine.ActionKind(kind)
	return &a, nil
}

// UpdateRuleAction overwrites the mutable fields of an existing action.
func (s *PostgresRuleActionStore) UpdateRuleAction(ctx context.Context, a *RuleAction) error {
	query := `
		UPDATE rule_actions
		SET name = $2, action = $3, data = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		a.ID,
		a.Name,
		string(a.Action),
		a.Data,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update rule action %q: %w", a.ID, err)
	}
	return nil
}

// DeleteRuleAction removes an action by id.
func (s *PostgresRuleActionStore) DeleteRuleAction(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM rule_actions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule action %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetActionsByIDs loads dispatch-time snapshots for the given ids.
// Unknown ids simply do not appear in the result.
func (s *PostgresRuleActionStore) GetActionsByIDs(ctx context.Context, ids []string) ([]ruleengine.RuleAction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, action, data
		FROM rule_actions
		WHERE id = ANY($1)
	`

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule actions: %w", err)
	}
	defer rows.Close()

	actions := make([]ruleengine.RuleAction, 0, len(ids))
	for rows.Next() {
		var a ruleengine.RuleAction
		var kind string
		if err := rows.Scan(&a.ID, &a.Name, &kind, &a.Data); err != nil {
			return nil, fmt.Errorf("failed to scan rule action row: %w", err)
		}
		a.Action = ruleengine.ActionKind(kind)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return actions, nil
}

// ResolveIDs trims an id list to ids that exist in the table.
func (s *PostgresRuleActionStore) ResolveIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	rows, err := s.db.Query(ctx, `SELECT id FROM rule_actions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve action ids: %w", err)
	}
	defer rows.Close()

	resolved := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan action id: %w", err)
		}
		resolved = append(resolved, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return resolved, nil
}
