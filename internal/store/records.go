package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alissonpelizaro/rules-system/internal/validation"
)

// Record is one business entity row (an order or a payment). Both
// tables share the same shape: an opaque id and a free-form string map.
// The map doubles as the event payload when the record is created or
// updated.
type Record struct {
	ID        string
	Data      map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordRepository defines the persistence operations for entity records.
type RecordRepository interface {
	// Entity names the event domain this repository serves ("order",
	// "payment").
	Entity() string

	CreateRecord(ctx context.Context, r *Record) error

	// GetRecord fetches a record by id. Returns ErrNotFound if absent.
	GetRecord(ctx context.Context, id string) (*Record, error)

	UpdateRecord(ctx context.Context, r *Record) error

	DeleteRecord(ctx context.Context, id string) error
}

// entityTables is the allow-list mapping entity names to their tables.
// The table name is interpolated into SQL, so it must never come from
// user input.
var entityTables = map[string]string{
	"order":   "orders",
	"payment": "payments",
}

// Entities returns the entity names records can be stored under.
func Entities() []string {
	return []string{"order", "payment"}
}

// PostgresRecordStore implements RecordRepository for one entity table.
type PostgresRecordStore struct {
	db     *pgxpool.Pool
	entity string
	table  string
}

var _ RecordRepository = (*PostgresRecordStore)(nil)

// NewPostgresRecordStore creates a record repository for the given
// entity. Panics on an unknown entity name (programmer error).
func NewPostgresRecordStore(db *pgxpool.Pool, entity string) *PostgresRecordStore {
	validation.AssertNotNil(db, "database pool")
	table, ok := entityTables[entity]
	if !ok {
		panic(fmt.Sprintf("store: unknown entity %q", entity))
	}
	return &PostgresRecordStore{db: db, entity: entity, table: table}
}

// Entity returns the event domain this repository serves.
func (s *PostgresRecordStore) Entity() string {
	return s.entity
}

// CreateRecord inserts a new record with its data stored as JSONB.
func (s *PostgresRecordStore) CreateRecord(ctx context.Context, r *Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, data)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, s.table)

	err := s.db.QueryRow(ctx, query, r.ID, r.Data).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s with id %q already exists", s.entity, r.ID)
		}
		return fmt.Errorf("failed to insert %s: %w", s.entity, err)
	}
	return nil
}

// GetRecord fetches a single record by id.
func (s *PostgresRecordStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT id, data, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, s.table)

	var r Record
	err := s.db.QueryRow(ctx, query, id).Scan(&r.ID, &r.Data, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s %q: %w", s.entity, id, err)
	}
	return &r, nil
}

// UpdateRecord overwrites a record's data.
func (s *PostgresRecordStore) UpdateRecord(ctx context.Context, r *Record) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET data = $2, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, s.table)

	err := s.db.QueryRow(ctx, query, r.ID, r.Data).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update %s %q: %w", s.entity, r.ID, err)
	}
	return nil
}

// DeleteRecord removes a record by id.
func (s *PostgresRecordStore) DeleteRecord(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", s.entity, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
