package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Compile-time interface verification.
var _ RunRepository = (*PgRunRepository)(nil)

// PgRunRepository is a PostgreSQL implementation of RunRepository.
type PgRunRepository struct {
	db DBTX
}

// NewPgRunRepository creates a new PostgreSQL run repository.
func NewPgRunRepository(db DBTX) *PgRunRepository {
	return &PgRunRepository{db: db}
}

// Save inserts a run or updates an existing one with the same ID.
func (r *PgRunRepository) Save(ctx context.Context, run *domain.Run) error {
	if run == nil {
		return domain.NewValidationError("run", "run cannot be nil")
	}
	if run.ID == uuid.Nil {
		return domain.NewValidationError("id", "run ID is required")
	}
	if strings.TrimSpace(run.Query) == "" {
		return domain.NewValidationError("query", "query is required")
	}

	stepsJSON, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	var graphJSON []byte
	if run.GraphData != nil {
		graphJSON, err = json.Marshal(run.GraphData)
		if err != nil {
			return fmt.Errorf("failed to marshal graph: %w", err)
		}
	}

	query := `
		INSERT INTO runs (
			id, query, cv_id, max_nodes, status,
			steps, graph_data, error,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			steps = EXCLUDED.steps,
			graph_data = EXCLUDED.graph_data,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		run.ID, run.Query, run.CVID, run.MaxNodes, run.Status,
		stepsJSON, graphJSON, nullString(run.Error),
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetByID retrieves a run by its ID.
func (r *PgRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, query, cv_id, max_nodes, status,
			steps, graph_data, error,
			created_at, updated_at
		FROM runs
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("run", id.String())
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// List retrieves runs matching the filter criteria, newest first.
func (r *PgRunRepository) List(ctx context.Context, filter RunFilter) ([]*domain.Run, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, s)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.CVID != nil {
		conditions = append(conditions, fmt.Sprintf("cv_id = $%d", argIndex))
		args = append(args, *filter.CVID)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM runs WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT id, query, cv_id, max_nodes, status,
			steps, graph_data, error,
			created_at, updated_at
		FROM runs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*domain.Run, 0, filter.Limit)
	for rows.Next() {
		run, err := scanRunFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, totalCount, nil
}

// Delete removes a run by its ID.
func (r *PgRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("run", id.String())
	}

	return nil
}

// runScanDest holds the destination pointers for scanning a run row.
// This eliminates code duplication between pgx.Row and pgx.Rows scanning.
type runScanDest struct {
	run       domain.Run
	stepsJSON []byte
	graphJSON []byte
	errMsg    *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *runScanDest) destinations() []interface{} {
	return []interface{}{
		&d.run.ID, &d.run.Query, &d.run.CVID, &d.run.MaxNodes, &d.run.Status,
		&d.stepsJSON, &d.graphJSON, &d.errMsg,
		&d.run.CreatedAt, &d.run.UpdatedAt,
	}
}

// finalize performs post-scan processing: sets nullable fields and unmarshals JSON.
func (d *runScanDest) finalize() (*domain.Run, error) {
	if d.errMsg != nil {
		d.run.Error = *d.errMsg
	}

	if len(d.stepsJSON) > 0 {
		if err := json.Unmarshal(d.stepsJSON, &d.run.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}

	if len(d.graphJSON) > 0 {
		var graph domain.Graph
		if err := json.Unmarshal(d.graphJSON, &graph); err != nil {
			return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
		}
		d.run.GraphData = &graph
	}

	return &d.run, nil
}

// scanRun scans a single row into a Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var dest runScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanRunFromRows scans the current row from pgx.Rows into a Run.
func scanRunFromRows(rows pgx.Rows) (*domain.Run, error) {
	var dest runScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// isPgUniqueViolation reports whether the error is a PostgreSQL unique
// constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// nullString returns a pointer to the string if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
