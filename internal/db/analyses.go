package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordAnalysis inserts an analysis. A zero ID is replaced with a new one.
func (db *DB) RecordAnalysis(ctx context.Context, a *Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO analyses (id, profile, model, status, attempts, result, violations, raw_response, report, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		a.ID, a.Profile, a.Model, a.Status, a.Attempts,
		nullableJSON(a.Result), nullableJSON(a.Violations),
		a.RawResponse, a.Report, a.Error,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

const analysisColumns = `id, profile, model, status, attempts, result, violations, raw_response, report, error, created_at`

// GetAnalysis retrieves an analysis by ID. Returns nil when it does not exist.
func (db *DB) GetAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1`,
		id,
	)

	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListAnalyses lists analyses, newest first, with optional filters and pagination.
// It also returns the total number of matching rows.
func (db *DB) ListAnalyses(ctx context.Context, opts ListAnalysesOptions) ([]Analysis, int, error) {
	countQuery, listQuery, countArgs, listArgs := buildListQueries(opts)

	var total int
	if err := db.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	rows, err := db.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, total, nil
}

func buildListQueries(opts ListAnalysesOptions) (countQuery, listQuery string, countArgs, listArgs []any) {
	var conditions []string
	argIndex := 1

	if opts.Profile != "" {
		conditions = append(conditions, fmt.Sprintf("profile = $%d", argIndex))
		countArgs = append(countArgs, opts.Profile)
		argIndex++
	}
	if opts.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		countArgs = append(countArgs, opts.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	countQuery = "SELECT COUNT(*) FROM analyses" + whereClause
	listQuery = fmt.Sprintf(
		"SELECT %s FROM analyses%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		analysisColumns, whereClause, argIndex, argIndex+1,
	)
	listArgs = append(append([]any(nil), countArgs...), limit, offset)
	return countQuery, listQuery, countArgs, listArgs
}

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	var result, violations []byte
	err := row.Scan(
		&a.ID, &a.Profile, &a.Model, &a.Status, &a.Attempts,
		&result, &violations, &a.RawResponse, &a.Report, &a.Error, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Result = result
	a.Violations = violations
	return &a, nil
}

// nullableJSON stores empty documents as SQL NULL.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
