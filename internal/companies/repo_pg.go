package companies

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Create inserts a new company.
func (r *PGRepo) Create(ctx context.Context, company Company) error {
	areas, err := json.Marshal(company.TherapeuticAreas)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO companies (
	id, name, ticker_symbol, description, therapeutic_areas,
	is_active, monitoring_enabled, priority_level, last_analysis_at, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.DB.ExecContext(ctx, query,
		company.ID,
		company.Name,
		nullString(company.TickerSymbol),
		nullString(company.Description),
		areas,
		company.IsActive,
		company.MonitoringOn,
		company.PriorityTier,
		company.LastAnalyzedAt,
		company.CreatedAt,
	)
	return err
}

// GetByID returns a company by ID.
func (r *PGRepo) GetByID(ctx context.Context, companyID string) (Company, error) {
	query, args, err := selectCompanies().Where(sq.Eq{"id": companyID}).Limit(1).ToSql()
	if err != nil {
		return Company{}, err
	}
	row := r.DB.QueryRowContext(ctx, query, args...)
	company, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return company, nil
}

// ListMonitored returns eligible companies matching the filter, highest
// priority tier first, least recently analyzed first within a tier.
func (r *PGRepo) ListMonitored(ctx context.Context, filter ListFilter) ([]Company, error) {
	builder := selectCompanies().
		Where(sq.Eq{"is_active": true, "monitoring_enabled": true})
	if len(filter.IDs) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.IDs})
	}
	if !filter.AnalyzedBefore.IsZero() {
		builder = builder.Where(sq.Or{
			sq.Eq{"last_analysis_at": nil},
			sq.Lt{"last_analysis_at": filter.AnalyzedBefore},
		})
	}
	builder = builder.OrderBy("priority_level DESC", "last_analysis_at ASC NULLS FIRST")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Company, 0)
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, company)
	}
	return out, rows.Err()
}

// MarkAnalyzed records a completed analysis and bumps rollup counters
// atomically in the database.
func (r *PGRepo) MarkAnalyzed(ctx context.Context, companyID string, at time.Time, insights, highPriority int) error {
	const query = `
UPDATE companies
SET last_analysis_at = $1,
    total_insights_count = total_insights_count + $2,
    high_priority_insights_count = high_priority_insights_count + $3,
    updated_at = now()
WHERE id = $4`
	res, err := r.DB.ExecContext(ctx, query, at, insights, highPriority, companyID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

func selectCompanies() sq.SelectBuilder {
	return psql.Select(
		"id", "name", "ticker_symbol", "description", "therapeutic_areas",
		"is_active", "monitoring_enabled", "priority_level", "last_analysis_at",
		"total_insights_count", "high_priority_insights_count",
		"created_at", "updated_at",
	).From("companies")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (Company, error) {
	var c Company
	var ticker sql.NullString
	var description sql.NullString
	var areas sql.NullString
	var lastAnalyzed sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.Name,
		&ticker,
		&description,
		&areas,
		&c.IsActive,
		&c.MonitoringOn,
		&c.PriorityTier,
		&lastAnalyzed,
		&c.TotalInsights,
		&c.HighPriorityInsights,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Company{}, err
	}
	if ticker.Valid {
		c.TickerSymbol = ticker.String
	}
	if description.Valid {
		c.Description = description.String
	}
	if areas.Valid {
		_ = json.Unmarshal([]byte(areas.String), &c.TherapeuticAreas)
	}
	if lastAnalyzed.Valid {
		c.LastAnalyzedAt = &lastAnalyzed.Time
	}
	return c, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
