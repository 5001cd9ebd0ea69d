package insights

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PGRepo implements Repo using Postgres. The unique constraint on
// (company_id, content_hash) makes the insert race-free across processes.
type PGRepo struct {
	DB *sql.DB
}

// InsertIfAbsent inserts the insight, letting the unique constraint absorb
// duplicates.
func (r *PGRepo) InsertIfAbsent(ctx context.Context, insight Insight) (bool, error) {
	urls, err := json.Marshal(insight.SourceURLs)
	if err != nil {
		return false, err
	}
	const query = `
INSERT INTO insights (
	id, company_id, analysis_result_id, category, title, summary, full_content,
	priority, confidence_score, impact_score, source_urls, status, content_hash,
	event_date, published_date, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (company_id, content_hash) DO NOTHING`
	res, err := r.DB.ExecContext(ctx, query,
		insight.ID,
		insight.CompanyID,
		insight.AnalysisResultID,
		insight.Category,
		insight.Title,
		insight.Summary,
		nullString(insight.FullContent),
		insight.Priority,
		insight.ConfidenceScore,
		insight.ImpactScore,
		urls,
		insight.Status,
		insight.ContentHash,
		insight.EventDate,
		insight.PublishedDate,
		insight.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByCompany returns insights for a company, newest first.
func (r *PGRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Insight, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
SELECT id, company_id, analysis_result_id, category, title, summary, full_content,
       priority, confidence_score, impact_score, source_urls, status, content_hash,
       event_date, published_date, created_at, updated_at
FROM insights
WHERE company_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		var ins Insight
		var fullContent sql.NullString
		var urls sql.NullString
		var eventDate sql.NullTime
		var publishedDate sql.NullTime
		if err := rows.Scan(
			&ins.ID,
			&ins.CompanyID,
			&ins.AnalysisResultID,
			&ins.Category,
			&ins.Title,
			&ins.Summary,
			&fullContent,
			&ins.Priority,
			&ins.ConfidenceScore,
			&ins.ImpactScore,
			&urls,
			&ins.Status,
			&ins.ContentHash,
			&eventDate,
			&publishedDate,
			&ins.CreatedAt,
			&ins.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if fullContent.Valid {
			ins.FullContent = fullContent.String
		}
		if urls.Valid {
			_ = json.Unmarshal([]byte(urls.String), &ins.SourceURLs)
		}
		if eventDate.Valid {
			ins.EventDate = &eventDate.Time
		}
		if publishedDate.Valid {
			ins.PublishedDate = &publishedDate.Time
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
