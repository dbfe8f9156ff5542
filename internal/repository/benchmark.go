package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guy-corneille/mentalhealthinsight/internal/models"

	"go.uber.org/zap"
)

// BenchmarkRepository benchmark_criteria and benchmark_comparisons
type BenchmarkRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBenchmarkRepository creates a new benchmark repository
func NewBenchmarkRepository(db *sql.DB, logger *zap.Logger) *BenchmarkRepository {
	return &BenchmarkRepository{
		db:     db,
		logger: logger,
	}
}

// ListActiveCriteria active benchmark criteria ordered by id
func (r *BenchmarkRepository) ListActiveCriteria(ctx context.Context) ([]models.BenchmarkCriteria, error) {
	query := `
		SELECT id, name, category, weight, is_active
		FROM benchmark_criteria
		WHERE is_active = TRUE
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmark criteria: %w", err)
	}
	defer rows.Close()

	var criteria []models.BenchmarkCriteria
	for rows.Next() {
		var c models.BenchmarkCriteria
		if err := rows.Scan(&c.ID, &c.Name, &c.Category, &c.Weight, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark criteria: %w", err)
		}
		criteria = append(criteria, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate benchmark criteria: %w", err)
	}

	return criteria, nil
}

// CreateComparison inserts a comparison row; c.ID must already be set
func (r *BenchmarkRepository) CreateComparison(ctx context.Context, c *models.BenchmarkComparison) error {
	query := `
		INSERT INTO benchmark_comparisons (
			id,
			facility_a_id,
			facility_b_id,
			comparison_date,
			overall_score_a,
			overall_score_b,
			detailed_results,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $4, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.FacilityAID,
		c.FacilityBID,
		c.ComparisonDate,
		c.OverallScoreA,
		c.OverallScoreB,
		[]byte(c.DetailedResults),
	)
	if err != nil {
		return fmt.Errorf("failed to create benchmark comparison: %w", err)
	}

	return nil
}
