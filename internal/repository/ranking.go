package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/models"

	"go.uber.org/zap"
)

// RankingRepository facility_rankings
type RankingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRankingRepository creates a new ranking repository
func NewRankingRepository(db *sql.DB, logger *zap.Logger) *RankingRepository {
	return &RankingRepository{
		db:     db,
		logger: logger,
	}
}

// GetPreviousRank overall_rank of the facility's most recent ranking before `before`.
// Returns nil when the facility has never been ranked.
func (r *RankingRepository) GetPreviousRank(ctx context.Context, facilityID int64, before time.Time) (*int, error) {
	query := `
		SELECT overall_rank
		FROM facility_rankings
		WHERE facility_id = $1
		  AND ranking_date < $2
		ORDER BY ranking_date DESC
		LIMIT 1
	`

	var rank int
	err := r.db.QueryRowContext(ctx, query, facilityID, before).Scan(&rank)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query previous rank: %w", err)
	}

	return &rank, nil
}

// CreateRanking inserts one ranking row and returns its id
func (r *RankingRepository) CreateRanking(ctx context.Context, ranking *models.FacilityRanking) (int64, error) {
	query := `
		INSERT INTO facility_rankings (
			facility_id,
			ranking_date,
			overall_rank,
			total_facilities,
			audit_score,
			previous_rank,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		ranking.FacilityID,
		ranking.RankingDate,
		ranking.OverallRank,
		ranking.TotalFacilities,
		ranking.AuditScore,
		ranking.PreviousRank,
		ranking.RankingDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create facility ranking: %w", err)
	}

	return id, nil
}

// GetCurrentRankings rows of the latest ranking_date ordered by rank; empty when never ranked
func (r *RankingRepository) GetCurrentRankings(ctx context.Context) ([]models.FacilityRanking, error) {
	query := `
		SELECT
			r.id,
			r.facility_id,
			f.name,
			r.ranking_date,
			r.overall_rank,
			r.total_facilities,
			r.audit_score,
			r.previous_rank
		FROM facility_rankings r
		JOIN facilities f ON f.id = r.facility_id
		WHERE r.ranking_date = (SELECT MAX(ranking_date) FROM facility_rankings)
		ORDER BY r.overall_rank
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query current rankings: %w", err)
	}
	defer rows.Close()

	var rankings []models.FacilityRanking
	for rows.Next() {
		var fr models.FacilityRanking
		var previous sql.NullInt64
		if err := rows.Scan(
			&fr.ID,
			&fr.FacilityID,
			&fr.FacilityName,
			&fr.RankingDate,
			&fr.OverallRank,
			&fr.TotalFacilities,
			&fr.AuditScore,
			&previous,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		if previous.Valid {
			p := int(previous.Int64)
			fr.PreviousRank = &p
		}
		rankings = append(rankings, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rankings: %w", err)
	}

	return rankings, nil
}
