package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/models"

	"go.uber.org/zap"
)

// SnapshotRepository metric_snapshots (insert and read only, never updated)
type SnapshotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

const snapshotColumns = `
	id,
	facility_id,
	metric_type,
	timestamp,
	active_patients,
	discharged_patients,
	inactive_patients,
	capacity_utilization,
	scheduled_assessments,
	completed_assessments,
	completion_rate,
	ninety_day_total_assessments,
	ninety_day_completed_assessments,
	ninety_day_completion_rate,
	historical_data
`

// CreateSnapshot appends a snapshot row and returns its id
func (r *SnapshotRepository) CreateSnapshot(ctx context.Context, s *models.MetricSnapshot) (int64, error) {
	query := `
		INSERT INTO metric_snapshots (
			facility_id,
			metric_type,
			timestamp,
			active_patients,
			discharged_patients,
			inactive_patients,
			capacity_utilization,
			scheduled_assessments,
			completed_assessments,
			completion_rate,
			ninety_day_total_assessments,
			ninety_day_completed_assessments,
			ninety_day_completion_rate,
			historical_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	var historical interface{}
	if len(s.HistoricalData) > 0 {
		historical = []byte(s.HistoricalData)
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		s.FacilityID,
		s.MetricType,
		s.Timestamp,
		s.ActivePatients,
		s.DischargedPatients,
		s.InactivePatients,
		s.CapacityUtilization,
		s.TotalAssessments,
		s.CompletedAssessments,
		s.CompletionRate,
		s.NinetyDayTotalAssessments,
		s.NinetyDayCompletedAssessments,
		s.NinetyDayCompletionRate,
		historical,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create metric snapshot: %w", err)
	}

	return id, nil
}

// GetLatestSnapshot newest snapshot of a facility and type; nil when none exists
func (r *SnapshotRepository) GetLatestSnapshot(ctx context.Context, facilityID int64, metricType string) (*models.MetricSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM metric_snapshots
		WHERE facility_id = $1
		  AND metric_type = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`

	s, err := scanSnapshot(r.db.QueryRowContext(ctx, query, facilityID, metricType))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	return s, nil
}

// ListLatestSnapshots newest snapshot of the given type for every active facility
func (r *SnapshotRepository) ListLatestSnapshots(ctx context.Context, metricType string) ([]models.MetricSnapshot, error) {
	query := `
		SELECT DISTINCT ON (s.facility_id)
			s.id,
			s.facility_id,
			s.metric_type,
			s.timestamp,
			s.active_patients,
			s.discharged_patients,
			s.inactive_patients,
			s.capacity_utilization,
			s.scheduled_assessments,
			s.completed_assessments,
			s.completion_rate,
			s.ninety_day_total_assessments,
			s.ninety_day_completed_assessments,
			s.ninety_day_completion_rate,
			s.historical_data
		FROM metric_snapshots s
		JOIN facilities f ON f.id = s.facility_id
		WHERE f.status = $1
		  AND s.metric_type = $2
		ORDER BY s.facility_id, s.timestamp DESC
	`

	return r.querySnapshots(ctx, query, models.FacilityStatusActive, metricType)
}

// ListSnapshots history of one facility, newest first, optionally bounded by from/to (inclusive)
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, facilityID int64, from, to *time.Time) ([]models.MetricSnapshot, error) {
	conds := []string{"facility_id = $1"}
	args := []interface{}{facilityID}
	if from != nil {
		args = append(args, *from)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := `SELECT ` + snapshotColumns + `
		FROM metric_snapshots
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY timestamp DESC
	`

	return r.querySnapshots(ctx, query, args...)
}

func (r *SnapshotRepository) querySnapshots(ctx context.Context, query string, args ...interface{}) ([]models.MetricSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.MetricSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*models.MetricSnapshot, error) {
	var s models.MetricSnapshot
	var historical []byte
	if err := row.Scan(
		&s.ID,
		&s.FacilityID,
		&s.MetricType,
		&s.Timestamp,
		&s.ActivePatients,
		&s.DischargedPatients,
		&s.InactivePatients,
		&s.CapacityUtilization,
		&s.TotalAssessments,
		&s.CompletedAssessments,
		&s.CompletionRate,
		&s.NinetyDayTotalAssessments,
		&s.NinetyDayCompletedAssessments,
		&s.NinetyDayCompletionRate,
		&historical,
	); err != nil {
		return nil, err
	}
	if len(historical) > 0 {
		s.HistoricalData = historical
	}
	return &s, nil
}
