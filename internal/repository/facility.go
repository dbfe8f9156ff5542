package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrFacilityNotFound facility id does not exist
var ErrFacilityNotFound = errors.New("facility not found")

// FacilityRepository facilities and patients (read only)
type FacilityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFacilityRepository creates a new facility repository
func NewFacilityRepository(db *sql.DB, logger *zap.Logger) *FacilityRepository {
	return &FacilityRepository{
		db:     db,
		logger: logger,
	}
}

// ListActiveFacilities facilities with status 'Active', ordered by id
func (r *FacilityRepository) ListActiveFacilities(ctx context.Context) ([]models.Facility, error) {
	query := `
		SELECT id, name, facility_type, capacity, status
		FROM facilities
		WHERE status = $1
		ORDER BY id
	`
	return r.queryFacilities(ctx, query, models.FacilityStatusActive)
}

// ListFacilities every facility regardless of status, ordered by id
func (r *FacilityRepository) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	query := `
		SELECT id, name, facility_type, capacity, status
		FROM facilities
		ORDER BY id
	`
	return r.queryFacilities(ctx, query)
}

func (r *FacilityRepository) queryFacilities(ctx context.Context, query string, args ...interface{}) ([]models.Facility, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var facilities []models.Facility
	for rows.Next() {
		var f models.Facility
		var facilityType sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &facilityType, &f.Capacity, &f.Status); err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		f.FacilityType = facilityType.String
		facilities = append(facilities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facilities: %w", err)
	}

	return facilities, nil
}

// GetFacility returns ErrFacilityNotFound for an unknown id
func (r *FacilityRepository) GetFacility(ctx context.Context, facilityID int64) (*models.Facility, error) {
	query := `
		SELECT id, name, facility_type, capacity, status
		FROM facilities
		WHERE id = $1
	`

	var f models.Facility
	var facilityType sql.NullString
	err := r.db.QueryRowContext(ctx, query, facilityID).Scan(&f.ID, &f.Name, &facilityType, &f.Capacity, &f.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %d", ErrFacilityNotFound, facilityID)
		}
		return nil, fmt.Errorf("failed to query facility: %w", err)
	}
	f.FacilityType = facilityType.String

	return &f, nil
}

// GetFacilitiesByIDs facilities with the given ids, keyed by id; unknown ids are absent
func (r *FacilityRepository) GetFacilitiesByIDs(ctx context.Context, ids []int64) (map[int64]models.Facility, error) {
	query := `
		SELECT id, name, facility_type, capacity, status
		FROM facilities
		WHERE id = ANY($1)
		ORDER BY id
	`

	facilities, err := r.queryFacilities(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Facility, len(facilities))
	for _, f := range facilities {
		byID[f.ID] = f
	}
	return byID, nil
}

// CountPatientsByStatus patients of a facility grouped by status.
// Unknown statuses are logged and ignored.
func (r *FacilityRepository) CountPatientsByStatus(ctx context.Context, facilityID int64) (models.PatientCounts, error) {
	query := `
		SELECT status, COUNT(*)::int
		FROM patients
		WHERE facility_id = $1
		GROUP BY status
	`

	var counts models.PatientCounts
	rows, err := r.db.QueryContext(ctx, query, facilityID)
	if err != nil {
		return counts, fmt.Errorf("failed to count patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan patient count: %w", err)
		}
		switch status {
		case models.PatientStatusActive:
			counts.Active = n
		case models.PatientStatusDischarged:
			counts.Discharged = n
		case models.PatientStatusReferred:
			counts.Referred = n
		case models.PatientStatusInactive:
			counts.Inactive = n
		default:
			r.logger.Debug("Ignoring unknown patient status",
				zap.Int64("facility_id", facilityID),
				zap.String("status", status),
			)
		}
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("failed to iterate patient counts: %w", err)
	}

	return counts, nil
}

// CountPatientCoverage active patients and how many of them have at least one assessment
func (r *FacilityRepository) CountPatientCoverage(ctx context.Context, facilityID int64) (total int, assessed int, err error) {
	query := `
		SELECT
			COUNT(*)::int,
			COUNT(*) FILTER (
				WHERE EXISTS (SELECT 1 FROM assessments a WHERE a.patient_id = p.id)
			)::int
		FROM patients p
		WHERE p.facility_id = $1
		  AND p.status = $2
	`

	if err := r.db.QueryRowContext(ctx, query, facilityID, models.PatientStatusActive).Scan(&total, &assessed); err != nil {
		return 0, 0, fmt.Errorf("failed to count patient coverage: %w", err)
	}

	return total, assessed, nil
}

// GetAuditCoverage active facilities, those with a completed audit since `since`,
// and the number of completed audits since `since`
func (r *FacilityRepository) GetAuditCoverage(ctx context.Context, since time.Time) (models.AuditCoverage, error) {
	query := `
		SELECT
			(SELECT COUNT(*)::int FROM facilities WHERE status = $1),
			(SELECT COUNT(DISTINCT f.id)::int
			   FROM facilities f
			   JOIN audits a ON a.facility_id = f.id
			  WHERE f.status = $1
			    AND a.status = $2
			    AND a.audit_date >= $3),
			(SELECT COUNT(*)::int FROM audits WHERE status = $2 AND audit_date >= $3)
	`

	var c models.AuditCoverage
	err := r.db.QueryRowContext(ctx, query, models.FacilityStatusActive, models.StatusCompleted, since).Scan(
		&c.ActiveFacilities,
		&c.FacilitiesWithAudits,
		&c.CompletedAuditsInRange,
	)
	if err != nil {
		return c, fmt.Errorf("failed to query audit coverage: %w", err)
	}

	return c, nil
}
