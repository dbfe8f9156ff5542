package models

import (
	"encoding/json"
	"time"
)

// Rank trend relative to the previous ranking
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendSame = "same"
	TrendNew  = "new"
)

// Benchmark criteria categories
const (
	CriteriaCategoryAudit      = "audit"
	CriteriaCategoryAssessment = "assessment"
)

// FacilityRanking one facility's rank at a ranking date (facility_rankings)
type FacilityRanking struct {
	ID              int64     `json:"id"`
	FacilityID      int64     `json:"facility_id"`
	FacilityName    string    `json:"facility_name,omitempty"`
	RankingDate     time.Time `json:"ranking_date"`
	OverallRank     int       `json:"overall_rank"`
	TotalFacilities int       `json:"total_facilities"`
	AuditScore      float64   `json:"audit_score"`
	PreviousRank    *int      `json:"previous_rank,omitempty"`
	Trend           string    `json:"trend,omitempty"`
}

// BenchmarkCriteria weighted criterion used by the weighted ranking mode
type BenchmarkCriteria struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
	IsActive bool    `json:"is_active"`
}

// AuditScores 90-day completed audit summary
type AuditScores struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Period  string  `json:"period"`
}

// PatientCoverage share of active patients with at least one assessment
type PatientCoverage struct {
	TotalPatients      int     `json:"total_patients"`
	AssessedPatients   int     `json:"assessed_patients"`
	CoveragePercentage float64 `json:"coverage_percentage"`
}

// RecentAssessments completed assessment summary over the recent window
type RecentAssessments struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
	Period       string  `json:"period"`
}

// FacilityMetrics benchmark metrics of one facility
type FacilityMetrics struct {
	AuditScores       AuditScores       `json:"audit_scores"`
	PatientCoverage   PatientCoverage   `json:"patient_coverage"`
	RecentAssessments RecentAssessments `json:"recent_assessments"`
}

// BenchmarkComparison persisted facility-vs-facility comparison (benchmark_comparisons)
type BenchmarkComparison struct {
	ID              string          `json:"id"`
	FacilityAID     int64           `json:"facility_a"`
	FacilityBID     int64           `json:"facility_b"`
	ComparisonDate  time.Time       `json:"comparison_date"`
	OverallScoreA   float64         `json:"overall_score_a"`
	OverallScoreB   float64         `json:"overall_score_b"`
	DetailedResults json.RawMessage `json:"detailed_results"`
}

// AuditCoverage summary of recent audit activity across active facilities
type AuditCoverage struct {
	ActiveFacilities       int `json:"active_facilities"`
	FacilitiesWithAudits   int `json:"facilities_with_audits"`
	CompletedAuditsInRange int `json:"completed_audits_in_range"`
}
