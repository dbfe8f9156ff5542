package models

// Facility statuses
const (
	FacilityStatusActive = "Active"
)

// Patient statuses
const (
	PatientStatusActive     = "Active"
	PatientStatusDischarged = "Discharged"
	PatientStatusReferred   = "Referred"
	PatientStatusInactive   = "Inactive"
)

// Facility care-providing institution (subset of the facilities table)
type Facility struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FacilityType string `json:"facility_type"`
	Capacity     int    `json:"capacity"`
	Status       string `json:"status"`
}

// PatientCounts patients of one facility grouped by status
type PatientCounts struct {
	Active     int `json:"active"`
	Discharged int `json:"discharged"`
	Referred   int `json:"referred"`
	Inactive   int `json:"inactive"`
}
