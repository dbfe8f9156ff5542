package metrics

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// round half away from zero to the given number of decimals
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// completionRate completed/total as a percentage with 2 decimals; 0 when total is 0
func completionRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round(float64(completed)/float64(total)*100, 2)
}

// capacityUtilization active patients as a share of capacity, capped at 100.
// A facility without capacity is full as soon as it has an active patient.
func capacityUtilization(active, capacity int) float64 {
	if capacity <= 0 {
		if active > 0 {
			return 100
		}
		return 0
	}
	return round(math.Min(float64(active)/float64(capacity)*100, 100), 2)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func days(n int) time.Duration {
	return time.Duration(n) * day
}

// BatchResult outcome of a per-facility batch
type BatchResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
}
