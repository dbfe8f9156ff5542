package jobs

import (
	"errors"
	"testing"
)

func TestRequest_Validate(t *testing.T) {
	for _, name := range []string{CheckMissed, UpdateMetrics, CalculateRankings, HistoricalStats, Compare, Coverage} {
		if err := (Request{Job: name}).Validate(); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", name, err)
		}
	}

	err := Request{Job: "rebuild_everything"}.Validate()
	if !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Validate(unknown) = %v, want ErrUnknownJob", err)
	}
}

func TestScheduled(t *testing.T) {
	got := Scheduled()
	if len(got) != 4 || got[0] != CheckMissed || got[3] != HistoricalStats {
		t.Errorf("Scheduled() = %v", got)
	}
}
