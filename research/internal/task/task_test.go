package task

import (
	"errors"
	"testing"
	"time"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCriteria_Validate(t *testing.T) {
	tests := []struct {
		name    string
		crit    Criteria
		wantErr bool
	}{
		{"valid", Criteria{Keywords: []string{"vintage cameras"}}, false},
		{"valid window", Criteria{Keywords: []string{"a"}, MinAgeDays: 10, MaxAgeDays: 20}, false},
		{"no keywords", Criteria{}, true},
		{"empty keyword", Criteria{Keywords: []string{""}}, true},
		{"min over max", Criteria{Keywords: []string{"a"}, MinAgeDays: 30, MaxAgeDays: 20}, true},
		{"negative limit", Criteria{Keywords: []string{"a"}, Limit: -1}, true},
		{"max without min", Criteria{Keywords: []string{"a"}, MaxAgeDays: 20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.crit.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCriteria) {
				t.Errorf("error %v does not wrap ErrInvalidCriteria", err)
			}
		})
	}
}

func TestRecord_AgeDays(t *testing.T) {
	r := Record{Domain: "oldcam.com", Created: now.AddDate(-10, 0, 0), Status: LookupOK}
	days, ok := r.AgeDays(now)
	if !ok {
		t.Fatal("age should be known")
	}
	// 2014-06-01 → 2024-06-01 spans three leap days.
	if days != 3653 {
		t.Errorf("AgeDays = %d, want 3653", days)
	}

	unknown := Record{Domain: "x.com", Status: LookupNotFound}
	if _, ok := unknown.AgeDays(now); ok {
		t.Error("age of a dateless record should be unknown")
	}
}

func TestRecord_AgeDisplay(t *testing.T) {
	r := Record{Created: now.Add(-((5 * 365) + 123) * 24 * time.Hour)}
	if got := r.AgeDisplay(now); got != "5 years, 123 days" {
		t.Errorf("AgeDisplay = %q", got)
	}
	young := Record{Created: now.Add(-40 * 24 * time.Hour)}
	if got := young.AgeDisplay(now); got != "40 days" {
		t.Errorf("AgeDisplay = %q", got)
	}
	if got := (Record{}).AgeDisplay(now); got != "" {
		t.Errorf("AgeDisplay of dateless record = %q", got)
	}
}

func TestCriteria_Matches(t *testing.T) {
	old := Record{Domain: "oldcam.com", Created: now.AddDate(-10, 0, 0), Status: LookupOK}
	young := Record{Domain: "newcam.com", Created: now.AddDate(-1, 0, 0), Status: LookupOK}
	dateless := Record{Domain: "gone.com", Status: LookupNotFound}

	fiveYears := Criteria{Keywords: []string{"cameras"}, MinAgeDays: 5 * 365}
	if !fiveYears.Matches(old, now) {
		t.Error("10-year-old domain should match min age 5y")
	}
	if fiveYears.Matches(young, now) {
		t.Error("1-year-old domain should not match min age 5y")
	}
	if fiveYears.Matches(dateless, now) {
		t.Error("dateless record must never match an age-filtered run")
	}

	window := Criteria{Keywords: []string{"cameras"}, MinAgeDays: 100, MaxAgeDays: 800}
	if window.Matches(old, now) {
		t.Error("10-year-old domain exceeds max age")
	}
	if !window.Matches(young, now) {
		t.Error("1-year-old domain fits [100, 800] days")
	}

	// Without an age window everything is kept, failures included.
	open := Criteria{Keywords: []string{"cameras"}}
	for _, r := range []Record{old, young, dateless} {
		if !open.Matches(r, now) {
			t.Errorf("unfiltered criteria should keep %s", r.Domain)
		}
	}
}

func TestState_Clone(t *testing.T) {
	// WHAT: Clone is a deep copy.
	// WHY: Snapshots escape the registry lock; shared slices would race.
	st := State{
		ID:       "t1",
		Criteria: Criteria{Keywords: []string{"a", "b"}},
		Records:  []Record{{Domain: "x.com"}},
	}
	cp := st.Clone()
	cp.Criteria.Keywords[0] = "mutated"
	cp.Records[0].Domain = "mutated.com"
	if st.Criteria.Keywords[0] != "a" || st.Records[0].Domain != "x.com" {
		t.Error("Clone shares memory with the original")
	}
}

func TestStatus_Terminal(t *testing.T) {
	for s, want := range map[Status]bool{
		StatusQueued:    false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	} {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v", s, !want)
		}
	}
}
