// Package task defines the research task data model: criteria, domain
// records, lifecycle states, and progress counters. The registry owns
// instances of State; every other package sees read-only copies.
package task

import (
	"errors"
	"fmt"
	"time"
)

// LookupStatus classifies the outcome of a single domain age lookup.
type LookupStatus string

const (
	LookupOK          LookupStatus = "ok"
	LookupNotFound    LookupStatus = "not_found"
	LookupFailed      LookupStatus = "lookup_failed"
	LookupRateLimited LookupStatus = "rate_limited"
)

// Record is one researched domain. Immutable once produced by the resolver.
// Created is the zero time when no parseable registration date existed.
type Record struct {
	Domain  string       `json:"domain"`
	Keyword string       `json:"keyword"`
	Created time.Time    `json:"creation_date,omitzero"`
	Status  LookupStatus `json:"status"`
}

// AgeDays returns the record's age in whole days relative to now.
// ok is false when the creation date is unknown.
func (r Record) AgeDays(now time.Time) (int, bool) {
	if r.Created.IsZero() {
		return 0, false
	}
	return int(now.Sub(r.Created).Hours() / 24), true
}

// AgeDisplay renders a human-readable age ("7 years, 123 days") relative
// to now, or "" when the creation date is unknown.
func (r Record) AgeDisplay(now time.Time) string {
	days, ok := r.AgeDays(now)
	if !ok {
		return ""
	}
	years := days / 365
	rem := days % 365
	if years > 0 {
		return fmt.Sprintf("%d years, %d days", years, rem)
	}
	return fmt.Sprintf("%d days", days)
}

// Criteria is the immutable input of one research run. Ages are in days;
// MaxAgeDays == 0 means no upper bound, Limit == 0 means unlimited.
type Criteria struct {
	Keywords      []string `json:"keywords" yaml:"keywords"`
	MinAgeDays    int      `json:"min_age_days" yaml:"min_age_days"`
	MaxAgeDays    int      `json:"max_age_days" yaml:"max_age_days"`
	Limit         int      `json:"limit" yaml:"limit"`
	MaxPerKeyword int      `json:"max_per_keyword" yaml:"max_per_keyword"`
}

// ErrInvalidCriteria is returned by Validate for unusable criteria.
var ErrInvalidCriteria = errors.New("task: invalid criteria")

// Validate checks the criteria invariants.
func (c Criteria) Validate() error {
	if len(c.Keywords) == 0 {
		return fmt.Errorf("%w: no keywords", ErrInvalidCriteria)
	}
	for _, kw := range c.Keywords {
		if kw == "" {
			return fmt.Errorf("%w: empty keyword", ErrInvalidCriteria)
		}
	}
	if c.MinAgeDays < 0 || c.MaxAgeDays < 0 || c.Limit < 0 || c.MaxPerKeyword < 0 {
		return fmt.Errorf("%w: negative bound", ErrInvalidCriteria)
	}
	if c.MaxAgeDays > 0 && c.MinAgeDays > c.MaxAgeDays {
		return fmt.Errorf("%w: min age %d exceeds max age %d", ErrInvalidCriteria, c.MinAgeDays, c.MaxAgeDays)
	}
	return nil
}

// AgeFiltered reports whether the criteria constrain age at all. Without an
// age window every resolved record is kept, failed lookups included, so a
// finished task can show a mix of statuses.
func (c Criteria) AgeFiltered() bool {
	return c.MinAgeDays > 0 || c.MaxAgeDays > 0
}

// Matches reports whether a resolved record passes the criteria's age
// window, evaluated at now. Records without a known age never match an
// age-filtered run, whatever the bounds.
func (c Criteria) Matches(r Record, now time.Time) bool {
	if !c.AgeFiltered() {
		return true
	}
	days, ok := r.AgeDays(now)
	if !ok {
		return false
	}
	if days < c.MinAgeDays {
		return false
	}
	if c.MaxAgeDays > 0 && days > c.MaxAgeDays {
		return false
	}
	return true
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Progress holds the live counters of a run. Updated after every candidate
// resolution, never batched.
type Progress struct {
	KeywordsDone   int    `json:"keywords_done"`
	KeywordsTotal  int    `json:"keywords_total"`
	CurrentKeyword string `json:"current_keyword,omitempty"`
	Discovered     int    `json:"discovered"`
	Processed      int    `json:"processed"`
	Matched        int    `json:"matched"`
}

// State is one research run. The registry owns the canonical instance;
// Clone produces the snapshots handed to callers.
type State struct {
	ID          string    `json:"id"`
	Criteria    Criteria  `json:"criteria"`
	Status      Status    `json:"status"`
	Progress    Progress  `json:"progress"`
	Records     []Record  `json:"records"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Err         string    `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (s *State) Clone() State {
	out := *s
	out.Criteria.Keywords = append([]string(nil), s.Criteria.Keywords...)
	out.Records = append([]Record(nil), s.Records...)
	return out
}
