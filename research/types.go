package research

import (
	"time"

	"domainscout/research/internal/task"
)

// Re-exported task model, so callers never import internal packages.
type (
	Criteria      = task.Criteria
	Record        = task.Record
	State         = task.State
	Status        = task.Status
	LookupStatus  = task.LookupStatus
	Progress      = task.Progress
	FilterOptions = task.FilterOptions
)

const (
	StatusQueued    = task.StatusQueued
	StatusRunning   = task.StatusRunning
	StatusCompleted = task.StatusCompleted
	StatusFailed    = task.StatusFailed
	StatusCancelled = task.StatusCancelled

	LookupOK          = task.LookupOK
	LookupNotFound    = task.LookupNotFound
	LookupFailed      = task.LookupFailed
	LookupRateLimited = task.LookupRateLimited
)

// RecordView is a record rendered for API responses, with the age
// recomputed at view time.
type RecordView struct {
	Keyword      string       `json:"keyword"`
	Domain       string       `json:"domain"`
	CreationDate string       `json:"creation_date,omitempty"`
	AgeDays      *int         `json:"age_days,omitempty"`
	AgeDisplay   string       `json:"age_display,omitempty"`
	Status       LookupStatus `json:"status"`
}

// Render converts records into views, evaluating ages at now.
func Render(records []Record, now time.Time) []RecordView {
	views := make([]RecordView, len(records))
	for i, r := range records {
		v := RecordView{
			Keyword: r.Keyword,
			Domain:  r.Domain,
			Status:  r.Status,
		}
		if !r.Created.IsZero() {
			v.CreationDate = r.Created.Format("2006-01-02 15:04:05")
		}
		if days, ok := r.AgeDays(now); ok {
			v.AgeDays = &days
			v.AgeDisplay = r.AgeDisplay(now)
		}
		views[i] = v
	}
	return views
}
