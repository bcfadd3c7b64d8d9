package research

import (
	"errors"

	"domainscout/research/internal/registry"
	"domainscout/research/internal/task"
)

// ErrNotFound is returned for unknown or already evicted task IDs.
var ErrNotFound = registry.ErrNotFound

// ErrNotReady is returned when results are requested before a task completes.
var ErrNotReady = errors.New("research: task not completed")

// ErrInvalidCriteria is returned by Submit for unusable criteria.
var ErrInvalidCriteria = task.ErrInvalidCriteria
