package registry

import "domainscout/research/internal/task"

// Tracker is the write handle a pipeline run gets for its own task. Every
// update lands under the registry lock, so status readers see progress
// immediately, one counter at a time.
type Tracker struct {
	r  *Registry
	id string
}

// Tracker returns the write handle bound to id.
func (r *Registry) Tracker(id string) *Tracker {
	return &Tracker{r: r, id: id}
}

func (t *Tracker) update(fn func(s *task.State)) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	e, ok := t.r.tasks[t.id]
	if !ok || e.state.Status.Terminal() {
		return
	}
	fn(&e.state)
}

// Keyword records which keyword the run is on.
func (t *Tracker) Keyword(done, total int, current string) {
	t.update(func(s *task.State) {
		s.Progress.KeywordsDone = done
		s.Progress.KeywordsTotal = total
		s.Progress.CurrentKeyword = current
	})
}

// Discovered adds n to the candidate count.
func (t *Tracker) Discovered(n int) {
	t.update(func(s *task.State) { s.Progress.Discovered += n })
}

// Processed counts one finished candidate resolution.
func (t *Tracker) Processed() {
	t.update(func(s *task.State) { s.Progress.Processed++ })
}

// Matched appends a matching record in completion order.
func (t *Tracker) Matched(rec task.Record) {
	t.update(func(s *task.State) {
		s.Records = append(s.Records, rec)
		s.Progress.Matched = len(s.Records)
	})
}
