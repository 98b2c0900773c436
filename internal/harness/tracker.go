package harness

// Tracker holds the counters of one optimization run. It is not safe for
// concurrent use; trials run strictly one after another.
type Tracker struct {
	budget    int
	remaining int
	best      float64
	completed int
	failed    int
}

// TrialState is a point-in-time copy of the tracker.
type TrialState struct {
	Budget    int
	Remaining int
	Best      float64
	Completed int
	Failed    int
}

// NewTracker returns a tracker reset for the given budget.
func NewTracker(budget int) *Tracker {
	t := &Tracker{}
	t.Reset(budget)
	return t
}

// Reset starts a new run.
func (t *Tracker) Reset(budget int) {
	if budget < 0 {
		budget = 0
	}
	*t = Tracker{budget: budget, remaining: budget}
}

// RecordSuccess counts a trial that produced score. Best only moves up.
func (t *Tracker) RecordSuccess(score float64) {
	if score > t.best {
		t.best = score
	}
	t.completed++
	t.consume()
}

// RecordFailure counts a trial that produced no score.
func (t *Tracker) RecordFailure() {
	t.completed++
	t.failed++
	t.consume()
}

func (t *Tracker) consume() {
	if t.remaining > 0 {
		t.remaining--
	}
}

// Remaining returns the number of trials left in the budget.
func (t *Tracker) Remaining() int { return t.remaining }

// Best returns the highest score observed so far.
func (t *Tracker) Best() float64 { return t.best }

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() TrialState {
	return TrialState{
		Budget:    t.budget,
		Remaining: t.remaining,
		Best:      t.best,
		Completed: t.completed,
		Failed:    t.failed,
	}
}
