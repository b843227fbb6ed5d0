package experiment

// Nested is the four-level dataset tree keyed condition, date, subject,
// run. The key ordering is part of the persisted layout and must not
// change. Values are inserted trial by trial during aggregation; a failed
// trial is never inserted, so no partial rollback is needed.
type Nested[T any] map[string]map[string]map[string]map[string]T

// Put inserts the value for one trial, creating intermediate levels.
func (n Nested[T]) Put(k TrialKey, v T) {
	dates, ok := n[k.Condition]
	if !ok {
		dates = make(map[string]map[string]map[string]T)
		n[k.Condition] = dates
	}
	subjects, ok := dates[k.Date]
	if !ok {
		subjects = make(map[string]map[string]T)
		dates[k.Date] = subjects
	}
	runs, ok := subjects[k.Subject]
	if !ok {
		runs = make(map[string]T)
		subjects[k.Subject] = runs
	}
	runs[k.Run] = v
}

// Get looks up the value for one trial.
func (n Nested[T]) Get(k TrialKey) (T, bool) {
	var zero T
	dates, ok := n[k.Condition]
	if !ok {
		return zero, false
	}
	subjects, ok := dates[k.Date]
	if !ok {
		return zero, false
	}
	runs, ok := subjects[k.Subject]
	if !ok {
		return zero, false
	}
	v, ok := runs[k.Run]
	return v, ok
}

// Len returns the number of trials in the tree.
func (n Nested[T]) Len() int {
	count := 0
	n.Walk(func(TrialKey, T) { count++ })
	return count
}

// Walk visits every trial in deterministic order: conditions, dates,
// subjects and runs each sorted lexically.
func (n Nested[T]) Walk(fn func(k TrialKey, v T)) {
	for _, condition := range sortedKeys(n) {
		dates := n[condition]
		for _, date := range sortedKeys(dates) {
			subjects := dates[date]
			for _, subject := range sortedKeys(subjects) {
				runs := subjects[subject]
				for _, run := range sortedKeys(runs) {
					fn(TrialKey{
						Date:      date,
						Subject:   subject,
						Condition: condition,
						Run:       run,
					}, runs[run])
				}
			}
		}
	}
}
