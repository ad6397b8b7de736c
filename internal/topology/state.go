// Package topology holds the last-known metrics for every stage of the
// monitored pipeline and derives rates from the cumulative counters the API
// reports.
//
// State is not safe for concurrent use. The dashboard controller is its only
// writer and reader.
package topology

import "time"

// Row is one monitored pipeline stage.
type Row struct {
	Name            string
	Kind            string // source, transform, sink
	EventsProcessed int64
	Errors          int64
	// Throughput is events/second between the two most recent samples.
	// Derived locally; never sent by the server.
	Throughput float64
	// ErrorDelta is the error count added since the previous sample.
	ErrorDelta int64
	ObservedAt time.Time
}

// Update is one cumulative counter sample for a stage.
type Update struct {
	Name            string
	Kind            string // only used when the update creates the row
	EventsProcessed int64
	Errors          int64
	ObservedAt      time.Time
}

// State maps stage names to rows, preserving first-seen order.
type State struct {
	rows  map[string]*Row
	order []string
}

// New seeds a State from a snapshot. Every row starts with zero throughput and
// observedAt as its baseline time. A name repeated in the snapshot keeps its
// first position and takes the later counters.
func New(rows []Row, observedAt time.Time) *State {
	s := &State{
		rows:  make(map[string]*Row, len(rows)),
		order: make([]string, 0, len(rows)),
	}
	for _, r := range rows {
		r.Throughput = 0
		r.ErrorDelta = 0
		if r.ObservedAt.IsZero() {
			r.ObservedAt = observedAt
		}
		if existing, ok := s.rows[r.Name]; ok {
			*existing = r
			continue
		}
		row := r
		s.rows[r.Name] = &row
		s.order = append(s.order, r.Name)
	}
	return s
}

// ApplyUpdate merges one cumulative sample into the state.
func (s *State) ApplyUpdate(name string, eventsProcessed, errors int64, observedAt time.Time) {
	s.Apply(Update{
		Name:            name,
		EventsProcessed: eventsProcessed,
		Errors:          errors,
		ObservedAt:      observedAt,
	})
}

// Apply merges u into the state. Unknown names insert a row with zero
// throughput. A counter lower than the stored one means the stage restarted:
// the new value becomes the baseline and throughput drops to 0.
func (s *State) Apply(u Update) {
	row, ok := s.rows[u.Name]
	if !ok {
		s.rows[u.Name] = &Row{
			Name:            u.Name,
			Kind:            u.Kind,
			EventsProcessed: u.EventsProcessed,
			Errors:          u.Errors,
			ObservedAt:      u.ObservedAt,
		}
		s.order = append(s.order, u.Name)
		return
	}

	if row.Kind == "" && u.Kind != "" {
		row.Kind = u.Kind
	}

	dt := u.ObservedAt.Sub(row.ObservedAt).Seconds()

	if dt <= 0 {
		// Duplicate or out-of-order sample: keep the rate, accept growth,
		// rebase on regression.
		switch {
		case u.EventsProcessed > row.EventsProcessed:
			row.EventsProcessed = u.EventsProcessed
		case u.EventsProcessed < row.EventsProcessed:
			row.EventsProcessed = u.EventsProcessed
			row.Throughput = 0
		}
		switch {
		case u.Errors > row.Errors:
			row.ErrorDelta = u.Errors - row.Errors
			row.Errors = u.Errors
		case u.Errors < row.Errors:
			row.Errors = u.Errors
			row.ErrorDelta = 0
		}
		return
	}

	if u.EventsProcessed >= row.EventsProcessed {
		row.Throughput = float64(u.EventsProcessed-row.EventsProcessed) / dt
	} else {
		row.Throughput = 0
	}
	row.EventsProcessed = u.EventsProcessed

	if u.Errors >= row.Errors {
		row.ErrorDelta = u.Errors - row.Errors
	} else {
		row.ErrorDelta = 0
	}
	row.Errors = u.Errors
	row.ObservedAt = u.ObservedAt
}

// Remove deletes a stage. Rows only disappear through an explicit removal,
// never because an update batch omitted them.
func (s *State) Remove(name string) bool {
	if _, ok := s.rows[name]; !ok {
		return false
	}
	delete(s.rows, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Rows returns copies of every row in insertion order.
func (s *State) Rows() []Row {
	out := make([]Row, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.rows[name])
	}
	return out
}

// Get returns a copy of the named row.
func (s *State) Get(name string) (Row, bool) {
	row, ok := s.rows[name]
	if !ok {
		return Row{}, false
	}
	return *row, true
}

// Len returns the number of rows.
func (s *State) Len() int {
	return len(s.order)
}
