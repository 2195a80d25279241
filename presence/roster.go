package presence

import (
	"slices"
	"sync"
)

// Status is a participant's connectivity.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Attendee is one participant known to the session layer.
type Attendee struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Roster tracks participant connectivity. The session transport owns writes;
// channels only read it. Participants are kept in join order.
type Roster struct {
	mu        sync.RWMutex
	order     []string
	status    map[string]Status
	listeners map[int]func(Attendee)
	nextID    int
}

func NewRoster() *Roster {
	return &Roster{
		status:    make(map[string]Status),
		listeners: make(map[int]func(Attendee)),
	}
}

// Set records a participant's status, adding it if unknown. Listeners fire
// only when the status actually changes.
func (r *Roster) Set(id string, s Status) {
	r.mu.Lock()
	prev, known := r.status[id]
	if !known {
		r.order = append(r.order, id)
	}
	r.status[id] = s
	fns := r.snapshotListeners()
	r.mu.Unlock()

	if known && prev == s {
		return
	}
	for _, fn := range fns {
		fn(Attendee{ID: id, Status: s})
	}
}

// Replace sets the full roster, marking anyone not listed as disconnected.
func (r *Roster) Replace(attendees []Attendee) {
	listed := make(map[string]bool, len(attendees))
	for _, a := range attendees {
		listed[a.ID] = true
		r.Set(a.ID, a.Status)
	}
	for _, a := range r.Attendees() {
		if !listed[a.ID] {
			r.Set(a.ID, StatusDisconnected)
		}
	}
}

// Remove forgets a participant entirely.
func (r *Roster) Remove(id string) {
	r.mu.Lock()
	if _, ok := r.status[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.status, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	fns := r.snapshotListeners()
	r.mu.Unlock()

	for _, fn := range fns {
		fn(Attendee{ID: id, Status: StatusDisconnected})
	}
}

// Status returns a participant's connectivity; unknown ids are disconnected.
func (r *Roster) Status(id string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.status[id]; ok {
		return s
	}
	return StatusDisconnected
}

// Connected lists connected participant ids in join order.
func (r *Roster) Connected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.status[id] == StatusConnected {
			out = append(out, id)
		}
	}
	return out
}

// Attendees returns every known participant in join order.
func (r *Roster) Attendees() []Attendee {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Attendee, len(r.order))
	for i, id := range r.order {
		out[i] = Attendee{ID: id, Status: r.status[id]}
	}
	return out
}

// OnChange registers fn for connectivity changes and returns a function
// that unregisters it.
func (r *Roster) OnChange(fn func(Attendee)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// snapshotListeners must be called with r.mu held.
func (r *Roster) snapshotListeners() []func(Attendee) {
	fns := make([]func(Attendee), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	return fns
}
