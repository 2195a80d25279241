package presence

import (
	"encoding/json"
	"log/slog"
	"sync"
)

type slot[T any] struct {
	value *T
	seq   uint64
}

// Channel is a latest-value-wins broadcast cell with one slot per
// participant. Accepted values replace the slot whole; rejected values are
// dropped and the previous value stays. Values handed out by Local and
// Remotes are shared and must not be modified.
type Channel[T any] struct {
	name    string
	session *Session
	schema  Schema[T]
	logger  *slog.Logger

	mu        sync.RWMutex
	local     *T
	seq       uint64
	remotes   map[string]*slot[T]
	listeners map[int]func(*T)
	nextID    int
}

// NewChannel creates a channel and registers it with the session. Names must
// be unique per session.
func NewChannel[T any](s *Session, name string, schema Schema[T]) *Channel[T] {
	c := &Channel[T]{
		name:      name,
		session:   s,
		schema:    schema,
		logger:    s.logger.With(slog.String("channel", name)),
		remotes:   make(map[string]*slot[T]),
		listeners: make(map[int]func(*T)),
	}
	s.register(name, c)
	return c
}

func (c *Channel[T]) Name() string { return c.name }

// Publish writes v to the local slot and broadcasts it. A value that fails
// validation is dropped without error.
func (c *Channel[T]) Publish(v *T) {
	if err := c.schema.Check(v); err != nil {
		c.logger.Debug("Dropped invalid local payload", slog.Any("error", err))
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Debug("Dropped unencodable local payload", slog.Any("error", err))
		return
	}
	c.commit(v, payload)
}

// Clear publishes null.
func (c *Channel[T]) Clear() {
	c.Publish(nil)
}

func (c *Channel[T]) publishRaw(payload json.RawMessage) error {
	v, err := c.schema.Parse(payload)
	if err != nil {
		c.logger.Debug("Dropped invalid raw payload", slog.Any("error", err))
		return err
	}
	if v == nil {
		payload = json.RawMessage("null")
	}
	c.commit(v, payload)
	return nil
}

func (c *Channel[T]) commit(v *T, payload json.RawMessage) {
	c.mu.Lock()
	c.local = v
	c.seq++
	seq := c.seq
	fns := make([]func(*T), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	c.session.send(Frame{
		Channel:       c.name,
		ParticipantID: c.session.localID,
		Seq:           seq,
		Payload:       payload,
	})
}

// Local returns the local slot's value, nil when cleared or never published.
func (c *Channel[T]) Local() *T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.local
}

// Remotes returns one entry per connected peer, in roster order, excluding
// the local participant. Peers without a value are listed with a nil Value.
func (c *Channel[T]) Remotes() []Remote[T] {
	ids := c.session.roster.Connected()

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Remote[T], 0, len(ids))
	for _, id := range ids {
		if id == c.session.localID {
			continue
		}
		r := Remote[T]{ParticipantID: id}
		if s, ok := c.remotes[id]; ok {
			r.Value = s.value
		}
		out = append(out, r)
	}
	return out
}

// Remote returns one connected peer's value.
func (c *Channel[T]) Remote(participantID string) (*T, bool) {
	if c.session.roster.Status(participantID) != StatusConnected {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.remotes[participantID]
	if !ok {
		return nil, true
	}
	return s.value, true
}

// Subscribe registers fn to run after every accepted local publish and
// returns a function that unregisters it.
func (c *Channel[T]) Subscribe(fn func(*T)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// deliver stores a peer's frame. A frame with Seq 0 is unsequenced and
// always applies; otherwise it must be newer than the stored slot.
func (c *Channel[T]) deliver(f Frame) error {
	v, err := c.schema.Parse(f.Payload)
	if err != nil {
		c.logger.Debug("Dropped invalid remote payload",
			slog.String("from", f.ParticipantID), slog.Any("error", err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.remotes[f.ParticipantID]
	if !ok {
		s = &slot[T]{}
		c.remotes[f.ParticipantID] = s
	}
	if f.Seq != 0 && f.Seq <= s.seq {
		return ErrStale
	}
	s.value = v
	if f.Seq != 0 {
		s.seq = f.Seq
	}
	return nil
}

func (c *Channel[T]) resetSeq(participantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.remotes[participantID]; ok {
		s.seq = 0
	}
}

// resend repeats the current local value. Slots that were never written are
// skipped.
func (c *Channel[T]) resend() {
	c.mu.RLock()
	v, seq := c.local, c.seq
	c.mu.RUnlock()
	if seq == 0 {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.session.send(Frame{
		Channel:       c.name,
		ParticipantID: c.session.localID,
		Seq:           seq,
		Payload:       payload,
	})
}
