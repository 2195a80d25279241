// Package presence broadcasts transient per-participant interaction state:
// drags, in-progress ink, connector previews and selections. Every channel
// keeps one latest-value slot per participant; only the local participant
// writes its own slot.
package presence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"collabcanvas/logging"
)

// channel is the type-erased side of Channel[T] used for routing frames.
type channel interface {
	deliver(f Frame) error
	publishRaw(payload json.RawMessage) error
	resetSeq(participantID string)
	resend()
}

// Session holds the channels of one local participant in one document. It
// routes incoming frames to channels and hands outgoing frames to the
// transport.
type Session struct {
	localID   string
	roster    *Roster
	transport Transport
	logger    *slog.Logger

	mu              sync.RWMutex
	channels        map[string]channel
	remoteListeners map[int]func(channelName, participantID string)
	nextID          int
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTransport(t Transport) Option {
	return func(s *Session) { s.transport = t }
}

func NewSession(localID string, roster *Roster, opts ...Option) *Session {
	s := &Session{
		localID:         localID,
		roster:          roster,
		logger:          logging.Nop(),
		channels:        make(map[string]channel),
		remoteListeners: make(map[int]func(string, string)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "presence"), slog.String("participantID", localID))

	// A reconnecting peer restarts its sequence numbers.
	roster.OnChange(func(a Attendee) {
		if a.Status != StatusDisconnected {
			return
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, c := range s.channels {
			c.resetSeq(a.ID)
		}
	})
	return s
}

func (s *Session) LocalID() string { return s.localID }

func (s *Session) Roster() *Roster { return s.roster }

func (s *Session) register(name string, c channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.channels[name]; exists {
		panic("presence channel already registered: " + name)
	}
	s.channels[name] = c
}

func (s *Session) lookup(name string) (channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return c, nil
}

// Deliver applies a frame received from a peer. Frames echoing the local
// participant are ignored. A rejected or stale frame leaves the slot as it
// was and the reason is returned.
func (s *Session) Deliver(f Frame) error {
	if f.ParticipantID == "" {
		return fmt.Errorf("%w: frame without participant", ErrRejected)
	}
	if f.ParticipantID == s.localID {
		return nil
	}
	c, err := s.lookup(f.Channel)
	if err != nil {
		return err
	}
	if err := c.deliver(f); err != nil {
		return err
	}

	s.mu.RLock()
	fns := make([]func(string, string), 0, len(s.remoteListeners))
	for _, fn := range s.remoteListeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(f.Channel, f.ParticipantID)
	}
	return nil
}

// PublishRaw validates a wire payload and publishes it to the local slot of
// the named channel. It is the entry point for untyped input such as a UI
// socket; typed callers use the managers.
func (s *Session) PublishRaw(name string, payload json.RawMessage) error {
	c, err := s.lookup(name)
	if err != nil {
		return err
	}
	return c.publishRaw(payload)
}

// OnRemoteChange registers fn to run after a peer's slot is updated.
func (s *Session) OnRemoteChange(fn func(channelName, participantID string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.remoteListeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.remoteListeners, id)
	}
}

// Resync sends every local slot again with its current sequence number. A
// transport calls it after reconnecting so peers that dropped this
// participant see its state again.
func (s *Session) Resync() {
	s.mu.RLock()
	chs := make([]channel, 0, len(s.channels))
	for _, c := range s.channels {
		chs = append(chs, c)
	}
	s.mu.RUnlock()
	for _, c := range chs {
		c.resend()
	}
}

func (s *Session) send(f Frame) {
	if s.transport == nil {
		return
	}
	if err := s.transport.Send(f); err != nil {
		s.logger.Warn("Failed to send presence frame", slog.String("channel", f.Channel), slog.Any("error", err))
	}
}
