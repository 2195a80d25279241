package presence

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/go-playground/assert/v2"

	"collabcanvas/geometry"
)

type peer struct {
	session *Session
	drag    *DragManager
	stroke  *StrokeManager
	conn    *ConnectionDragManager
	sel     *SelectionManager
}

// mesh wires sessions together over a synchronous in-memory transport.
type mesh struct {
	roster *Roster
	peers  map[string]*peer
	order  []string
	frames []Frame
}

func newMesh(ids ...string) *mesh {
	m := &mesh{roster: NewRoster(), peers: make(map[string]*peer)}
	for _, id := range ids {
		m.roster.Set(id, StatusConnected)
	}
	for _, id := range ids {
		s := NewSession(id, m.roster, WithTransport(TransportFunc(m.broadcast)))
		m.peers[id] = &peer{
			session: s,
			drag:    NewDragManager(s),
			stroke:  NewStrokeManager(s),
			conn:    NewConnectionDragManager(s),
			sel:     NewSelectionManager(s),
		}
		m.order = append(m.order, id)
	}
	return m
}

func (m *mesh) broadcast(f Frame) error {
	m.frames = append(m.frames, f)
	for _, id := range m.order {
		_ = m.peers[id].session.Deliver(f)
	}
	return nil
}

func (m *mesh) lastFrame() Frame {
	return m.frames[len(m.frames)-1]
}

func remoteIDs[T any](rs []Remote[T]) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ParticipantID
	}
	return out
}

func sampleDrag() Drag {
	return Drag{
		ID: "shape-1", X: 10, Y: 20, Rotation: 0.5,
		Selection: []DragCompanion{
			{ID: "shape-2", X: 40, Y: 20},
			{ID: "shape-3", X: 10, Y: 60, Rotation: geometry.Float(1.25)},
		},
	}
}

func TestPublish_RoundTrip(t *testing.T) {
	m := newMesh("a", "b", "c")
	d := sampleDrag()

	m.peers["a"].drag.SetDrag(d)

	assert.Equal(t, *m.peers["a"].drag.LocalDrag(), d)

	remotes := m.peers["b"].drag.RemoteDrags()
	assert.Equal(t, remoteIDs(remotes), []string{"a", "c"})
	assert.Equal(t, *remotes[0].Value, d)
	assert.Equal(t, remotes[1].Value == nil, true)
}

func TestPublish_CallerMutationDoesNotLeak(t *testing.T) {
	m := newMesh("a", "b")
	d := sampleDrag()
	m.peers["a"].drag.SetDrag(d)

	d.Selection[0].X = 999
	assert.Equal(t, m.peers["a"].drag.LocalDrag().Selection[0].X, 40.0)
}

func TestPublish_InvalidIsDropped(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Drag)
	}{
		{"empty id", func(d *Drag) { d.ID = "" }},
		{"nan x", func(d *Drag) { d.X = math.NaN() }},
		{"infinite rotation", func(d *Drag) { d.Rotation = math.Inf(1) }},
		{"companion without id", func(d *Drag) { d.Selection[1].ID = "" }},
		{"companion nan rotation", func(d *Drag) { d.Selection[1].Rotation = geometry.Float(math.NaN()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMesh("a", "b")
			good := sampleDrag()
			m.peers["a"].drag.SetDrag(good)
			sent := len(m.frames)

			bad := sampleDrag()
			tt.mutate(&bad)
			m.peers["a"].drag.SetDrag(bad)

			assert.Equal(t, *m.peers["a"].drag.LocalDrag(), good)
			assert.Equal(t, len(m.frames), sent)
			got, _ := m.peers["b"].drag.Channel().Remote("a")
			assert.Equal(t, *got, good)
		})
	}
}

func TestRemotes_FollowRoster(t *testing.T) {
	m := newMesh("a", "b", "c")
	m.peers["a"].drag.SetDrag(sampleDrag())
	m.peers["c"].drag.SetDrag(Drag{ID: "x", X: 1, Y: 1})

	m.roster.Set("c", StatusDisconnected)
	remotes := m.peers["a"].drag.RemoteDrags()
	assert.Equal(t, remoteIDs(remotes), []string{"b"})
	assert.Equal(t, remotes[0].Value == nil, true)

	_, ok := m.peers["a"].drag.Channel().Remote("c")
	assert.Equal(t, ok, false)

	// The last value is kept while disconnected.
	m.roster.Set("c", StatusConnected)
	remotes = m.peers["a"].drag.RemoteDrags()
	assert.Equal(t, remoteIDs(remotes), []string{"b", "c"})
	assert.Equal(t, remotes[1].Value.ID, "x")
}

func TestClear_BroadcastsNull(t *testing.T) {
	m := newMesh("a", "b")
	m.peers["a"].drag.SetDrag(sampleDrag())
	m.peers["a"].drag.ClearDrag()

	assert.Equal(t, m.peers["a"].drag.LocalDrag() == nil, true)
	assert.Equal(t, string(m.lastFrame().Payload), "null")
	assert.Equal(t, m.lastFrame().Seq, uint64(2))
	assert.Equal(t, m.peers["b"].drag.RemoteDrags()[0].Value == nil, true)
}

func TestDeliver_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"id":"s","x":1`},
		{"not an object", `[1,2]`},
		{"unknown field", `{"id":"s","x":1,"y":2,"rotation":0,"color":"red"}`},
		{"missing rotation", `{"id":"s","x":1,"y":2}`},
		{"null required field", `{"id":"s","x":null,"y":2,"rotation":0}`},
		{"string coordinate", `{"id":"s","x":"1","y":2,"rotation":0}`},
		{"empty id", `{"id":"","x":1,"y":2,"rotation":0}`},
		{"selection not array", `{"id":"s","x":1,"y":2,"rotation":0,"selection":{}}`},
		{"companion missing y", `{"id":"s","x":1,"y":2,"rotation":0,"selection":[{"id":"t","x":1}]}`},
		{"companion unknown field", `{"id":"s","x":1,"y":2,"rotation":0,"selection":[{"id":"t","x":1,"y":1,"z":3}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMesh("a", "b")
			b := m.peers["b"]
			err := b.session.Deliver(Frame{Channel: ChannelDrag, ParticipantID: "a", Seq: 1,
				Payload: json.RawMessage(`{"id":"prev","x":0,"y":0,"rotation":0}`)})
			assert.Equal(t, err, nil)

			err = b.session.Deliver(Frame{Channel: ChannelDrag, ParticipantID: "a", Seq: 2,
				Payload: json.RawMessage(tt.payload)})
			assert.Equal(t, errors.Is(err, ErrRejected), true)

			got, _ := b.drag.Channel().Remote("a")
			assert.Equal(t, got.ID, "prev")
		})
	}
}

func TestDeliver_AcceptsNullOptional(t *testing.T) {
	m := newMesh("a", "b")
	err := m.peers["b"].session.Deliver(Frame{Channel: ChannelDrag, ParticipantID: "a", Seq: 1,
		Payload: json.RawMessage(`{"id":"s","x":1,"y":2,"rotation":0,"selection":null}`)})
	assert.Equal(t, err, nil)
	got, _ := m.peers["b"].drag.Channel().Remote("a")
	assert.Equal(t, got.Selection == nil, true)
}

func TestDeliver_Sequencing(t *testing.T) {
	m := newMesh("a", "b")
	b := m.peers["b"]
	deliver := func(seq uint64, id string) error {
		payload, _ := json.Marshal(Drag{ID: id})
		return b.session.Deliver(Frame{Channel: ChannelDrag, ParticipantID: "a", Seq: seq, Payload: payload})
	}
	current := func() string {
		got, _ := b.drag.Channel().Remote("a")
		return got.ID
	}

	assert.Equal(t, deliver(2, "second"), nil)
	assert.Equal(t, errors.Is(deliver(1, "first"), ErrStale), true)
	assert.Equal(t, errors.Is(deliver(2, "again"), ErrStale), true)
	assert.Equal(t, current(), "second")

	assert.Equal(t, deliver(0, "unsequenced"), nil)
	assert.Equal(t, current(), "unsequenced")
	assert.Equal(t, errors.Is(deliver(2, "still stale"), ErrStale), true)

	// A reconnecting peer starts counting again.
	m.roster.Set("a", StatusDisconnected)
	m.roster.Set("a", StatusConnected)
	assert.Equal(t, deliver(1, "fresh"), nil)
	assert.Equal(t, current(), "fresh")
}

func TestDeliver_IgnoresOwnFrames(t *testing.T) {
	m := newMesh("a", "b")
	a := m.peers["a"]
	a.drag.SetDrag(Drag{ID: "mine"})

	err := a.session.Deliver(Frame{Channel: ChannelDrag, ParticipantID: "a", Seq: 99,
		Payload: json.RawMessage(`{"id":"echo","x":0,"y":0,"rotation":0}`)})
	assert.Equal(t, err, nil)
	assert.Equal(t, a.drag.LocalDrag().ID, "mine")
	assert.Equal(t, len(a.drag.RemoteDrags()), 1)
}

func TestDeliver_BadFrames(t *testing.T) {
	m := newMesh("a", "b")
	s := m.peers["b"].session

	err := s.Deliver(Frame{Channel: "cursor", ParticipantID: "a", Payload: json.RawMessage(`{}`)})
	assert.Equal(t, errors.Is(err, ErrUnknownChannel), true)

	err = s.Deliver(Frame{Channel: ChannelDrag, Payload: json.RawMessage(`null`)})
	assert.Equal(t, errors.Is(err, ErrRejected), true)
}

func TestPublishRaw(t *testing.T) {
	m := newMesh("a", "b")
	a := m.peers["a"]

	err := a.session.PublishRaw(ChannelConnection,
		json.RawMessage(`{"fromItemId":"n1","fromSide":"right","cursorX":5,"cursorY":6}`))
	assert.Equal(t, err, nil)
	assert.Equal(t, *a.conn.LocalConnectionDrag(),
		ConnectionDrag{FromItemID: "n1", FromSide: geometry.SideRight, CursorX: 5, CursorY: 6})
	assert.Equal(t, m.lastFrame().Channel, ChannelConnection)
	assert.Equal(t, m.lastFrame().Seq, uint64(1))

	err = a.session.PublishRaw(ChannelConnection,
		json.RawMessage(`{"fromItemId":"n1","fromSide":"middle","cursorX":5,"cursorY":6}`))
	assert.Equal(t, errors.Is(err, ErrRejected), true)
	assert.Equal(t, a.conn.LocalConnectionDrag().FromSide, geometry.SideRight)

	err = a.session.PublishRaw("cursor", json.RawMessage(`{}`))
	assert.Equal(t, errors.Is(err, ErrUnknownChannel), true)

	err = a.session.PublishRaw(ChannelConnection, json.RawMessage(`null`))
	assert.Equal(t, err, nil)
	assert.Equal(t, a.conn.LocalConnectionDrag() == nil, true)
	assert.Equal(t, string(m.lastFrame().Payload), "null")
}

func TestSubscribe(t *testing.T) {
	m := newMesh("a")
	ch := m.peers["a"].drag.Channel()

	var seen []string
	cancel := ch.Subscribe(func(d *Drag) {
		if d == nil {
			seen = append(seen, "<nil>")
			return
		}
		seen = append(seen, d.ID)
	})

	m.peers["a"].drag.SetDrag(Drag{ID: "one"})
	m.peers["a"].drag.SetDrag(Drag{ID: ""})
	m.peers["a"].drag.ClearDrag()
	cancel()
	m.peers["a"].drag.SetDrag(Drag{ID: "two"})

	assert.Equal(t, seen, []string{"one", "<nil>"})
}

func TestOnRemoteChange(t *testing.T) {
	m := newMesh("a", "b")

	type change struct{ channel, participant string }
	var got []change
	cancel := m.peers["b"].session.OnRemoteChange(func(channel, participantID string) {
		got = append(got, change{channel, participantID})
	})

	m.peers["a"].drag.SetDrag(Drag{ID: "s"})
	m.peers["a"].sel.SetSelection(Selection{{ID: "s", Kind: SelectItem}})
	cancel()
	m.peers["a"].drag.ClearDrag()

	assert.Equal(t, got, []change{{ChannelDrag, "a"}, {ChannelSelection, "a"}})
}

func TestNewChannel_DuplicateNamePanics(t *testing.T) {
	s := NewSession("a", NewRoster())
	NewDragManager(s)

	assert.PanicMatches(t, func() {
		NewChannel(s, ChannelDrag, DragSchema)
	}, "presence channel already registered: drag")
}

func TestSend_TransportErrorKeepsLocal(t *testing.T) {
	roster := NewRoster()
	s := NewSession("a", roster, WithTransport(TransportFunc(func(Frame) error {
		return errors.New("socket closed")
	})))
	drags := NewDragManager(s)

	drags.SetDrag(Drag{ID: "s"})
	assert.Equal(t, drags.LocalDrag().ID, "s")
}

func TestResync_RepublishesAfterReconnect(t *testing.T) {
	m := newMesh("a", "b")
	a, b := m.peers["a"], m.peers["b"]
	a.drag.SetDrag(Drag{ID: "s"})
	a.drag.MoveTo(3, 4)
	a.sel.SetSelection(Selection{{ID: "s", Kind: SelectItem}})
	sent := len(m.frames)

	// b lost a's state while a was away.
	m.roster.Set("a", StatusDisconnected)
	b.drag.Channel().remotes["a"].value = nil
	m.roster.Set("a", StatusConnected)

	a.session.Resync()
	assert.Equal(t, len(m.frames), sent+2)

	got, _ := b.drag.Channel().Remote("a")
	assert.Equal(t, *got, Drag{ID: "s", X: 3, Y: 4})
	for _, f := range m.frames[sent:] {
		if f.Channel == ChannelDrag {
			assert.Equal(t, f.Seq, uint64(2))
		}
	}
}
