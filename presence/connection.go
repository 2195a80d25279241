package presence

import (
	"github.com/tidwall/gjson"

	"collabcanvas/geometry"
)

// ChannelConnection is the wire name of the connection-drag channel.
const ChannelConnection = "connection"

// ConnectionDrag is a connector being drawn from an item side towards the
// cursor.
type ConnectionDrag struct {
	FromItemID string        `json:"fromItemId"`
	FromSide   geometry.Side `json:"fromSide"`
	CursorX    float64       `json:"cursorX"`
	CursorY    float64       `json:"cursorY"`
}

var ConnectionDragSchema = Schema[ConnectionDrag]{
	Shape: func(r gjson.Result) error {
		return checkObject("connection", r,
			required("fromItemId", kindString),
			required("fromSide", kindString),
			required("cursorX", kindNumber),
			required("cursorY", kindNumber),
		)
	},
	Validate: func(c *ConnectionDrag) error {
		if !c.FromSide.Valid() {
			return reject("connection.fromSide %q is not a side", c.FromSide)
		}
		return firstErr(
			nonEmpty("connection.fromItemId", c.FromItemID),
			finite("connection.cursorX", c.CursorX),
			finite("connection.cursorY", c.CursorY),
		)
	},
}

// ConnectionDragManager publishes the local connector preview.
type ConnectionDragManager struct {
	ch *Channel[ConnectionDrag]
}

func NewConnectionDragManager(s *Session) *ConnectionDragManager {
	return &ConnectionDragManager{ch: NewChannel(s, ChannelConnection, ConnectionDragSchema)}
}

func (m *ConnectionDragManager) SetConnectionDrag(c ConnectionDrag) {
	m.ch.Publish(&c)
}

// MoveCursor republishes the active connector with a new cursor position.
func (m *ConnectionDragManager) MoveCursor(x, y float64) {
	cur := m.ch.Local()
	if cur == nil {
		return
	}
	next := *cur
	next.CursorX, next.CursorY = x, y
	m.ch.Publish(&next)
}

func (m *ConnectionDragManager) ClearConnectionDrag() { m.ch.Clear() }

func (m *ConnectionDragManager) LocalConnectionDrag() *ConnectionDrag { return m.ch.Local() }

func (m *ConnectionDragManager) RemoteConnectionDrags() []Remote[ConnectionDrag] {
	return m.ch.Remotes()
}

func (m *ConnectionDragManager) Channel() *Channel[ConnectionDrag] { return m.ch }
