package presence

import (
	"slices"

	"github.com/tidwall/gjson"
)

// ChannelDrag is the wire name of the drag channel.
const ChannelDrag = "drag"

// DragCompanion is a secondary item moving with the primary one. A nil
// Rotation means the primary's rotation.
type DragCompanion struct {
	ID       string   `json:"id"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// Drag is the live position of an item being dragged.
type Drag struct {
	ID        string          `json:"id"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Rotation  float64         `json:"rotation"`
	Selection []DragCompanion `json:"selection,omitempty"`
}

// CompanionRotation returns the effective rotation of companion i.
func (d *Drag) CompanionRotation(i int) float64 {
	if r := d.Selection[i].Rotation; r != nil {
		return *r
	}
	return d.Rotation
}

func (d *Drag) clone() *Drag {
	c := *d
	c.Selection = slices.Clone(d.Selection)
	for i, s := range c.Selection {
		if s.Rotation != nil {
			r := *s.Rotation
			c.Selection[i].Rotation = &r
		}
	}
	return &c
}

// DragSchema validates drag payloads.
var DragSchema = Schema[Drag]{
	Shape: func(r gjson.Result) error {
		err := checkObject("drag", r,
			required("id", kindString),
			required("x", kindNumber),
			required("y", kindNumber),
			required("rotation", kindNumber),
			optional("selection", kindArray),
		)
		if err != nil {
			return err
		}
		return checkEach("drag.selection", r.Get("selection"), func(path string, el gjson.Result) error {
			return checkObject(path, el,
				required("id", kindString),
				required("x", kindNumber),
				required("y", kindNumber),
				optional("rotation", kindNumber),
			)
		})
	},
	Validate: func(d *Drag) error {
		err := firstErr(
			nonEmpty("drag.id", d.ID),
			finite("drag.x", d.X),
			finite("drag.y", d.Y),
			finite("drag.rotation", d.Rotation),
		)
		if err != nil {
			return err
		}
		for _, s := range d.Selection {
			err := firstErr(
				nonEmpty("drag.selection.id", s.ID),
				finite("drag.selection.x", s.X),
				finite("drag.selection.y", s.Y),
				finitePtr("drag.selection.rotation", s.Rotation),
			)
			if err != nil {
				return err
			}
		}
		return nil
	},
}

// DragManager publishes the local drag gesture.
type DragManager struct {
	ch *Channel[Drag]
}

func NewDragManager(s *Session) *DragManager {
	return &DragManager{ch: NewChannel(s, ChannelDrag, DragSchema)}
}

// SetDrag publishes a full drag payload.
func (m *DragManager) SetDrag(d Drag) {
	m.ch.Publish(d.clone())
}

// MoveTo republishes the active drag with the primary item at (x, y).
// Companions shift by the same delta. Without an active drag it does nothing.
func (m *DragManager) MoveTo(x, y float64) {
	cur := m.ch.Local()
	if cur == nil {
		return
	}
	next := cur.clone()
	dx, dy := x-cur.X, y-cur.Y
	next.X, next.Y = x, y
	for i := range next.Selection {
		next.Selection[i].X += dx
		next.Selection[i].Y += dy
	}
	m.ch.Publish(next)
}

func (m *DragManager) ClearDrag() { m.ch.Clear() }

func (m *DragManager) LocalDrag() *Drag { return m.ch.Local() }

// RemoteDrags lists connected peers' drags.
func (m *DragManager) RemoteDrags() []Remote[Drag] { return m.ch.Remotes() }

func (m *DragManager) Channel() *Channel[Drag] { return m.ch }
