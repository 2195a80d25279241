package presence

import (
	"fmt"

	"github.com/tidwall/gjson"

	"collabcanvas/geometry"
)

// ChannelStroke is the wire name of the ink channel.
const ChannelStroke = "stroke"

// Stroke is an ink stroke still being drawn. It is not part of the document
// until committed elsewhere.
type Stroke struct {
	ID        string           `json:"id"`
	Points    []geometry.Point `json:"points"`
	Color     string           `json:"color"`
	Width     float64          `json:"width"`
	Opacity   float64          `json:"opacity"`
	StartTime float64          `json:"startTime"`
}

func (s *Stroke) clone() *Stroke {
	c := *s
	c.Points = geometry.ClonePoints(s.Points)
	return &c
}

var StrokeSchema = Schema[Stroke]{
	Shape: func(r gjson.Result) error {
		err := checkObject("stroke", r,
			required("id", kindString),
			required("points", kindArray),
			required("color", kindString),
			required("width", kindNumber),
			required("opacity", kindNumber),
			required("startTime", kindNumber),
		)
		if err != nil {
			return err
		}
		return checkEach("stroke.points", r.Get("points"), func(path string, el gjson.Result) error {
			return checkObject(path, el,
				required("x", kindNumber),
				required("y", kindNumber),
				optional("t", kindNumber),
				optional("p", kindNumber),
			)
		})
	},
	Validate: func(s *Stroke) error {
		if s.Points == nil {
			return reject("stroke: missing \"points\"")
		}
		err := firstErr(
			nonEmpty("stroke.id", s.ID),
			finite("stroke.width", s.Width),
			finite("stroke.opacity", s.Opacity),
			finite("stroke.startTime", s.StartTime),
		)
		if err != nil {
			return err
		}
		for i, p := range s.Points {
			name := fmt.Sprintf("stroke.points[%d]", i)
			err := firstErr(
				finite(name+".x", p.X),
				finite(name+".y", p.Y),
				finitePtr(name+".t", p.T),
				finitePtr(name+".p", p.P),
			)
			if err != nil {
				return err
			}
		}
		return nil
	},
}

// StrokeManager publishes the local in-progress ink stroke. Updates always
// republish the full point sequence.
type StrokeManager struct {
	ch *Channel[Stroke]
}

func NewStrokeManager(s *Session) *StrokeManager {
	return &StrokeManager{ch: NewChannel(s, ChannelStroke, StrokeSchema)}
}

func (m *StrokeManager) SetStroke(s Stroke) {
	m.ch.Publish(s.clone())
}

// UpdateStroke replaces the points of the active stroke.
func (m *StrokeManager) UpdateStroke(points []geometry.Point) {
	cur := m.ch.Local()
	if cur == nil {
		return
	}
	next := cur.clone()
	next.Points = geometry.ClonePoints(points)
	m.ch.Publish(next)
}

// AppendPoint adds p to the active stroke.
func (m *StrokeManager) AppendPoint(p geometry.Point) {
	cur := m.ch.Local()
	if cur == nil {
		return
	}
	next := cur.clone()
	next.Points = append(next.Points, p.Clone())
	m.ch.Publish(next)
}

func (m *StrokeManager) ClearStroke() { m.ch.Clear() }

func (m *StrokeManager) LocalStroke() *Stroke { return m.ch.Local() }

func (m *StrokeManager) RemoteStrokes() []Remote[Stroke] { return m.ch.Remotes() }

func (m *StrokeManager) Channel() *Channel[Stroke] { return m.ch }
