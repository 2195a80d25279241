package presence

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"

	"collabcanvas/geometry"
)

func TestDragManager_MoveTo(t *testing.T) {
	m := newMesh("a", "b")
	a := m.peers["a"]

	a.drag.MoveTo(5, 5)
	assert.Equal(t, a.drag.LocalDrag() == nil, true)
	assert.Equal(t, len(m.frames), 0)

	a.drag.SetDrag(sampleDrag())
	a.drag.MoveTo(15, 10)

	got := a.drag.LocalDrag()
	assert.Equal(t, got.X, 15.0)
	assert.Equal(t, got.Y, 10.0)
	assert.Equal(t, got.Selection[0].X, 45.0)
	assert.Equal(t, got.Selection[0].Y, 10.0)
	assert.Equal(t, got.Selection[1].X, 15.0)
	assert.Equal(t, got.Selection[1].Y, 50.0)
	assert.Equal(t, *got.Selection[1].Rotation, 1.25)

	remote, _ := m.peers["b"].drag.Channel().Remote("a")
	assert.Equal(t, *remote, *got)
}

func TestDrag_CompanionRotation(t *testing.T) {
	d := sampleDrag()
	assert.Equal(t, d.CompanionRotation(0), 0.5)
	assert.Equal(t, d.CompanionRotation(1), 1.25)
}

func TestDrag_OmitsEmptySelection(t *testing.T) {
	m := newMesh("a", "b")
	m.peers["a"].drag.SetDrag(Drag{ID: "s", X: 1, Y: 2})
	assert.Equal(t, string(m.lastFrame().Payload), `{"id":"s","x":1,"y":2,"rotation":0}`)
}

func sampleStroke() Stroke {
	return Stroke{
		ID:        "ink-1",
		Points:    []geometry.Point{{X: 0, Y: 0, T: geometry.Float(0)}, {X: 1, Y: 1, T: geometry.Float(16), P: geometry.Float(0.4)}},
		Color:     "#1e1e1e",
		Width:     3,
		Opacity:   1,
		StartTime: 1700000000000,
	}
}

func TestStrokeManager_AppendPoint(t *testing.T) {
	m := newMesh("a", "b")
	a := m.peers["a"]

	a.stroke.AppendPoint(geometry.Pt(1, 1))
	assert.Equal(t, len(m.frames), 0)

	a.stroke.SetStroke(sampleStroke())
	a.stroke.AppendPoint(geometry.Point{X: 2, Y: 3, P: geometry.Float(0.7)})

	var sent Stroke
	err := json.Unmarshal(m.lastFrame().Payload, &sent)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(sent.Points), 3)
	assert.Equal(t, sent.Points[2].X, 2.0)
	assert.Equal(t, *sent.Points[2].P, 0.7)
	assert.Equal(t, sent.Points[2].T == nil, true)

	remote, _ := m.peers["b"].stroke.Channel().Remote("a")
	assert.Equal(t, *remote, *a.stroke.LocalStroke())
}

func TestStrokeManager_UpdateStroke(t *testing.T) {
	m := newMesh("a", "b")
	a := m.peers["a"]
	a.stroke.SetStroke(sampleStroke())

	a.stroke.UpdateStroke([]geometry.Point{geometry.Pt(9, 9)})
	assert.Equal(t, a.stroke.LocalStroke().Points, []geometry.Point{geometry.Pt(9, 9)})
	assert.Equal(t, a.stroke.LocalStroke().Color, "#1e1e1e")

	// A stroke always carries a point list, possibly empty.
	a.stroke.UpdateStroke(nil)
	assert.Equal(t, len(a.stroke.LocalStroke().Points), 1)
	a.stroke.UpdateStroke([]geometry.Point{})
	assert.Equal(t, len(a.stroke.LocalStroke().Points), 0)
}

func TestStrokeSchema(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ok      bool
	}{
		{"valid", `{"id":"i","points":[{"x":1,"y":2,"t":3,"p":0.5}],"color":"red","width":2,"opacity":1,"startTime":0}`, true},
		{"empty points", `{"id":"i","points":[],"color":"red","width":2,"opacity":1,"startTime":0}`, true},
		{"missing points", `{"id":"i","color":"red","width":2,"opacity":1,"startTime":0}`, false},
		{"point with extra field", `{"id":"i","points":[{"x":1,"y":2,"z":3}],"color":"red","width":2,"opacity":1,"startTime":0}`, false},
		{"point with string pressure", `{"id":"i","points":[{"x":1,"y":2,"p":"hard"}],"color":"red","width":2,"opacity":1,"startTime":0}`, false},
		{"missing color", `{"id":"i","points":[],"width":2,"opacity":1,"startTime":0}`, false},
		{"empty color", `{"id":"i","points":[],"color":"","width":2,"opacity":1,"startTime":0}`, true},
		{"empty id", `{"id":"","points":[],"color":"red","width":2,"opacity":1,"startTime":0}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := StrokeSchema.Parse([]byte(tt.payload))
			assert.Equal(t, err == nil, tt.ok)
			assert.Equal(t, v != nil, tt.ok)
		})
	}
}

func TestConnectionDragManager(t *testing.T) {
	m := newMesh("a", "b")
	a := m.peers["a"]

	a.conn.MoveCursor(1, 1)
	assert.Equal(t, a.conn.LocalConnectionDrag() == nil, true)

	a.conn.SetConnectionDrag(ConnectionDrag{FromItemID: "n1", FromSide: geometry.SideBottom, CursorX: 0, CursorY: 0})
	a.conn.MoveCursor(30, 40)
	assert.Equal(t, *a.conn.LocalConnectionDrag(),
		ConnectionDrag{FromItemID: "n1", FromSide: geometry.SideBottom, CursorX: 30, CursorY: 40})

	a.conn.SetConnectionDrag(ConnectionDrag{FromItemID: "n2", FromSide: "diagonal"})
	assert.Equal(t, a.conn.LocalConnectionDrag().FromItemID, "n1")

	remotes := m.peers["b"].conn.RemoteConnectionDrags()
	assert.Equal(t, remotes[0].Value.CursorY, 40.0)

	a.conn.ClearConnectionDrag()
	assert.Equal(t, m.peers["b"].conn.RemoteConnectionDrags()[0].Value == nil, true)
}

func TestSelectionManager(t *testing.T) {
	m := newMesh("a", "b", "c")
	a, b := m.peers["a"], m.peers["b"]

	a.sel.SetSelection(Selection{
		{ID: "table-1", Kind: SelectItem},
		{ID: "row-3", Kind: SelectRow},
		{ID: "row-4", Kind: SelectRow},
	})

	assert.Equal(t, a.sel.LocalSelection(SelectRow), Selection{{ID: "row-3", Kind: SelectRow}, {ID: "row-4", Kind: SelectRow}})
	assert.Equal(t, a.sel.LocalSelection(SelectColumn), Selection{})

	rows := b.sel.RemoteSelections(SelectRow)
	assert.Equal(t, remoteIDs(rows), []string{"a", "c"})
	assert.Equal(t, *rows[0].Value, Selection{{ID: "row-3", Kind: SelectRow}, {ID: "row-4", Kind: SelectRow}})
	assert.Equal(t, rows[1].Value == nil, true)

	cols := b.sel.RemoteSelections(SelectColumn)
	assert.Equal(t, cols[0].Value == nil, true)

	a.sel.SetSelection(Selection{{ID: "x", Kind: "cell"}})
	assert.Equal(t, len(a.sel.LocalSelection(SelectItem)), 1)

	a.sel.SetSelection(nil)
	assert.Equal(t, string(m.lastFrame().Payload), "[]")
	assert.Equal(t, b.sel.RemoteSelections(SelectItem)[0].Value == nil, true)
}

func TestSelectionSchema(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ok      bool
	}{
		{"empty", `[]`, true},
		{"items", `[{"id":"a","type":"item"},{"id":"r","type":"row"}]`, true},
		{"object", `{"id":"a","type":"item"}`, false},
		{"unknown kind", `[{"id":"a","type":"cell"}]`, false},
		{"missing type", `[{"id":"a"}]`, false},
		{"extra field", `[{"id":"a","type":"item","color":"red"}]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectionSchema.Parse([]byte(tt.payload))
			assert.Equal(t, err == nil, tt.ok)
		})
	}
}
