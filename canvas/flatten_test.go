package canvas

import (
	"reflect"
	"testing"

	"github.com/go-playground/assert/v2"
)

func leaf(id string, x, y, w, h float64) *Item {
	return &Item{ID: id, X: x, Y: y, Width: w, Height: h, Content: Leaf{Type: KindShape}}
}

func group(id string, x, y float64, grid *Grid, children ...*Item) *Item {
	return &Item{ID: id, X: x, Y: y, Content: &Group{Items: children, Grid: grid}}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Item.ID
	}
	return out
}

func TestFlatten_TopLevel(t *testing.T) {
	items := []*Item{leaf("a", 10, 20, 5, 5), leaf("b", -3, 4, 5, 5)}
	entries := Flatten(items)

	assert.Equal(t, len(entries), 2)
	assert.Equal(t, entries[0].AbsoluteX, 10.0)
	assert.Equal(t, entries[0].AbsoluteY, 20.0)
	assert.Equal(t, entries[1].AbsoluteX, -3.0)
	assert.Equal(t, entries[0].Parent == nil, true)
	assert.Equal(t, entries[0].IsGroupContainer, false)
}

func TestFlatten_NestedGroups(t *testing.T) {
	inner := group("inner", 5, 5, nil, leaf("c", 1, 2, 1, 1))
	outer := group("outer", 100, 200, nil, leaf("b", 10, 10, 1, 1), inner)
	entries := Flatten([]*Item{leaf("a", 0, 0, 1, 1), outer})

	assert.Equal(t, ids(entries), []string{"a", "outer", "b", "inner", "c"})

	byID := map[string]Entry{}
	for _, e := range entries {
		byID[e.Item.ID] = e
	}
	assert.Equal(t, byID["outer"].IsGroupContainer, true)
	assert.Equal(t, byID["inner"].IsGroupContainer, true)
	assert.Equal(t, byID["b"].AbsoluteX, 110.0)
	assert.Equal(t, byID["b"].AbsoluteY, 210.0)
	assert.Equal(t, byID["inner"].AbsoluteX, 105.0)
	assert.Equal(t, byID["c"].AbsoluteX, 106.0)
	assert.Equal(t, byID["c"].AbsoluteY, 207.0)
	assert.Equal(t, byID["c"].Parent == inner, true)
	assert.Equal(t, byID["b"].Parent == outer, true)
}

func TestFlatten_GridOverridesStoredOffset(t *testing.T) {
	grid := &Grid{
		Enabled:    true,
		Columns:    2,
		CellWidth:  100,
		CellHeight: 50,
		Gap:        10,
		Padding:    5,
		Align:      AlignCenter,
	}
	g := group("g", 1000, 2000, grid,
		leaf("c0", 999, 999, 60, 30),
		leaf("c1", -50, 7, 100, 50),
		leaf("c2", 3, 3, 20, 10),
	)
	entries := Flatten([]*Item{g})
	assert.Equal(t, ids(entries), []string{"g", "c0", "c1", "c2"})

	for i, e := range entries[1:] {
		sx, sy := grid.Slot(i)
		ax, ay := grid.Adjust(e.Item)
		assert.Equal(t, e.AbsoluteX, 1000+sx+ax)
		assert.Equal(t, e.AbsoluteY, 2000+sy+ay)
	}

	// c0: slot (5, 5), centered 60x30 in 100x50.
	assert.Equal(t, entries[1].AbsoluteX, 1000.0+5+20)
	assert.Equal(t, entries[1].AbsoluteY, 2000.0+5+10)
	// c2 wraps to the second row.
	assert.Equal(t, entries[3].AbsoluteX, 1000.0+5+40)
	assert.Equal(t, entries[3].AbsoluteY, 2000.0+5+60+20)
}

func TestFlatten_DisabledGridUsesOffsets(t *testing.T) {
	g := group("g", 10, 10, &Grid{Enabled: false, Columns: 3, CellWidth: 50, CellHeight: 50},
		leaf("c", 7, 8, 1, 1))
	entries := Flatten([]*Item{g})
	assert.Equal(t, entries[1].AbsoluteX, 17.0)
	assert.Equal(t, entries[1].AbsoluteY, 18.0)
}

func TestFlatten_SkipsMissingContent(t *testing.T) {
	var nilGroup *Group
	items := []*Item{
		nil,
		{ID: "empty"},
		{ID: "nil-group", Content: nilGroup},
		group("g", 0, 0, &Grid{Enabled: true, Columns: 1, CellWidth: 10, CellHeight: 10},
			nil,
			&Item{ID: "hole"},
			leaf("first", 0, 0, 10, 10),
		),
	}
	entries := Flatten(items)
	assert.Equal(t, ids(entries), []string{"g", "first"})
	// Skipped children do not take a grid slot.
	assert.Equal(t, entries[1].AbsoluteY, 0.0)
}

func TestFlatten_Idempotent(t *testing.T) {
	items := []*Item{
		leaf("a", 1, 2, 3, 4),
		group("g", 10, 10, &Grid{Enabled: true, Columns: 2, CellWidth: 20, CellHeight: 20, Align: AlignEnd},
			leaf("b", 0, 0, 5, 5),
			group("h", 0, 0, nil, leaf("c", 1, 1, 1, 1)),
		),
	}
	first := Flatten(items)
	second := Flatten(items)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Flatten is not idempotent:\n%v\n%v", first, second)
	}
}

func TestGrid_Adjust(t *testing.T) {
	it := &Item{Width: 40, Height: 10}
	tests := []struct {
		align  Alignment
		dx, dy float64
	}{
		{AlignStart, 0, 0},
		{"", 0, 0},
		{AlignCenter, 30, 15},
		{AlignEnd, 60, 30},
	}
	for _, tt := range tests {
		g := Grid{CellWidth: 100, CellHeight: 40, Align: tt.align}
		dx, dy := g.Adjust(it)
		assert.Equal(t, dx, tt.dx)
		assert.Equal(t, dy, tt.dy)
	}

	big := &Item{Width: 500, Height: 500}
	dx, dy := Grid{CellWidth: 100, CellHeight: 40, Align: AlignCenter}.Adjust(big)
	assert.Equal(t, dx, 0.0)
	assert.Equal(t, dy, 0.0)
}

func TestGrid_SlotZeroColumns(t *testing.T) {
	g := Grid{CellWidth: 10, CellHeight: 10, Gap: 2}
	x, y := g.Slot(3)
	assert.Equal(t, x, 0.0)
	assert.Equal(t, y, 36.0)
}

func TestFind(t *testing.T) {
	items := []*Item{group("g", 0, 0, nil, group("h", 0, 0, nil, leaf("deep", 0, 0, 1, 1)))}
	it, ok := Find(items, "deep")
	assert.Equal(t, ok, true)
	assert.Equal(t, it.ID, "deep")
	_, ok = Find(items, "missing")
	assert.Equal(t, ok, false)
}
