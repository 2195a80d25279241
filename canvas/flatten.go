package canvas

// Entry is one render-ready item with its resolved canvas position.
type Entry struct {
	Item      *Item
	AbsoluteX float64
	AbsoluteY float64
	// Parent is the enclosing group item, nil at the top level.
	Parent *Item
	// IsGroupContainer marks the entry emitted for a group itself. It is used
	// for selection chrome only and carries no renderable content.
	IsGroupContainer bool
}

// Flatten resolves absolute positions for every item in the tree, depth
// first and in collection order. A group is emitted as a container entry
// before its children. Items without content are skipped.
//
// The tree must be acyclic.
func Flatten(items []*Item) []Entry {
	var out []Entry
	flatten(items, nil, 0, 0, &out)
	return out
}

func flatten(items []*Item, parent *Item, originX, originY float64, out *[]Entry) {
	var grid *Grid
	if g, ok := parent.AsGroup(); ok && g.Grid != nil && g.Grid.Enabled {
		grid = g.Grid
	}

	slot := 0
	for _, it := range items {
		if !it.hasContent() {
			continue
		}

		var x, y float64
		if grid != nil {
			sx, sy := grid.Slot(slot)
			ax, ay := grid.Adjust(it)
			x, y = originX+sx+ax, originY+sy+ay
		} else {
			x, y = originX+it.X, originY+it.Y
		}
		slot++

		g, isGroup := it.AsGroup()
		*out = append(*out, Entry{
			Item:             it,
			AbsoluteX:        x,
			AbsoluteY:        y,
			Parent:           parent,
			IsGroupContainer: isGroup,
		})
		if isGroup {
			flatten(g.Items, it, x, y, out)
		}
	}
}
