package canvas

// Alignment positions an item inside its grid cell.
type Alignment string

const (
	AlignStart  Alignment = "start"
	AlignCenter Alignment = "center"
	AlignEnd    Alignment = "end"
)

// Grid is a group's automatic layout configuration. When Enabled, child
// positions come from Slot and Adjust and stored offsets are ignored.
type Grid struct {
	Enabled    bool      `json:"enabled"`
	Columns    int       `json:"columns"`
	CellWidth  float64   `json:"cellWidth"`
	CellHeight float64   `json:"cellHeight"`
	Gap        float64   `json:"gap"`
	Padding    float64   `json:"padding"`
	Align      Alignment `json:"align"`
}

// Slot returns the top-left corner of the cell at index, relative to the
// group origin. Cells fill row by row.
func (g Grid) Slot(index int) (x, y float64) {
	cols := g.Columns
	if cols < 1 {
		cols = 1
	}
	col := index % cols
	row := index / cols
	x = g.Padding + float64(col)*(g.CellWidth+g.Gap)
	y = g.Padding + float64(row)*(g.CellHeight+g.Gap)
	return x, y
}

// Adjust returns the offset that aligns it within a cell. Items larger than
// the cell are pinned to the cell origin.
func (g Grid) Adjust(it *Item) (dx, dy float64) {
	freeX := max(0, g.CellWidth-it.Width)
	freeY := max(0, g.CellHeight-it.Height)
	switch g.Align {
	case AlignCenter:
		return freeX / 2, freeY / 2
	case AlignEnd:
		return freeX, freeY
	}
	return 0, 0
}
