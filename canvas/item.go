// Package canvas is a read-only view of the authoritative item tree and the
// flattener that resolves absolute positions for rendering.
package canvas

// Kind tags the content carried by an Item.
type Kind string

const (
	KindShape Kind = "shape"
	KindNote  Kind = "note"
	KindText  Kind = "text"
	KindTable Kind = "table"
	KindGroup Kind = "group"
)

// Item is a positioned entity. X and Y are relative to the parent group's
// origin, or to the canvas for top-level items. An Item with nil Content is
// incomplete and is skipped when flattening.
type Item struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Content  Content `json:"content,omitempty"`
}

// Content is the payload of an Item.
type Content interface {
	Kind() Kind
}

// Leaf is any non-group content.
type Leaf struct {
	Type Kind `json:"type"`
}

func (l Leaf) Kind() Kind { return l.Type }

// Group owns an ordered list of child items and optional grid layout.
type Group struct {
	Items []*Item `json:"items"`
	Grid  *Grid   `json:"grid,omitempty"`
}

func (g *Group) Kind() Kind { return KindGroup }

// AsGroup returns the item's group content, if it has any.
func (it *Item) AsGroup() (*Group, bool) {
	if it == nil {
		return nil, false
	}
	g, ok := it.Content.(*Group)
	return g, ok && g != nil
}

func (it *Item) hasContent() bool {
	if it == nil || it.Content == nil {
		return false
	}
	if g, ok := it.Content.(*Group); ok && g == nil {
		return false
	}
	return true
}

// Find walks the tree depth-first and returns the first item with the given id.
func Find(items []*Item, id string) (*Item, bool) {
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.ID == id {
			return it, true
		}
		if g, ok := it.AsGroup(); ok {
			if found, ok := Find(g.Items, id); ok {
				return found, true
			}
		}
	}
	return nil, false
}
