package presence

import (
	"slices"

	"github.com/tidwall/gjson"
)

// ChannelSelection is the wire name of the selection channel.
const ChannelSelection = "selection"

// SelectionKind tags what a selected id refers to.
type SelectionKind string

const (
	SelectItem   SelectionKind = "item"
	SelectRow    SelectionKind = "row"
	SelectColumn SelectionKind = "column"
)

func (k SelectionKind) Valid() bool {
	return k == SelectItem || k == SelectRow || k == SelectColumn
}

// Selected is one selected entity.
type Selected struct {
	ID   string        `json:"id"`
	Kind SelectionKind `json:"type"`
}

// Selection is everything a participant has selected, across kinds.
type Selection []Selected

// Filter returns the entries of the given kind.
func (s Selection) Filter(kind SelectionKind) Selection {
	out := Selection{}
	for _, e := range s {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

var SelectionSchema = Schema[Selection]{
	Shape: func(r gjson.Result) error {
		if !r.IsArray() {
			return reject("selection: expected array")
		}
		return checkEach("selection", r, func(path string, el gjson.Result) error {
			return checkObject(path, el,
				required("id", kindString),
				required("type", kindString),
			)
		})
	},
	Validate: func(s *Selection) error {
		for _, e := range *s {
			if err := nonEmpty("selection.id", e.ID); err != nil {
				return err
			}
			if !e.Kind.Valid() {
				return reject("selection.type %q is not a selection kind", e.Kind)
			}
		}
		return nil
	},
}

// SelectionManager publishes the local selection. One channel carries all
// kinds; readers filter by kind.
type SelectionManager struct {
	ch *Channel[Selection]
}

func NewSelectionManager(s *Session) *SelectionManager {
	return &SelectionManager{ch: NewChannel(s, ChannelSelection, SelectionSchema)}
}

func (m *SelectionManager) SetSelection(s Selection) {
	c := slices.Clone(s)
	if c == nil {
		c = Selection{}
	}
	m.ch.Publish(&c)
}

func (m *SelectionManager) ClearSelection() { m.ch.Clear() }

// LocalSelection returns the local entries of the given kind.
func (m *SelectionManager) LocalSelection(kind SelectionKind) Selection {
	cur := m.ch.Local()
	if cur == nil {
		return Selection{}
	}
	return cur.Filter(kind)
}

// RemoteSelections lists connected peers' selections of the given kind. Peers
// with nothing of that kind selected have a nil Value.
func (m *SelectionManager) RemoteSelections(kind SelectionKind) []Remote[Selection] {
	all := m.ch.Remotes()
	out := make([]Remote[Selection], len(all))
	for i, r := range all {
		out[i].ParticipantID = r.ParticipantID
		if r.Value == nil {
			continue
		}
		if f := r.Value.Filter(kind); len(f) > 0 {
			out[i].Value = &f
		}
	}
	return out
}

func (m *SelectionManager) Channel() *Channel[Selection] { return m.ch }
