package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"collabcanvas/canvas"
)

// ItemLoader reads a document's authoritative item tree.
type ItemLoader interface {
	LoadItems(ctx context.Context, doc string) ([]*canvas.Item, error)
}

const itemsSchemaSQL = `
CREATE TABLE IF NOT EXISTS canvas_items (
	doc_id    TEXT NOT NULL,
	id        TEXT NOT NULL,
	parent_id TEXT,
	position  INTEGER NOT NULL DEFAULT 0,
	kind      TEXT NOT NULL,
	x         DOUBLE PRECISION NOT NULL DEFAULT 0,
	y         DOUBLE PRECISION NOT NULL DEFAULT 0,
	rotation  DOUBLE PRECISION NOT NULL DEFAULT 0,
	width     DOUBLE PRECISION NOT NULL DEFAULT 0,
	height    DOUBLE PRECISION NOT NULL DEFAULT 0,
	grid      JSONB,
	PRIMARY KEY (doc_id, id)
)`

const loadItemsSQL = `
SELECT id, parent_id, kind, x, y, rotation, width, height, grid
FROM canvas_items
WHERE doc_id = $1
ORDER BY position, id`

type pgItemStore struct {
	pool *pgxpool.Pool
}

func (s *pgItemStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, itemsSchemaSQL)
	return err
}

func (s *pgItemStore) LoadItems(ctx context.Context, doc string) ([]*canvas.Item, error) {
	rows, err := s.pool.Query(ctx, loadItemsSQL, doc)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[itemRow])
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return buildTree(recs)
}

// itemRow mirrors one canvas_items row, in select order.
type itemRow struct {
	ID       string
	ParentID *string
	Kind     string
	X        float64
	Y        float64
	Rotation float64
	Width    float64
	Height   float64
	Grid     []byte
}

// buildTree links rows into an item tree. Children keep row order. Rows of
// an unknown kind become items without content. Rows caught in a parent
// cycle are unreachable from the roots and drop out.
func buildTree(rows []itemRow) ([]*canvas.Item, error) {
	byID := make(map[string]*canvas.Item, len(rows))
	for _, r := range rows {
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate item %q", r.ID)
		}
		it := &canvas.Item{
			ID:       r.ID,
			X:        r.X,
			Y:        r.Y,
			Rotation: r.Rotation,
			Width:    r.Width,
			Height:   r.Height,
		}
		switch k := canvas.Kind(r.Kind); k {
		case canvas.KindGroup:
			g := &canvas.Group{}
			if len(r.Grid) > 0 && string(r.Grid) != "null" {
				var grid canvas.Grid
				if err := json.Unmarshal(r.Grid, &grid); err != nil {
					return nil, fmt.Errorf("item %q: decode grid: %w", r.ID, err)
				}
				g.Grid = &grid
			}
			it.Content = g
		case canvas.KindShape, canvas.KindNote, canvas.KindText, canvas.KindTable:
			it.Content = canvas.Leaf{Type: k}
		}
		byID[r.ID] = it
	}

	roots := []*canvas.Item{}
	for _, r := range rows {
		it := byID[r.ID]
		if r.ParentID == nil {
			roots = append(roots, it)
			continue
		}
		parent, ok := byID[*r.ParentID]
		if !ok {
			return nil, fmt.Errorf("item %q: unknown parent %q", r.ID, *r.ParentID)
		}
		g, ok := parent.AsGroup()
		if !ok {
			return nil, fmt.Errorf("item %q: parent %q is not a group", r.ID, *r.ParentID)
		}
		g.Items = append(g.Items, it)
	}
	return roots, nil
}

// entryDTO is the wire form of a flattened entry.
type entryDTO struct {
	ID               string      `json:"id"`
	Kind             canvas.Kind `json:"kind"`
	X                float64     `json:"x"`
	Y                float64     `json:"y"`
	Width            float64     `json:"width"`
	Height           float64     `json:"height"`
	Rotation         float64     `json:"rotation"`
	ParentID         string      `json:"parentId,omitempty"`
	IsGroupContainer bool        `json:"isGroupContainer,omitempty"`
}

func flattenItems(items []*canvas.Item) []entryDTO {
	entries := canvas.Flatten(items)
	out := make([]entryDTO, len(entries))
	for i, e := range entries {
		out[i] = entryDTO{
			ID:               e.Item.ID,
			Kind:             e.Item.Content.Kind(),
			X:                e.AbsoluteX,
			Y:                e.AbsoluteY,
			Width:            e.Item.Width,
			Height:           e.Item.Height,
			Rotation:         e.Item.Rotation,
			IsGroupContainer: e.IsGroupContainer,
		}
		if e.Parent != nil {
			out[i].ParentID = e.Parent.ID
		}
	}
	return out
}
