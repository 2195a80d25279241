package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"

	"collabcanvas/geometry"
	"collabcanvas/ink"
	"collabcanvas/presence"
)

// uiRequest is every message the UI can send. Op selects which fields
// apply.
type uiRequest struct {
	Op      string           `json:"op"`
	Channel string           `json:"channel,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
	Points  []geometry.Point `json:"points,omitempty"`
	X       *float64         `json:"x,omitempty"`
	Y       *float64         `json:"y,omitempty"`
	T       *float64         `json:"t,omitempty"`
	P       *float64         `json:"p,omitempty"`
	From    *geometry.Rect   `json:"from,omitempty"`
	To      *geometry.Rect   `json:"to,omitempty"`
	Stub    float64          `json:"stub,omitempty"`
	Color   string           `json:"color,omitempty"`
	Width   float64          `json:"width,omitempty"`
	Opacity float64          `json:"opacity,omitempty"`
}

type errorMessage struct {
	Op      string `json:"op"`
	Request string `json:"request"`
	Error   string `json:"error"`
}

type welcomeMessage struct {
	Op            string              `json:"op"`
	ParticipantID string              `json:"participantId"`
	Document      string              `json:"document"`
	Attendees     []presence.Attendee `json:"attendees"`
}

type remoteMessage struct {
	Op            string `json:"op"`
	Channel       string `json:"channel"`
	ParticipantID string `json:"participantId"`
	Value         any    `json:"value"`
}

type rosterMessage struct {
	Op        string              `json:"op"`
	Attendees []presence.Attendee `json:"attendees"`
}

type strokeMessage struct {
	Op     string           `json:"op"`
	ID     string           `json:"id"`
	Points []geometry.Point `json:"points,omitempty"`
}

type routeMessage struct {
	Op       string           `json:"op"`
	FromSide geometry.Side    `json:"fromSide"`
	ToSide   geometry.Side    `json:"toSide"`
	Path     []geometry.Point `json:"path"`
}

type itemsMessage struct {
	Op      string          `json:"op"`
	Entries json.RawMessage `json:"entries"`
}

var errBadRequest = errors.New("bad request")

const defaultStub = 20

// dispatch handles one UI message and returns the reply for the sender.
func (a *Agent) dispatch(msg []byte) []byte {
	op := gjson.GetBytes(msg, "op").String()
	reply, err := a.handle(op, msg)
	if err != nil {
		a.logger.Debug("UI request failed", slog.String("op", op), slog.Any("error", err))
		reply = errorMessage{Op: "error", Request: op, Error: err.Error()}
	}
	if reply == nil {
		return nil
	}
	out, err := json.Marshal(reply)
	if err != nil {
		a.logger.Warn("Failed to encode UI reply", slog.Any("error", err))
		return nil
	}
	return out
}

func (a *Agent) handle(op string, msg []byte) (any, error) {
	var req uiRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	switch op {
	case "publish":
		if req.Payload == nil {
			req.Payload = json.RawMessage("null")
		}
		return nil, a.session.PublishRaw(req.Channel, req.Payload)

	case "ink.begin":
		if req.Color == "" {
			return nil, fmt.Errorf("%w: ink.begin needs a color", errBadRequest)
		}
		id := ulid.Make().String()
		a.strokes.SetStroke(presence.Stroke{
			ID:        id,
			Points:    []geometry.Point{},
			Color:     req.Color,
			Width:     req.Width,
			Opacity:   req.Opacity,
			StartTime: float64(time.Now().UnixMilli()),
		})
		if a.strokes.LocalStroke() == nil || a.strokes.LocalStroke().ID != id {
			return nil, fmt.Errorf("%w: invalid stroke style", errBadRequest)
		}
		return strokeMessage{Op: "ink.begun", ID: id}, nil

	case "ink.point":
		if req.X == nil || req.Y == nil {
			return nil, fmt.Errorf("%w: ink.point needs x and y", errBadRequest)
		}
		if a.strokes.LocalStroke() == nil {
			return nil, fmt.Errorf("%w: no stroke in progress", errBadRequest)
		}
		a.strokes.AppendPoint(geometry.Point{X: *req.X, Y: *req.Y, T: req.T, P: req.P})
		return nil, nil

	case "ink.commit":
		return a.commitStroke(req.Points)

	case "ink.cancel":
		a.strokes.ClearStroke()
		return nil, nil

	case "route":
		if req.From == nil || req.To == nil {
			return nil, fmt.Errorf("%w: route needs from and to", errBadRequest)
		}
		stub := req.Stub
		if stub <= 0 {
			stub = defaultStub
		}
		fromSide, toSide := geometry.CalculateConnectionSides(*req.From, *req.To)
		return routeMessage{
			Op:       "route",
			FromSide: fromSide,
			ToSide:   toSide,
			Path:     geometry.OrthogonalPath(*req.From, fromSide, *req.To, toSide, stub),
		}, nil

	case "items":
		ctx, cancel := context.WithTimeout(context.Background(), a.httpClient.Timeout)
		defer cancel()
		entries, err := a.loadItems(ctx)
		if err != nil {
			return nil, err
		}
		return itemsMessage{Op: "items", Entries: entries}, nil
	}
	return nil, fmt.Errorf("%w: unknown op %q", errBadRequest, op)
}

// commitStroke ends the in-progress stroke and returns its smoothed points.
// Points sent with the request take precedence over the broadcast ones.
func (a *Agent) commitStroke(points []geometry.Point) (any, error) {
	cur := a.strokes.LocalStroke()
	if cur == nil && points == nil {
		return nil, fmt.Errorf("%w: no stroke in progress", errBadRequest)
	}
	id := ulid.Make().String()
	if cur != nil {
		id = cur.ID
		if points == nil {
			points = cur.Points
		}
	}
	a.strokes.ClearStroke()
	return strokeMessage{
		Op:     "ink.committed",
		ID:     id,
		Points: ink.SmoothAndSimplify(points, a.inkOpts),
	}, nil
}
