package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"collabcanvas/presence"
)

// writeWait bounds how long a stalled client can hold up the document's bus.
const writeWait = 5 * time.Second

var (
	errMalformedFrame = errors.New("malformed frame")
	errNotPresence    = errors.New("not a presence frame")
	errImpersonation  = errors.New("frame participant does not match connection")
)

// handleConnections relays presence frames between every socket open on the
// same document. Only envelopes are checked here; payloads are validated by
// the receiving sessions.
func (a *App) handleConnections(w http.ResponseWriter, r *http.Request) {
	doc := mux.Vars(r)["doc"]
	participantID, err := a.auth.identify(r)
	if err != nil {
		a.logger.Warn("Rejected connection", slog.String("doc", doc), slog.Any("error", err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("Failed to upgrade connection", slog.Any("error", err))
		return
	}
	defer ws.Close()
	a.wg.Add(1)
	defer a.wg.Done()

	connLogger := a.logger.With(
		slog.String("doc", doc),
		slog.String("participantID", participantID),
		slog.String("connID", uuid.NewString()),
	)
	connLogger.Info("New connection")

	ctx := a.ctx
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	sub, err := a.bus.Subscribe(ctx, doc)
	if err != nil {
		connLogger.Error("Failed to subscribe to document", slog.Any("error", err))
		return
	}
	defer sub.Close()

	if err := a.roster.Join(ctx, doc, participantID); err != nil {
		connLogger.Error("Failed to join roster", slog.Any("error", err))
		return
	}
	defer func() {
		leaveCtx := context.WithoutCancel(ctx)
		if err := a.roster.Leave(leaveCtx, doc, participantID); err != nil {
			connLogger.Error("Failed to leave roster", slog.Any("error", err))
		}
		a.publishRoster(leaveCtx, doc, connLogger)
		connLogger.Info("Connection closed")
	}()

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for msg := range sub.Messages() {
			if !shouldForward(msg, participantID) {
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				connLogger.Debug("Error writing message to client", slog.Any("error", err))
				ws.Close()
				return
			}
		}
	}()
	a.publishRoster(ctx, doc, connLogger)

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			connLogger.Debug("Client disconnected", slog.Any("error", err))
			break
		}
		if err := checkFrame(msg, participantID); err != nil {
			connLogger.Debug("Dropped frame from client", slog.Any("error", err))
			continue
		}
		if err := a.bus.Publish(ctx, doc, msg); err != nil {
			connLogger.Warn("Error publishing frame", slog.Any("error", err))
		}
	}
	sub.Close()
	<-forwarded
}

func (a *App) publishRoster(ctx context.Context, doc string, logger *slog.Logger) {
	attendees, err := a.roster.List(ctx, doc)
	if err != nil {
		logger.Error("Failed to list roster", slog.Any("error", err))
		return
	}
	msg, err := presence.EncodeRoster(attendees)
	if err != nil {
		logger.Error("Failed to encode roster", slog.Any("error", err))
		return
	}
	if err := a.bus.Publish(ctx, doc, msg); err != nil {
		logger.Warn("Error publishing roster", slog.Any("error", err))
	}
}

// checkFrame verifies the envelope of a presence frame sent by
// participantID. Payload contents are left to the receiving sessions.
func checkFrame(data []byte, participantID string) error {
	if !gjson.ValidBytes(data) {
		return errMalformedFrame
	}
	r := gjson.ParseBytes(data)
	if r.Get("type").String() != presence.MessagePresence {
		return errNotPresence
	}
	if ch := r.Get("channel"); ch.Type != gjson.String || ch.Str == "" {
		return errMalformedFrame
	}
	if p := r.Get("participantId"); p.Type != gjson.String || p.Str != participantID {
		return errImpersonation
	}
	if seq := r.Get("seq"); seq.Type != gjson.Number || seq.Num < 0 || seq.Num != math.Trunc(seq.Num) {
		return errMalformedFrame
	}
	payload := r.Get("payload")
	if !payload.Exists() || !(payload.IsObject() || payload.IsArray() || payload.Type == gjson.Null) {
		return errMalformedFrame
	}
	return nil
}

// shouldForward drops a participant's own presence frames on the way back.
func shouldForward(msg []byte, participantID string) bool {
	r := gjson.GetManyBytes(msg, "type", "participantId")
	return r[0].String() != presence.MessagePresence || r[1].String() != participantID
}
