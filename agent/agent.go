package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"collabcanvas/config"
	"collabcanvas/ink"
	"collabcanvas/presence"
)

// Agent is the client-side runtime for one participant in one document. It
// owns the presence session, bridges it to the relay and serves the UI.
type Agent struct {
	logger        *slog.Logger
	document      string
	participantID string
	inkOpts       ink.Options
	cache         *Cache
	httpClient    *http.Client

	roster   *presence.Roster
	session  *presence.Session
	drags    *presence.DragManager
	strokes  *presence.StrokeManager
	conns    *presence.ConnectionDragManager
	selected *presence.SelectionManager

	hub   *Hub
	relay *relayClient
}

func newAgent(logger *slog.Logger, cfg *config.Config, cache *Cache, participantID string) *Agent {
	a := &Agent{
		logger:        logger,
		document:      cfg.Agent.Document,
		participantID: participantID,
		inkOpts:       cfg.InkOptions(),
		cache:         cache,
		httpClient:    &http.Client{Timeout: cfg.Discovery.Timeout},
		roster:        presence.NewRoster(),
		hub:           newHub(logger.With(slog.String("component", "ui"))),
	}
	a.relay = &relayClient{
		logger:     logger.With(slog.String("component", "relay")),
		newBackOff: defaultBackOff,
		resolve: func(ctx context.Context) (string, string, error) {
			base, err := discoverRelay(ctx, cfg)
			if err != nil {
				return "", "", err
			}
			return socketURL(base, a.document, a.participantID), base, nil
		},
		onMessage:    a.handleRelayMessage,
		onConnect:    func() { a.session.Resync() },
		onDisconnect: a.dropPeers,
	}

	a.roster.Set(participantID, presence.StatusConnected)
	a.session = presence.NewSession(participantID, a.roster,
		presence.WithLogger(logger),
		presence.WithTransport(a.relay),
	)
	a.drags = presence.NewDragManager(a.session)
	a.strokes = presence.NewStrokeManager(a.session)
	a.conns = presence.NewConnectionDragManager(a.session)
	a.selected = presence.NewSelectionManager(a.session)

	a.session.OnRemoteChange(a.pushRemote)
	a.roster.OnChange(func(presence.Attendee) { a.pushRoster() })
	a.hub.onMessage = a.dispatch
	a.hub.onJoin = a.welcome
	return a
}

func (a *Agent) handleRelayMessage(data []byte) {
	m, err := presence.DecodeMessage(data)
	if err != nil {
		a.logger.Debug("Dropped relay message", slog.Any("error", err))
		return
	}
	switch m.Type {
	case presence.MessageRoster:
		// The relay may not list us yet while our own join is in flight.
		attendees := m.Attendees
		if !slices.ContainsFunc(attendees, func(x presence.Attendee) bool { return x.ID == a.participantID }) {
			attendees = append(attendees, presence.Attendee{ID: a.participantID, Status: presence.StatusConnected})
		}
		a.roster.Replace(attendees)
	case presence.MessagePresence:
		if err := a.session.Deliver(m.Frame); err != nil {
			a.logger.Debug("Dropped presence frame",
				slog.String("channel", m.Frame.Channel),
				slog.String("from", m.Frame.ParticipantID),
				slog.Any("error", err))
		}
	}
}

// dropPeers marks everyone else disconnected while the relay is away.
func (a *Agent) dropPeers() {
	a.roster.Replace([]presence.Attendee{{ID: a.participantID, Status: presence.StatusConnected}})
}

// remoteValue returns a peer's current value on the named channel.
func (a *Agent) remoteValue(channel, participantID string) any {
	switch channel {
	case presence.ChannelDrag:
		v, _ := a.drags.Channel().Remote(participantID)
		return v
	case presence.ChannelStroke:
		v, _ := a.strokes.Channel().Remote(participantID)
		return v
	case presence.ChannelConnection:
		v, _ := a.conns.Channel().Remote(participantID)
		return v
	case presence.ChannelSelection:
		v, _ := a.selected.Channel().Remote(participantID)
		return v
	}
	return nil
}

func (a *Agent) pushRemote(channel, participantID string) {
	a.push(remoteMessage{
		Op:            "remote",
		Channel:       channel,
		ParticipantID: participantID,
		Value:         a.remoteValue(channel, participantID),
	})
}

func (a *Agent) pushRoster() {
	a.push(rosterMessage{Op: "roster", Attendees: a.roster.Attendees()})
}

func (a *Agent) push(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("Failed to encode UI message", slog.Any("error", err))
		return
	}
	a.hub.Broadcast(msg)
}

func (a *Agent) welcome() []byte {
	msg, _ := json.Marshal(welcomeMessage{
		Op:            "welcome",
		ParticipantID: a.participantID,
		Document:      a.document,
		Attendees:     a.roster.Attendees(),
	})
	return msg
}

// loadItems fetches the flattened item list from the relay and caches it.
// When the relay is unreachable the cached snapshot is returned instead.
func (a *Agent) loadItems(ctx context.Context) (json.RawMessage, error) {
	data, err := a.fetchItems(ctx)
	if err == nil {
		if err := a.cache.SaveItems(a.document, data); err != nil {
			a.logger.Warn("Failed to cache items", slog.Any("error", err))
		}
		return data, nil
	}
	a.logger.Warn("Falling back to cached items", slog.Any("error", err))
	return a.cache.LoadItems(a.document)
}

func (a *Agent) fetchItems(ctx context.Context) (json.RawMessage, error) {
	base := a.relay.Base()
	if base == "" {
		return nil, errNotConnected
	}
	endpoint := httpBase(base) + "/docs/" + url.PathEscape(a.document) + "/items?participant=" + url.QueryEscape(a.participantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("relay returned invalid json")
	}
	return data, nil
}
