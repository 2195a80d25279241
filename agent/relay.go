package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"collabcanvas/presence"
)

const writeWait = 5 * time.Second

var errNotConnected = errors.New("relay not connected")

// relayClient keeps one socket to the relay open, redialing with exponential
// backoff. It is the presence transport of the agent's session.
type relayClient struct {
	logger *slog.Logger
	// resolve returns the socket URL to dial and the relay's base URL.
	resolve      func(ctx context.Context) (socket, base string, err error)
	newBackOff   func() backoff.BackOff
	onMessage    func([]byte)
	onConnect    func()
	onDisconnect func()

	mu   sync.Mutex
	conn *websocket.Conn
	base string
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Send implements presence.Transport. Frames sent while disconnected are
// lost; the session resyncs after the next connect.
func (c *relayClient) Send(f presence.Frame) error {
	msg, err := presence.EncodeFrame(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Base returns the base URL of the last relay connected to.
func (c *relayClient) Base() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

// Run connects and reads until ctx is done.
func (c *relayClient) Run(ctx context.Context) {
	for {
		conn, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("Giving up on relay", slog.Any("error", err))
			}
			return
		}
		c.logger.Info("Connected to relay", slog.String("url", conn.RemoteAddr().String()))
		if c.onConnect != nil {
			c.onConnect()
		}
		c.read(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Lost relay connection, redialing")
	}
}

func (c *relayClient) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	op := func() error {
		socket, base, err := c.resolve(ctx)
		if err != nil {
			return err
		}
		ws, resp, err := websocket.DefaultDialer.DialContext(ctx, socket, nil)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = ws
		c.mu.Lock()
		c.conn, c.base = ws, base
		c.mu.Unlock()
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn("Relay unavailable, retrying", slog.Duration("in", next), slog.Any("error", err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *relayClient) read(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("Relay read ended", slog.Any("error", err))
			return
		}
		c.onMessage(msg)
	}
}
