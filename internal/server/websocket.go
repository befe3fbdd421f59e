package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/meshweave/engine/pkg/api"
	"github.com/meshweave/engine/pkg/log"
)

// Client represents a WebSocket connection streaming one session's merged
// progress view. Because peers only ever communicate through replicated
// documents there is no push channel to subscribe to; the stream polls the
// merged view and forwards it whenever it changes
type Client struct {
	server    *Server
	conn      *websocket.Conn
	sessionID api.SessionID
	done      chan struct{}
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	progressPeriod = 2 * time.Second
	maxMessageSize = 512
	wsBufferSize   = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	sessionID := api.SessionID(c.Param("sessionID"))
	if _, _, err := s.engine.GetState(sessionID); err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusNotFound,
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	client := &Client{
		server:    s,
		conn:      conn,
		sessionID: sessionID,
		done:      make(chan struct{}),
	}
	s.registerWebSocket(client)

	go client.run()
}

// Close terminates the connection and its pump goroutines
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	_ = c.conn.Close()
}

func (c *Client) run() {
	defer func() {
		c.server.unregisterWebSocket(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	closed := make(chan struct{})
	go c.readUntilClosed(closed)

	pinger := time.NewTicker(pingPeriod)
	defer pinger.Stop()
	poller := time.NewTicker(progressPeriod)
	defer poller.Stop()

	// Send the initial view immediately; afterwards only changes go out
	var last []byte
	last = c.sendProgress(last)

	for {
		select {
		case <-c.done:
			return
		case <-closed:
			return
		case <-poller.C:
			last = c.sendProgress(last)
		case <-pinger.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readUntilClosed(closed chan struct{}) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			close(closed)
			return
		}
	}
}

func (c *Client) sendProgress(last []byte) []byte {
	ctx, cancel := c.contextWithDeadline()
	defer cancel()

	progress, err := c.server.engine.Aggregate(ctx, c.sessionID)
	if err != nil {
		slog.Warn("Progress aggregation failed",
			log.SessionID(c.sessionID),
			log.Error(err))
		return last
	}

	data, err := json.Marshal(progress)
	if err != nil || bytes.Equal(data, last) {
		return last
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("WebSocket write failed",
			log.Error(err))
		c.Close()
		return last
	}
	return data
}

func (c *Client) contextWithDeadline() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), writeWait)
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
