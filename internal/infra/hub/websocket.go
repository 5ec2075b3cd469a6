package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var errConnClosed = errors.New("websocket connection closed")

// wsConn adapts a gorilla connection to Conn. gorilla allows one concurrent
// writer, so data frames and pings share writeMu.
type wsConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws, done: make(chan struct{})}
}

func (c *wsConn) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) ping(timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// WSHandler upgrades HTTP requests and keeps each socket subscribed to the Hub
// until the peer goes away.
type WSHandler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	log          *zerolog.Logger
}

func NewWSHandler(h *Hub, pingInterval, writeTimeout time.Duration, logger *zerolog.Logger) *WSHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WSHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		log:          logger,
	}
}

func (s *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := newWSConn(ws)
	s.hub.Subscribe(conn)
	defer func() {
		s.hub.Unsubscribe(conn)
		_ = conn.Close()
	}()

	readWait := 2 * s.pingInterval
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readWait))
	})

	go s.keepAlive(conn)

	// Inbound frames carry no meaning; reading only detects disconnects and
	// services control frames.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))
	}
}

func (s *WSHandler) keepAlive(conn *wsConn) {
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-conn.done:
			return
		case <-t.C:
			if err := conn.ping(s.writeTimeout); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
