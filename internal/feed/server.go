package feed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Identify resolves the caller of a websocket request
type Identify func(r *http.Request) (uuid.UUID, error)

// ServerOptions tunes websocket connections
type ServerOptions struct {
	SendBuffer   int
	PingInterval time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// Server exposes the hub over websockets
type Server struct {
	hub      *Hub
	policy   *Policy
	identify Identify
	upgrader websocket.Upgrader
	opts     ServerOptions
	metrics  *Metrics
	logger   *zap.Logger
}

// NewServer creates the realtime websocket endpoint
func NewServer(hub *Hub, policy *Policy, identify Identify, metrics *Metrics, logger *zap.Logger, opts ServerOptions) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &Server{
		hub:      hub,
		policy:   policy,
		identify: identify,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}
}

type conn struct {
	ws        *websocket.Conn
	userID    uuid.UUID
	send      chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once
	onSlow    func()
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue never blocks; a full queue closes the connection
func (c *conn) enqueue(msg ServerMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.onSlow()
		c.close()
		// Unblocks a writer stuck on a full socket and the reader loop.
		c.ws.Close()
		return false
	}
}

// ServeHTTP handles GET /realtime/v1/websocket
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identify(r)
	if err != nil {
		response.Unauthorized(w, "Invalid or missing access token")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &conn{
		ws:     ws,
		userID: userID,
		send:   make(chan ServerMessage, s.opts.SendBuffer),
		done:   make(chan struct{}),
	}
	c.onSlow = func() {
		s.metrics.slowConsumer()
		s.logger.Warn("closing slow realtime consumer", zap.Stringer("user_id", userID))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(c)
	}()

	subs := s.readLoop(r.Context(), c)

	for id := range subs {
		s.hub.Unsubscribe(id)
	}
	c.close()
	wg.Wait()
}

func (s *Server) readLoop(ctx context.Context, c *conn) map[string]struct{} {
	subs := make(map[string]struct{})
	pongWait := 2 * s.opts.PingInterval

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("realtime read error", zap.Error(err))
			}
			return subs
		}

		switch msg.Type {
		case MsgSubscribe:
			key, err := msg.Key()
			if err != nil {
				c.enqueue(errorMessage(msg.Ref, response.CodeBadRequest, err.Error()))
				continue
			}
			if err := s.policy.Authorize(ctx, c.userID, key); err != nil {
				code := response.CodeInternal
				if errors.Is(err, ErrForbidden) {
					code = response.CodeForbidden
				}
				c.enqueue(errorMessage(msg.Ref, code, err.Error()))
				continue
			}
			id, err := s.hub.Subscribe(key, func(subID string, ev Event) {
				ev = s.policy.Apply(ev)
				c.enqueue(ServerMessage{Type: MsgEvent, ID: subID, Event: &ev})
			})
			if err != nil {
				c.enqueue(errorMessage(msg.Ref, response.CodeBadRequest, err.Error()))
				continue
			}
			subs[id] = struct{}{}
			c.enqueue(ServerMessage{Type: MsgSubscribed, Ref: msg.Ref, ID: id})

		case MsgUnsubscribe:
			if _, ok := subs[msg.ID]; ok {
				s.hub.Unsubscribe(msg.ID)
				delete(subs, msg.ID)
			}
			c.enqueue(ServerMessage{Type: MsgUnsubscribed, Ref: msg.Ref, ID: msg.ID})

		default:
			c.enqueue(errorMessage(msg.Ref, response.CodeBadRequest, "unknown message type"))
		}
	}
}

func (s *Server) writeLoop(c *conn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func errorMessage(ref, code, message string) ServerMessage {
	return ServerMessage{Type: MsgError, Ref: ref, Error: &response.APIError{Code: code, Message: message}}
}
