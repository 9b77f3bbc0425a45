package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/livestate"
	"github.com/fkhayef/studysync/pkg/response"
)

// ErrRealtimeClosed is returned once the realtime connection is closed
var ErrRealtimeClosed = errors.New("realtime connection closed")

// Realtime multiplexes change-feed subscriptions over one websocket. It
// implements livestate.Feed. The connection is dialed on first use and
// redialed after a drop; subscriptions of a dropped connection end.
type Realtime struct {
	client *Client
	dialer *websocket.Dialer
	logger *zap.Logger

	mu      sync.Mutex
	conn    *realtimeConn
	closed  bool
	nextRef int
}

type realtimeConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	readers sync.WaitGroup

	mu      sync.Mutex
	subs    map[string]*realtimeSub
	pending map[string]chan feed.ServerMessage
}

type realtimeSub struct {
	id   string
	conn *realtimeConn

	mu      sync.Mutex
	deliver func(feed.Event)
	closed  bool
	done    chan struct{}
	once    sync.Once
}

// Realtime returns a change-feed connection authenticated as the current
// session.
func (c *Client) Realtime() *Realtime {
	return &Realtime{client: c, dialer: websocket.DefaultDialer, logger: c.logger}
}

func (r *Realtime) url() string {
	u := r.client.baseURL + "/realtime/v1/websocket"
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

func (r *Realtime) connect(ctx context.Context) (*realtimeConn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRealtimeClosed
	}
	if r.conn != nil {
		select {
		case <-r.conn.done:
		default:
			return r.conn, nil
		}
	}

	header := http.Header{}
	if token := r.client.AccessToken(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, resp, err := r.dialer.DialContext(ctx, r.url(), header)
	if err != nil {
		if resp != nil {
			return nil, &Error{Status: resp.StatusCode, Code: "REALTIME_UNAVAILABLE", Message: err.Error()}
		}
		return nil, fmt.Errorf("failed to connect to realtime: %w", err)
	}

	conn := &realtimeConn{
		ws:      ws,
		done:    make(chan struct{}),
		subs:    make(map[string]*realtimeSub),
		pending: make(map[string]chan feed.ServerMessage),
	}
	conn.readers.Add(1)
	go r.read(conn)
	r.conn = conn
	return conn, nil
}

func (r *Realtime) read(c *realtimeConn) {
	defer c.readers.Done()
	defer c.shutdown()
	for {
		var msg feed.ServerMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Warn("realtime connection lost", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case feed.MsgEvent:
			if msg.Event == nil {
				continue
			}
			c.mu.Lock()
			sub := c.subs[msg.ID]
			c.mu.Unlock()
			if sub != nil {
				sub.dispatch(*msg.Event)
			}
		case feed.MsgSubscribed, feed.MsgUnsubscribed, feed.MsgError:
			c.mu.Lock()
			reply, ok := c.pending[msg.Ref]
			delete(c.pending, msg.Ref)
			c.mu.Unlock()
			if ok {
				reply <- msg
			}
		}
	}
}

// shutdown ends every subscription of a dead connection
func (c *realtimeConn) shutdown() {
	c.mu.Lock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	subs := c.subs
	c.subs = make(map[string]*realtimeSub)
	c.mu.Unlock()

	c.ws.Close()
	for _, sub := range subs {
		sub.end()
	}
}

func (c *realtimeConn) write(msg feed.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

// Subscribe opens a subscription for key. deliver is called sequentially,
// in delivery order, from the connection's reader.
func (r *Realtime) Subscribe(ctx context.Context, key feed.Key, deliver func(feed.Event)) (livestate.Subscription, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.nextRef++
	ref := strconv.Itoa(r.nextRef)
	r.mu.Unlock()

	reply := make(chan feed.ServerMessage, 1)
	conn.mu.Lock()
	conn.pending[ref] = reply
	conn.mu.Unlock()

	err = conn.write(feed.ClientMessage{
		Type:   feed.MsgSubscribe,
		Ref:    ref,
		Table:  key.Table,
		Event:  key.Event,
		Filter: key.Filter.String(),
	})
	if err != nil {
		conn.forget(ref)
		return nil, fmt.Errorf("failed to send subscribe: %w", err)
	}

	select {
	case <-ctx.Done():
		conn.forget(ref)
		return nil, ctx.Err()
	case <-conn.done:
		return nil, ErrRealtimeClosed
	case msg := <-reply:
		if msg.Type == feed.MsgError {
			apiErr := &Error{Status: http.StatusBadRequest, Code: "REALTIME_ERROR", Message: "subscribe rejected"}
			if msg.Error != nil {
				apiErr.Code, apiErr.Message = msg.Error.Code, msg.Error.Message
				if msg.Error.Code == response.CodeForbidden {
					apiErr.Status = http.StatusForbidden
				}
			}
			return nil, apiErr
		}
		sub := &realtimeSub{id: msg.ID, conn: conn, deliver: deliver, done: make(chan struct{})}
		conn.mu.Lock()
		select {
		case <-conn.done:
			conn.mu.Unlock()
			return nil, ErrRealtimeClosed
		default:
		}
		conn.subs[sub.id] = sub
		conn.mu.Unlock()
		return sub, nil
	}
}

func (c *realtimeConn) forget(ref string) {
	c.mu.Lock()
	delete(c.pending, ref)
	c.mu.Unlock()
}

// Close ends the connection and every subscription on it
func (r *Realtime) Close() error {
	r.mu.Lock()
	r.closed = true
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.writeMu.Lock()
	_ = conn.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.writeMu.Unlock()
	conn.ws.Close()
	conn.readers.Wait()
	return nil
}

func (s *realtimeSub) dispatch(ev feed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.deliver(ev)
	}
}

func (s *realtimeSub) end() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}

// Close unsubscribes. No event is delivered after Close returns.
func (s *realtimeSub) Close() error {
	s.conn.mu.Lock()
	_, live := s.conn.subs[s.id]
	delete(s.conn.subs, s.id)
	s.conn.mu.Unlock()

	s.end()
	if !live {
		return nil
	}
	err := s.conn.write(feed.ClientMessage{Type: feed.MsgUnsubscribe, ID: s.id})
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		select {
		case <-s.conn.done:
			return nil
		default:
		}
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

func (s *realtimeSub) Done() <-chan struct{} { return s.done }
