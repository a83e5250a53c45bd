package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/eventbus"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

const (
	feedBuffer       = 32
	feedWriteTimeout = 5 * time.Second
)

// Feed fans bus events out to websocket clients. Admins receive every
// event of their tenant; agents receive only events about their own
// submissions.
type Feed struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
	closed  bool
	logger  *zap.Logger
}

type feedClient struct {
	sess *types.Session
	ch   chan eventbus.Event
}

// NewFeed returns an empty feed.
func NewFeed(logger *zap.Logger) *Feed {
	return &Feed{clients: make(map[*feedClient]struct{}), logger: logger}
}

// Publish is an eventbus.Handler. Slow clients drop events rather than
// stall the bus.
func (f *Feed) Publish(_ context.Context, evt eventbus.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		if !visible(c.sess, evt) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			f.logger.Debug("feed client lagging, event dropped", zap.String("user_id", c.sess.UserID))
		}
	}
	return nil
}

func visible(sess *types.Session, evt eventbus.Event) bool {
	if evt.TenantID != sess.TenantID {
		return false
	}
	return sess.IsAdmin() || evt.AgentID == sess.UserID
}

func (f *Feed) add(sess *types.Session) *feedClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &feedClient{sess: sess, ch: make(chan eventbus.Event, feedBuffer)}
	if f.closed {
		close(c.ch)
		return c
	}
	f.clients[c] = struct{}{}
	return c
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.ch)
	}
}

// Len returns the number of connected clients.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every client.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for c := range f.clients {
		delete(f.clients, c)
		close(c.ch)
	}
}

// handleFeed upgrades to a websocket and streams events as JSON messages
// until either side closes.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("feed: websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	client := s.feed.add(sess)
	defer s.feed.remove(client)

	// The feed is server to client only; CloseRead handles control frames
	// and cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-client.ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
			err := wsjson.Write(wctx, conn, evt)
			cancel()
			if err != nil {
				s.logger.Debug("feed: write failed", zap.Error(err))
				return
			}
		}
	}
}
