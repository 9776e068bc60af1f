package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"enclave/internal/domain"
)

// sender writes one event to one connection.
type sender interface {
	send(event string, payload any) error
}

// wsPeer serialises writes to a websocket; gorilla allows one concurrent
// writer per connection.
type wsPeer struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

var errPeerClosed = errors.New("peer closed")

// encodeFrame wraps payload in a Frame. A nil payload leaves data empty.
func encodeFrame(event string, payload any) ([]byte, error) {
	f := domain.Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Data = data
	}
	return json.Marshal(f)
}

func (p *wsPeer) send(event string, payload any) error {
	b, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPeerClosed
	}
	if p.writeTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	return p.conn.WriteMessage(websocket.TextMessage, b)
}

func (p *wsPeer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = p.conn.Close()
}

// Hub tracks live connections, joined or not.
type Hub struct {
	mu    sync.RWMutex
	peers map[domain.ConnectionID]sender
	log   logrus.FieldLogger
}

// NewHub returns an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{peers: make(map[domain.ConnectionID]sender), log: log}
}

func (h *Hub) add(id domain.ConnectionID, s sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[id] = s
}

func (h *Hub) remove(id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
}

// Deliver implements domain.Deliverer.
func (h *Hub) Deliver(to domain.ConnectionID, event string, payload any) bool {
	h.mu.RLock()
	s, ok := h.peers[to]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if err := s.send(event, payload); err != nil {
		h.log.WithFields(logrus.Fields{"conn": to, "event": event}).WithError(err).Debug("deliver failed")
		return false
	}
	return true
}

// Len counts live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

var _ domain.Deliverer = (*Hub)(nil)
