package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"enclave/internal/domain"
	"enclave/internal/signaling"
)

// ChannelLabel names the data channel every session opens.
const ChannelLabel = "enclave"

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("media session closed")
	// ErrChannelNotOpen is returned by Send before the peers have connected.
	ErrChannelNotOpen = errors.New("data channel not open")
)

// Config controls how peer connections are built.
type Config struct {
	ICEServers      []string // stun:/turn: URLs
	IncludeLoopback bool     // gather 127.0.0.1 candidates, for local testing
	Logger          logrus.FieldLogger
}

// DefaultConfig uses a public STUN server.
func DefaultConfig() Config {
	return Config{ICEServers: []string{"stun:stun.l.google.com:19302"}}
}

// Session is one side of a WebRTC call.
type Session struct {
	pc  *webrtc.PeerConnection
	log logrus.FieldLogger

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	closed    bool
	channel   *webrtc.DataChannel
	onMessage func([]byte)
}

// NewFactory returns a MediaFactory building sessions from cfg.
func NewFactory(cfg Config) domain.MediaFactory {
	return func() (domain.MediaSession, error) { return New(cfg) }
}

// New opens a peer connection.
func New(cfg Config) (*Session, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	var se webrtc.SettingEngine
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	rtcCfg := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		rtcCfg.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := api.NewPeerConnection(rtcCfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	s := &Session{pc: pc, log: log}
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.WithField("state", st.String()).Debug("peer connection state")
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() == ChannelLabel {
			s.attach(dc)
		}
	})
	return s, nil
}

func (s *Session) attach(dc *webrtc.DataChannel) {
	s.mu.Lock()
	s.channel = dc
	s.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.mu.Lock()
		fn := s.onMessage
		s.mu.Unlock()
		if fn != nil {
			fn(msg.Data)
		}
	})
}

// Offer creates the data channel and a local offer.
func (s *Session) Offer(ctx context.Context) (json.RawMessage, error) {
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	dc, err := s.pc.CreateDataChannel(ChannelLabel, nil)
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	s.attach(dc)

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local offer: %w", err)
	}
	return json.Marshal(offer)
}

// Answer applies a remote offer and returns the local answer.
func (s *Session) Answer(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	offer, err := signaling.ParseOffer(raw)
	if err != nil {
		return nil, err
	}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote offer: %w", err)
	}
	if err := s.flushCandidates(); err != nil {
		return nil, err
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local answer: %w", err)
	}
	return json.Marshal(answer)
}

// Accept applies the callee's answer.
func (s *Session) Accept(raw json.RawMessage) error {
	if err := s.usable(context.Background()); err != nil {
		return err
	}
	answer, err := signaling.ParseAnswer(raw)
	if err != nil {
		return err
	}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return s.flushCandidates()
}

// AddCandidate applies a remote candidate, queueing it until the remote
// description is known.
func (s *Session) AddCandidate(raw json.RawMessage) error {
	c, err := signaling.ParseCandidate(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.remoteSet {
		s.pending = append(s.pending, c)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

func (s *Session) flushCandidates() error {
	s.mu.Lock()
	s.remoteSet = true
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range queued {
		if err := s.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add queued candidate: %w", err)
		}
	}
	return nil
}

// OnCandidate registers fn for each locally gathered candidate.
func (s *Session) OnCandidate(fn func(json.RawMessage)) {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // gathering complete
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			s.log.WithError(err).Warn("encode local candidate")
			return
		}
		fn(raw)
	})
}

// OnMessage registers fn for data channel messages from the peer.
func (s *Session) OnMessage(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// Send writes text on the data channel once it is open.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	dc := s.channel
	s.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	return dc.SendText(text)
}

// State reports the underlying connection state.
func (s *Session) State() webrtc.PeerConnectionState {
	return s.pc.ConnectionState()
}

// Close tears the connection down. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
	return s.pc.Close()
}

func (s *Session) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

var _ domain.MediaSession = (*Session)(nil)
