package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"enclave/internal/domain"
	"enclave/internal/signaling"
)

// ErrNoCall is returned when an operation needs a call and there is none.
var ErrNoCall = errors.New("no call in progress")

const candidateEmitTimeout = 5 * time.Second

// Status is a snapshot of the client's call.
type Status struct {
	State    domain.CallState
	Peer     domain.ConnectionID
	PeerName domain.Username
}

// Service holds at most one call.
type Service struct {
	relay    domain.RelayClient
	newMedia domain.MediaFactory
	log      logrus.FieldLogger

	mu       sync.Mutex
	state    domain.CallState
	peer     domain.ConnectionID
	peerName domain.Username
	offer    json.RawMessage
	queued   []json.RawMessage
	media    domain.MediaSession
	sink     *candidateSink
	onData   func(Status, string)
}

// New returns an idle call service.
func New(relay domain.RelayClient, newMedia domain.MediaFactory, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{relay: relay, newMedia: newMedia, log: log}
}

// Status returns the current call.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Peer: s.peer, PeerName: s.peerName}
}

// OnData registers fn for text the peer sends over the call's data channel.
func (s *Service) OnData(fn func(from Status, text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

// Say sends text to the peer of a connected call.
func (s *Service) Say(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.CallConnected || s.media == nil {
		return ErrNoCall
	}
	return s.media.Send(text)
}

// Call offers a call to a peer.
func (s *Service) Call(ctx context.Context, to domain.ConnectionID, name domain.Username) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := signaling.Next(s.state, signaling.Dial)
	if err != nil {
		return err
	}
	ms, sink, err := s.open(to)
	if err != nil {
		return err
	}
	offer, err := ms.Offer(ctx)
	if err != nil {
		_ = ms.Close()
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.relay.Emit(ctx, domain.EventCallUser, domain.CallRequest{UserToCall: to, SignalData: offer}); err != nil {
		_ = ms.Close()
		return err
	}
	sink.open()

	s.state, s.peer, s.peerName = next, to, name
	s.media, s.sink = ms, sink
	return nil
}

// OnIncoming handles a callUser from the relay.
func (s *Service) OnIncoming(in domain.IncomingCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := signaling.Next(s.state, signaling.Ring)
	if err != nil {
		return err
	}
	s.state, s.peer, s.peerName = next, in.From, in.Name
	s.offer = in.Signal
	s.queued = nil
	return nil
}

// Answer accepts a ringing call.
func (s *Service) Answer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := signaling.Next(s.state, signaling.Answer)
	if err != nil {
		return err
	}
	ms, sink, err := s.open(s.peer)
	if err != nil {
		return err
	}
	answer, err := ms.Answer(ctx, s.offer)
	if err != nil {
		_ = ms.Close()
		return fmt.Errorf("create answer: %w", err)
	}
	for _, c := range s.queued {
		if err := ms.AddCandidate(c); err != nil {
			s.log.WithError(err).Debug("queued candidate rejected")
		}
	}
	if err := s.relay.Emit(ctx, domain.EventAnswerCall, domain.AnswerRequest{To: s.peer, Signal: answer}); err != nil {
		_ = ms.Close()
		return err
	}
	sink.open()

	s.state = next
	s.offer, s.queued = nil, nil
	s.media, s.sink = ms, sink
	return nil
}

// OnAccepted applies the callee's answer.
func (s *Service) OnAccepted(answer json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := signaling.Next(s.state, signaling.Accepted)
	if err != nil {
		return err
	}
	if err := s.media.Accept(answer); err != nil {
		return fmt.Errorf("apply answer: %w", err)
	}
	s.state = next
	return nil
}

// OnCandidate applies a remote candidate, holding it while the call is
// still ringing.
func (s *Service) OnCandidate(c json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		return ErrNoCall
	}
	if s.media == nil {
		s.queued = append(s.queued, c)
		return nil
	}
	return s.media.AddCandidate(c)
}

// Hangup ends, declines or cancels the call.
func (s *Service) Hangup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		return ErrNoCall
	}
	peer := s.peer
	s.teardown()
	return s.relay.Emit(ctx, domain.EventEndCall, domain.EndCallRequest{To: peer})
}

// OnEnded handles an endCall from the relay. It returns the peer that hung
// up, if there was a call.
func (s *Service) OnEnded() (domain.ConnectionID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		return "", false
	}
	peer := s.peer
	s.teardown()
	return peer, true
}

// OnFailed handles a callFailed from the relay for the pending outgoing call.
func (s *Service) OnFailed(f domain.CallFailure) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.CallCalling || s.peer != f.To {
		return false
	}
	s.teardown()
	return true
}

func (s *Service) open(peer domain.ConnectionID) (domain.MediaSession, *candidateSink, error) {
	ms, err := s.newMedia()
	if err != nil {
		return nil, nil, fmt.Errorf("open media: %w", err)
	}
	sink := &candidateSink{emit: func(c json.RawMessage) {
		ctx, cancel := context.WithTimeout(context.Background(), candidateEmitTimeout)
		defer cancel()
		if err := s.relay.Emit(ctx, domain.EventICECandidate, domain.CandidateRequest{To: peer, Candidate: c}); err != nil {
			s.log.WithField("peer", peer).WithError(err).Debug("candidate not sent")
		}
	}}
	ms.OnCandidate(sink.push)
	ms.OnMessage(func(b []byte) { s.received(ms, b) })
	return ms, sink, nil
}

// received hands data from ms to the OnData handler while ms is still the
// call's media.
func (s *Service) received(ms domain.MediaSession, b []byte) {
	s.mu.Lock()
	if s.media != ms {
		s.mu.Unlock()
		return
	}
	from := Status{State: s.state, Peer: s.peer, PeerName: s.peerName}
	fn := s.onData
	s.mu.Unlock()

	if fn != nil {
		fn(from, string(b))
	}
}

func (s *Service) teardown() {
	if next, err := signaling.Next(s.state, signaling.Hangup); err == nil {
		s.state = next
	}
	if s.sink != nil {
		s.sink.close()
	}
	if s.media != nil {
		if err := s.media.Close(); err != nil {
			s.log.WithError(err).Debug("media close")
		}
	}
	s.peer, s.peerName = "", ""
	s.offer, s.queued = nil, nil
	s.media, s.sink = nil, nil
}

// candidateSink buffers local candidates until the matching offer or answer
// has gone out, then forwards them as they arrive.
type candidateSink struct {
	mu    sync.Mutex
	ready bool
	done  bool
	buf   []json.RawMessage
	emit  func(json.RawMessage)
}

func (k *candidateSink) push(c json.RawMessage) {
	k.mu.Lock()
	if k.done {
		k.mu.Unlock()
		return
	}
	if !k.ready {
		k.buf = append(k.buf, c)
		k.mu.Unlock()
		return
	}
	k.mu.Unlock()
	k.emit(c)
}

func (k *candidateSink) open() {
	k.mu.Lock()
	k.ready = true
	buf := k.buf
	k.buf = nil
	k.mu.Unlock()
	for _, c := range buf {
		k.emit(c)
	}
}

func (k *candidateSink) close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.done = true
	k.buf = nil
}
