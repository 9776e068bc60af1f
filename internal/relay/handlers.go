package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"enclave/internal/domain"
	"enclave/internal/signaling"
)

var (
	// ErrMalformedEvent rejects a payload before it touches any state.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent is returned for event names the relay does not serve.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrNotJoined drops events that need an identity from unjoined
	// connections.
	ErrNotJoined = errors.New("connection has not joined")
)

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedEvent)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// handle dispatches one inbound frame from id. Frames from one connection
// are handled in arrival order by its read loop.
func (s *Server) handle(id domain.ConnectionID, f domain.Frame) error {
	switch f.Event {
	case domain.EventJoin:
		return s.handleJoin(id, f.Data)
	case domain.EventPrivateMsg:
		return s.handlePrivate(id, f.Data)
	case domain.EventTyping:
		return s.handleTyping(id, f.Data)
	case domain.EventCallUser:
		return s.handleCallUser(id, f.Data)
	case domain.EventAnswerCall:
		return s.handleAnswer(id, f.Data)
	case domain.EventICECandidate:
		return s.handleCandidate(id, f.Data)
	case domain.EventEndCall:
		return s.handleEndCall(id, f.Data)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}

func (s *Server) handleJoin(id domain.ConnectionID, data json.RawMessage) error {
	var req domain.JoinRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.Username == "" || utf8.RuneCountInString(string(req.Username)) > domain.MaxUsernameLen {
		return fmt.Errorf("%w: username must be 1-%d characters", ErrMalformedEvent, domain.MaxUsernameLen)
	}
	// The relay passes keys through opaquely; clients validate the curve point.
	if req.PublicKey == nil || req.PublicKey.IsZero() {
		return fmt.Errorf("%w: public key required", ErrMalformedEvent)
	}
	room := req.Room
	if room == "" {
		room = s.cfg.DefaultRoom
	}
	if len(room) > domain.MaxRoomLen {
		return fmt.Errorf("%w: room id too long", ErrMalformedEvent)
	}

	updates := s.dir.Join(domain.Identity{
		ID:        id,
		Username:  req.Username,
		PublicKey: *req.PublicKey,
		Room:      room,
	})
	s.log.WithFields(logrus.Fields{"conn": id, "username": req.Username, "room": room}).Info("joined")

	for _, p := range updates {
		s.router.Broadcast(p)
	}
	return nil
}

func (s *Server) handlePrivate(id domain.ConnectionID, data json.RawMessage) error {
	var env domain.RelayedEnvelope
	if err := decode(data, &env); err != nil {
		return err
	}
	if env.To == "" || env.Content == "" || env.IV == "" {
		return fmt.Errorf("%w: to, content and iv are required", ErrMalformedEvent)
	}
	if !s.router.SendDirect(id, env) {
		return fmt.Errorf("%w: %s", signaling.ErrUnknownPeer, env.To)
	}
	return nil
}

func (s *Server) handleTyping(id domain.ConnectionID, data json.RawMessage) error {
	var req domain.TypingRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if (req.To == "") == (req.Room == "") {
		return fmt.Errorf("%w: typing needs exactly one of to or room", ErrMalformedEvent)
	}
	if !s.dir.Has(id) {
		return ErrNotJoined
	}
	s.router.RelayTyping(id, req)
	return nil
}

func (s *Server) handleCallUser(id domain.ConnectionID, data json.RawMessage) error {
	var req domain.CallRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.UserToCall == "" {
		return fmt.Errorf("%w: userToCall required", ErrMalformedEvent)
	}
	if _, err := signaling.ParseOffer(req.SignalData); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	if err := s.calls.Initiate(id, req.UserToCall, req.SignalData); err != nil {
		if errors.Is(err, signaling.ErrBusy) {
			s.hub.Deliver(id, domain.EventCallFailed, domain.CallFailure{To: req.UserToCall, Reason: domain.CallFailedBusy})
		}
		return err
	}
	// Initiate succeeded, so id is joined; its own disconnect cannot run
	// until this read loop returns.
	caller, _ := s.dir.Lookup(id)

	s.log.WithFields(logrus.Fields{"conn": id, "peer": req.UserToCall}).Debug("call offered")
	s.router.Forward(req.UserToCall, domain.EventCallUser, domain.IncomingCall{
		Signal: req.SignalData,
		From:   id,
		Name:   caller.Username,
	})
	return nil
}

func (s *Server) handleAnswer(id domain.ConnectionID, data json.RawMessage) error {
	var req domain.AnswerRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.To == "" {
		return fmt.Errorf("%w: to required", ErrMalformedEvent)
	}
	if _, err := signaling.ParseAnswer(req.Signal); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if err := s.calls.Accept(id, req.To); err != nil {
		return err
	}
	s.router.Forward(req.To, domain.EventCallAccepted, req.Signal)
	return nil
}

func (s *Server) handleCandidate(id domain.ConnectionID, data json.RawMessage) error {
	var req domain.CandidateRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.To == "" {
		return fmt.Errorf("%w: to required", ErrMalformedEvent)
	}
	if _, err := signaling.ParseCandidate(req.Candidate); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if err := s.calls.Candidate(id, req.To); err != nil {
		return err
	}
	s.router.Forward(req.To, domain.EventICECandidate, req.Candidate)
	return nil
}

func (s *Server) handleEndCall(id domain.ConnectionID, data json.RawMessage) error {
	var req domain.EndCallRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.To == "" {
		return fmt.Errorf("%w: to required", ErrMalformedEvent)
	}
	if err := s.calls.End(id, req.To); err != nil {
		return err
	}
	s.router.Forward(req.To, domain.EventEndCall, nil)
	return nil
}

// disconnect removes id from the directory, hangs up its call, and tells
// the room and the other side of the call.
func (s *Server) disconnect(id domain.ConnectionID) {
	s.hub.remove(id)

	presence, joined := s.dir.Leave(id)
	peer, inCall := s.calls.Drop(id)

	if inCall {
		s.router.Forward(peer, domain.EventEndCall, nil)
	}
	if joined {
		s.log.WithFields(logrus.Fields{"conn": id, "room": presence.Room}).Info("left")
		s.router.Broadcast(presence)
	}
}
