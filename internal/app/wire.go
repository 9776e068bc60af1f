package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"enclave/internal/crypto"
	"enclave/internal/domain"
	"enclave/internal/media"
	"enclave/internal/relay"
	callsvc "enclave/internal/services/call"
	identitysvc "enclave/internal/services/identity"
	messagesvc "enclave/internal/services/message"
	"enclave/internal/services/presence"
	"enclave/internal/store"
)

// ErrUnknownUser is returned when a username is not in the room.
var ErrUnknownUser = errors.New("no such user in the room")

const noticeBuffer = 64

// Wire bundles the services and the relay connection for the CLI.
type Wire struct {
	cfg Config
	log logrus.FieldLogger

	Identity *identitysvc.Service
	Roster   *presence.Roster
	Messages *messagesvc.Service
	Calls    *callsvc.Service
	Relay    *relay.Client

	mu     sync.Mutex
	closed bool
	events chan Notice
}

// NewWire builds the services from cfg and dials the relay.
func NewWire(ctx context.Context, cfg Config) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	var book domain.KnownKeyStore
	if cfg.Ephemeral {
		book = store.NewMemoryKnownKeys()
	} else {
		var opts []store.KnownKeysOption
		if cfg.Passphrase != "" {
			opts = append(opts, store.WithPassphrase(cfg.Passphrase))
		}
		book = store.NewKnownKeysFileStore(cfg.Home, opts...)
	}

	ids, err := identitysvc.New()
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	roster, err := presence.NewRoster(book, ids.Secrets(), log)
	if err != nil {
		return nil, err
	}

	rc, err := relay.Dial(ctx, cfg.RelayURL, cfg.Dialer, log)
	if err != nil {
		return nil, err
	}

	mediaCfg := media.Config{ICEServers: cfg.ICEServers, Logger: log}
	w := &Wire{
		cfg:      cfg,
		log:      log,
		Identity: ids,
		Roster:   roster,
		Messages: messagesvc.New(rc, roster, ids.Secrets(), log),
		Calls:    callsvc.New(rc, media.NewFactory(mediaCfg), log),
		Relay:    rc,
		events:   make(chan Notice, noticeBuffer),
	}
	w.Calls.OnData(func(from callsvc.Status, text string) {
		w.post(Notice{Kind: NoticeCallData, Call: from, Text: text})
	})
	return w, nil
}

// Events delivers notices until Run returns.
func (w *Wire) Events() <-chan Notice { return w.events }

// Run reads from the relay until ctx ends or the connection drops. It
// closes the Events channel on return.
func (w *Wire) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.closed = true
		close(w.events)
	}()
	return w.Relay.Run(ctx, func(f domain.Frame) { w.dispatch(ctx, f) })
}

// Close hangs up any call and closes the relay connection.
func (w *Wire) Close() error {
	_, _ = w.Calls.OnEnded()
	return w.Relay.Close()
}

func (w *Wire) notify(ctx context.Context, n Notice) {
	select {
	case w.events <- n:
	case <-ctx.Done():
	}
}

// post delivers a notice raised outside the read loop. It never blocks: a
// full buffer drops the notice.
func (w *Wire) post(n Notice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.events <- n:
	default:
		w.log.WithField("notice", n.Kind).Warn("notice dropped, reader is behind")
	}
}

func (w *Wire) dispatch(ctx context.Context, f domain.Frame) {
	log := w.log.WithField("event", f.Event)
	fail := func(err error) {
		log.WithError(err).Debug("frame not applied")
		w.notify(ctx, Notice{Kind: NoticeError, Err: fmt.Errorf("%s: %w", f.Event, err)})
	}

	switch f.Event {
	case domain.EventSession:
		var info domain.SessionInfo
		if err := json.Unmarshal(f.Data, &info); err != nil {
			fail(err)
			return
		}
		w.Roster.SetSelf(info.ID)
		if err := w.join(ctx); err != nil {
			fail(err)
			return
		}
		w.notify(ctx, Notice{Kind: NoticeConnected, Self: info.ID})

	case domain.EventUsersList:
		var members []domain.Identity
		if err := json.Unmarshal(f.Data, &members); err != nil {
			fail(err)
			return
		}
		for _, rot := range w.Roster.Update(members) {
			w.notify(ctx, Notice{Kind: NoticeRotation, Rotation: &rot})
		}
		w.notify(ctx, Notice{Kind: NoticePresence, Members: w.Roster.Members(), Self: w.Roster.Self()})

	case domain.EventPrivateMsg:
		var env domain.Envelope
		if err := json.Unmarshal(f.Data, &env); err != nil {
			fail(err)
			return
		}
		msg := w.Messages.Receive(env)
		w.notify(ctx, Notice{Kind: NoticeMessage, Message: &msg})

	case domain.EventTyping:
		var t domain.TypingNotice
		if err := json.Unmarshal(f.Data, &t); err != nil {
			fail(err)
			return
		}
		w.notify(ctx, Notice{Kind: NoticeTyping, Typing: &t})

	case domain.EventCallUser:
		var in domain.IncomingCall
		if err := json.Unmarshal(f.Data, &in); err != nil {
			fail(err)
			return
		}
		if err := w.Calls.OnIncoming(in); err != nil {
			fail(err)
			return
		}
		w.notify(ctx, Notice{Kind: NoticeIncomingCall, Call: w.Calls.Status()})

	case domain.EventCallAccepted:
		if err := w.Calls.OnAccepted(f.Data); err != nil {
			fail(err)
			return
		}
		w.notify(ctx, Notice{Kind: NoticeCallConnected, Call: w.Calls.Status()})

	case domain.EventICECandidate:
		if err := w.Calls.OnCandidate(f.Data); err != nil {
			log.WithError(err).Debug("candidate dropped")
		}

	case domain.EventEndCall:
		if peer, ok := w.Calls.OnEnded(); ok {
			w.notify(ctx, Notice{Kind: NoticeCallEnded, Call: callsvc.Status{Peer: peer}})
		}

	case domain.EventCallFailed:
		var cf domain.CallFailure
		if err := json.Unmarshal(f.Data, &cf); err != nil {
			fail(err)
			return
		}
		if w.Calls.OnFailed(cf) {
			w.notify(ctx, Notice{Kind: NoticeCallFailed, Reason: cf.Reason, Call: callsvc.Status{Peer: cf.To}})
		}

	default:
		log.Debug("unhandled event")
	}
}

func (w *Wire) join(ctx context.Context) error {
	pub := w.Identity.PublicKey()
	return w.Relay.Emit(ctx, domain.EventJoin, domain.JoinRequest{
		Username:  w.cfg.Username,
		PublicKey: &pub,
		Room:      w.cfg.Room,
	})
}

// Room returns the room the relay placed the client in.
func (w *Wire) Room() domain.RoomID {
	if me, ok := w.Roster.Lookup(w.Roster.Self()); ok {
		return me.Room
	}
	if w.cfg.Room != "" {
		return w.cfg.Room
	}
	return domain.DefaultRoom
}

func (w *Wire) find(name domain.Username) (domain.Identity, error) {
	peer, ok := w.Roster.Find(name)
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: %s", ErrUnknownUser, name)
	}
	return peer, nil
}

// SendRoom encrypts text once per room member.
func (w *Wire) SendRoom(ctx context.Context, text string, meta *domain.Metadata) (messagesvc.GroupReport, error) {
	return w.Messages.SendGroup(ctx, text, meta)
}

// SendTo encrypts text for one user.
func (w *Wire) SendTo(ctx context.Context, name domain.Username, text string, meta *domain.Metadata) error {
	peer, err := w.find(name)
	if err != nil {
		return err
	}
	return w.Messages.SendDirect(ctx, peer.ID, text, meta)
}

// Typing tells the room the user is typing.
func (w *Wire) Typing(ctx context.Context) error {
	_, err := w.Messages.TypingIn(ctx, w.Room())
	return err
}

// TypingTo tells one user the user is typing.
func (w *Wire) TypingTo(ctx context.Context, name domain.Username) error {
	peer, err := w.find(name)
	if err != nil {
		return err
	}
	_, err = w.Messages.TypingTo(ctx, peer.ID)
	return err
}

// Fingerprint returns a user's current fingerprint and whether it has been
// verified.
func (w *Wire) Fingerprint(name domain.Username) (domain.Fingerprint, bool, error) {
	peer, err := w.find(name)
	if err != nil {
		return "", false, err
	}
	known, ok := w.Roster.Known(name)
	verified := ok && known.Verified && known.PublicKey.Canonical() == peer.PublicKey.Canonical()
	return crypto.Fingerprint(peer.PublicKey), verified, nil
}

// Verify marks a user's current key as checked.
func (w *Wire) Verify(name domain.Username) (domain.Fingerprint, error) {
	if _, err := w.find(name); err != nil {
		return "", err
	}
	return w.Roster.Verify(name)
}

// Regenerate replaces the key pair and announces the new key.
func (w *Wire) Regenerate(ctx context.Context) (domain.Fingerprint, error) {
	fp, err := w.Identity.Regenerate()
	if err != nil {
		return "", err
	}
	if err := w.join(ctx); err != nil {
		return "", err
	}
	return fp, nil
}

// Call rings a user.
func (w *Wire) Call(ctx context.Context, name domain.Username) error {
	peer, err := w.find(name)
	if err != nil {
		return err
	}
	return w.Calls.Call(ctx, peer.ID, peer.Username)
}

// Answer picks up a ringing call.
func (w *Wire) Answer(ctx context.Context) error { return w.Calls.Answer(ctx) }

// Hangup ends the current call.
func (w *Wire) Hangup(ctx context.Context) error { return w.Calls.Hangup(ctx) }

// Say sends text over the connected call.
func (w *Wire) Say(text string) error { return w.Calls.Say(text) }
