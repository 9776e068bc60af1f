package message

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"enclave/internal/codec"
	"enclave/internal/domain"
)

const (
	// DefaultTypingInterval is the minimum gap between typing events to the
	// same target.
	DefaultTypingInterval = 2 * time.Second

	groupFanout = 8
)

var (
	// ErrUnknownPeer is returned for recipients not in the current room.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrNoRecipients is returned by SendGroup when the client is alone.
	ErrNoRecipients = errors.New("no one else in the room")
)

// Peers is the roster view the service needs.
type Peers interface {
	Lookup(id domain.ConnectionID) (domain.Identity, bool)
	Peers() []domain.Identity
}

// Secrets yields the pairwise secret for a peer.
type Secrets interface {
	Get(peer domain.Identity) (domain.SharedSecret, error)
}

// Skipped records one recipient a group send could not reach.
type Skipped struct {
	ID       domain.ConnectionID
	Username domain.Username
	Err      error
}

// GroupReport lists the outcome of a group send per recipient.
type GroupReport struct {
	Sent    []domain.ConnectionID
	Skipped []Skipped
}

// Service is safe for concurrent use.
type Service struct {
	relay   domain.RelayClient
	peers   Peers
	secrets Secrets
	log     logrus.FieldLogger
	now     func() time.Time

	typingEvery time.Duration
	mu          sync.Mutex
	lastTyping  map[string]time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for typing throttling and lock checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTypingInterval overrides DefaultTypingInterval.
func WithTypingInterval(d time.Duration) Option {
	return func(s *Service) { s.typingEvery = d }
}

// New returns a message service.
func New(relay domain.RelayClient, peers Peers, secrets Secrets, log logrus.FieldLogger, opts ...Option) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{
		relay:       relay,
		peers:       peers,
		secrets:     secrets,
		log:         log,
		now:         time.Now,
		typingEvery: DefaultTypingInterval,
		lastTyping:  make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SendDirect encrypts text for one peer. Any failure, including a bad peer
// key, is returned to the caller.
func (s *Service) SendDirect(ctx context.Context, to domain.ConnectionID, text string, meta *domain.Metadata) error {
	peer, ok := s.peers.Lookup(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, to)
	}
	env, err := s.seal(peer, text, meta)
	if err != nil {
		return err
	}
	return s.relay.Emit(ctx, domain.EventPrivateMsg, env)
}

func (s *Service) seal(peer domain.Identity, text string, meta *domain.Metadata) (domain.Envelope, error) {
	secret, err := s.secrets.Get(peer)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("secret for %s: %w", peer.Username, err)
	}
	return codec.Seal(peer.ID, text, secret, meta)
}

// SendGroup sends text to every other member of the room, each under its own
// secret. A recipient whose key cannot be used is logged and skipped; the
// rest still receive the message.
func (s *Service) SendGroup(ctx context.Context, text string, template *domain.Metadata) (GroupReport, error) {
	recipients := s.peers.Peers()
	if len(recipients) == 0 {
		return GroupReport{}, ErrNoRecipients
	}

	meta := domain.Metadata{IsGroup: true}
	if template != nil {
		meta = *template
		meta.IsGroup = true
	}

	var (
		mu     sync.Mutex
		report GroupReport
		g      errgroup.Group
	)
	g.SetLimit(groupFanout)
	for _, peer := range recipients {
		g.Go(func() error {
			m := meta
			env, err := s.seal(peer, text, &m)
			if err == nil {
				err = s.relay.Emit(ctx, domain.EventPrivateMsg, env)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.WithFields(logrus.Fields{"peer": peer.ID, "username": peer.Username}).
					WithError(err).Warn("group recipient skipped")
				report.Skipped = append(report.Skipped, Skipped{ID: peer.ID, Username: peer.Username, Err: err})
				return nil
			}
			report.Sent = append(report.Sent, peer.ID)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Sent, func(i, j int) bool { return report.Sent[i] < report.Sent[j] })
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].ID < report.Skipped[j].ID })
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Receive decrypts an inbound envelope. It never fails: a message that does
// not open comes back with Failed set and a placeholder body.
func (s *Service) Receive(env domain.Envelope) domain.DecryptedMessage {
	msg := domain.DecryptedMessage{
		From:      env.From,
		Metadata:  env.Metadata,
		Timestamp: env.Timestamp,
	}

	peer, ok := s.peers.Lookup(env.From)
	if !ok {
		s.log.WithField("peer", env.From).Debug("message from unknown sender")
		return failed(msg)
	}
	msg.Sender = peer.Username

	secret, err := s.secrets.Get(peer)
	if err != nil {
		s.log.WithField("peer", env.From).WithError(err).Debug("no secret for sender")
		return failed(msg)
	}
	text, err := codec.Open(env, secret)
	if err != nil {
		return failed(msg)
	}
	msg.Text = text
	return msg
}

func failed(m domain.DecryptedMessage) domain.DecryptedMessage {
	m.Text = domain.DecryptionFailedText
	m.Failed = true
	return m
}

// TypingTo tells one peer the user is typing, at most once per interval.
// It reports whether an event was emitted.
func (s *Service) TypingTo(ctx context.Context, to domain.ConnectionID) (bool, error) {
	return s.typing(ctx, "peer:"+to.String(), domain.TypingRequest{To: to})
}

// TypingIn tells the room the user is typing, at most once per interval.
func (s *Service) TypingIn(ctx context.Context, room domain.RoomID) (bool, error) {
	return s.typing(ctx, "room:"+room.String(), domain.TypingRequest{Room: room})
}

func (s *Service) typing(ctx context.Context, key string, req domain.TypingRequest) (bool, error) {
	now := s.now()
	s.mu.Lock()
	if last, ok := s.lastTyping[key]; ok && now.Sub(last) < s.typingEvery {
		s.mu.Unlock()
		return false, nil
	}
	s.lastTyping[key] = now
	s.mu.Unlock()

	if err := s.relay.Emit(ctx, domain.EventTyping, req); err != nil {
		return false, err
	}
	return true, nil
}
