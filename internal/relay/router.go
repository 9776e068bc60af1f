package relay

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"enclave/internal/domain"
)

// defaultFanout bounds concurrent writes per broadcast.
const defaultFanout = 16

// Router addresses events through the Directory. Delivery is best effort:
// unknown targets are dropped without telling the sender.
type Router struct {
	dir    *Directory
	out    domain.Deliverer
	log    logrus.FieldLogger
	now    func() time.Time
	fanout int
}

// NewRouter returns a Router delivering through out.
func NewRouter(dir *Directory, out domain.Deliverer, log logrus.FieldLogger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{dir: dir, out: out, log: log, now: time.Now, fanout: defaultFanout}
}

// Broadcast sends the room's member list to every member of the room.
func (r *Router) Broadcast(p Presence) {
	ids := make([]domain.ConnectionID, len(p.Members))
	for i, m := range p.Members {
		ids[i] = m.ID
	}
	r.fanOut(ids, domain.EventUsersList, p.Members)
}

// SendDirect forwards env to env.To, stamping sender and time. It reports
// whether the target was known.
func (r *Router) SendDirect(from domain.ConnectionID, env domain.RelayedEnvelope) bool {
	if !r.dir.Has(env.To) {
		r.log.WithFields(logrus.Fields{"conn": from, "peer": env.To}).Debug("message to unknown peer dropped")
		return false
	}
	env.From = from
	env.Timestamp = r.now().UnixMilli()
	return r.out.Deliver(env.To, domain.EventPrivateMsg, env)
}

// RelayTyping forwards a typing notice to one peer or the sender's room.
// Both the sender and its targets must share a room; anything else is
// dropped. It returns how many connections were notified.
func (r *Router) RelayTyping(from domain.ConnectionID, req domain.TypingRequest) int {
	sender, ok := r.dir.Lookup(from)
	if !ok {
		return 0
	}
	notice := domain.TypingNotice{From: from, Username: sender.Username}

	if req.Room != "" {
		if req.Room != sender.Room {
			r.log.WithFields(logrus.Fields{"conn": from, "room": req.Room}).Debug("typing for foreign room dropped")
			return 0
		}
		var ids []domain.ConnectionID
		for _, m := range r.dir.Members(sender.Room) {
			if m.ID != from {
				ids = append(ids, m.ID)
			}
		}
		return r.fanOut(ids, domain.EventTyping, notice)
	}

	target, ok := r.dir.Lookup(req.To)
	if !ok || target.Room != sender.Room || target.ID == from {
		return 0
	}
	if r.out.Deliver(target.ID, domain.EventTyping, notice) {
		return 1
	}
	return 0
}

// Forward delivers an opaque signaling payload to a joined connection.
func (r *Router) Forward(to domain.ConnectionID, event string, payload any) bool {
	if !r.dir.Has(to) {
		return false
	}
	return r.out.Deliver(to, event, payload)
}

// fanOut delivers the same payload to each id concurrently. Order across
// recipients is unspecified.
func (r *Router) fanOut(ids []domain.ConnectionID, event string, payload any) int {
	var (
		g         errgroup.Group
		delivered = make([]bool, len(ids))
	)
	g.SetLimit(r.fanout)
	for i, id := range ids {
		g.Go(func() error {
			delivered[i] = r.out.Deliver(id, event, payload)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range delivered {
		if ok {
			n++
		}
	}
	return n
}
