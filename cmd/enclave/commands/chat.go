package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"enclave/internal/app"
	"enclave/internal/domain"
)

const chatHelp = `commands:
  <text>               send to everyone in the room
  /msg <user> <text>   send to one user
  /fp [user]           show a fingerprint (yours without a user)
  /verify <user>       mark a user's current key as verified
  /regen               generate a new key pair and re-announce it
  /call <user>         start a call
  /answer              answer a ringing call
  /hangup              end, decline or cancel the call
  /say <text>          send text over the connected call
  /who                 list the room
  /destruct <secs>     self-destruct later messages after secs (0 turns off)
  /lock <secs>         time-lock the next message for secs
  /invite [base-url]   print an invite link for this room
  /quit                leave`

func chatCmd() *cobra.Command {
	var (
		relayURL   string
		username   string
		room       string
		invite     string
		passphrase string
		ephemeral  bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a room on a relay and chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.DefaultConfig()
			if home != "" {
				cfg.Home = home
			}
			cfg.RelayURL = relayURL
			cfg.Username = domain.Username(username)
			cfg.Room = domain.RoomID(room)
			cfg.Passphrase = passphrase
			cfg.Ephemeral = ephemeral
			cfg.Logger = log
			if invite != "" {
				r, err := app.RoomFromLink(invite)
				if err != nil {
					return fmt.Errorf("invite link: %w", err)
				}
				cfg.Room = r
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			w, err := app.NewWire(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			s := &chatSession{w: w, out: cmd.OutOrStdout(), me: cfg.Username}
			return s.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&relayURL, "relay", "ws://127.0.0.1:3001/ws", "relay websocket URL")
	cmd.Flags().StringVar(&username, "username", "", "name to announce")
	cmd.Flags().StringVar(&room, "room", "", "room to join (default: the relay's default room)")
	cmd.Flags().StringVar(&invite, "invite", "", "invite link naming the room to join")
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "seal the known-keys book with this passphrase")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep the known-keys book in memory only")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

type chatSession struct {
	w   *app.Wire
	me  domain.Username
	out io.Writer

	outMu    sync.Mutex
	destruct int64 // seconds, applied to every message
	lockNext int64 // seconds, applied to the next message only
}

func (s *chatSession) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	runErr := make(chan error, 1)
	go func() { runErr <- s.w.Run(ctx) }()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for n := range s.w.Events() {
			s.render(n)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	s.printf("connecting as %s, /help for commands", s.me)
	for {
		select {
		case <-ctx.Done():
			<-rendered
			return nil
		case err := <-runErr:
			<-rendered
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := s.exec(ctx, strings.TrimSpace(line))
			if err != nil {
				s.printf("! %v", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (s *chatSession) metadata() *domain.Metadata {
	if s.destruct == 0 && s.lockNext == 0 {
		return nil
	}
	m := &domain.Metadata{ExpiresIn: s.destruct}
	if s.lockNext > 0 {
		m.UnlocksAt = time.Now().Add(time.Duration(s.lockNext) * time.Second).UnixMilli()
		s.lockNext = 0
	}
	return m
}

// typing logs a failed typing notice; the message that follows still goes out.
func (s *chatSession) typing(err error) {
	if err != nil {
		log.WithError(err).Debug("typing notice not sent")
	}
}

func seconds(arg string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("want a non-negative number of seconds, got %q", arg)
	}
	return n, nil
}

func (s *chatSession) exec(ctx context.Context, line string) (quit bool, err error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		s.typing(s.w.Typing(ctx))
		report, err := s.w.SendRoom(ctx, line, s.metadata())
		if err != nil {
			return false, err
		}
		for _, sk := range report.Skipped {
			s.printf("! not delivered to %s: %v", sk.Username, sk.Err)
		}
		return false, nil
	}

	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]
	user := func() (domain.Username, error) {
		if len(args) == 0 {
			return "", fmt.Errorf("usage: %s <user>", verb)
		}
		return domain.Username(args[0]), nil
	}

	switch verb {
	case "/quit":
		return true, nil
	case "/help":
		s.printf("%s", chatHelp)
	case "/msg":
		if len(args) < 2 {
			return false, errors.New("usage: /msg <user> <text>")
		}
		to := domain.Username(args[0])
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, verb), " "+args[0]))
		s.typing(s.w.TypingTo(ctx, to))
		return false, s.w.SendTo(ctx, to, text, s.metadata())
	case "/fp":
		if len(args) == 0 {
			s.printf("your fingerprint: %s", s.w.Identity.Fingerprint())
			return false, nil
		}
		fp, verified, err := s.w.Fingerprint(domain.Username(args[0]))
		if err != nil {
			return false, err
		}
		mark := "unverified"
		if verified {
			mark = "verified"
		}
		s.printf("%s: %s (%s)", args[0], fp, mark)
	case "/verify":
		name, err := user()
		if err != nil {
			return false, err
		}
		fp, err := s.w.Verify(name)
		if err != nil {
			return false, err
		}
		s.printf("marked %s as verified: %s", name, fp)
	case "/regen":
		fp, err := s.w.Regenerate(ctx)
		if err != nil {
			return false, err
		}
		s.printf("new fingerprint: %s", fp)
	case "/call":
		name, err := user()
		if err != nil {
			return false, err
		}
		if err := s.w.Call(ctx, name); err != nil {
			return false, err
		}
		s.printf("calling %s...", name)
	case "/answer":
		return false, s.w.Answer(ctx)
	case "/hangup":
		return false, s.w.Hangup(ctx)
	case "/say":
		if len(args) == 0 {
			return false, errors.New("usage: /say <text>")
		}
		return false, s.w.Say(strings.TrimSpace(strings.TrimPrefix(line, verb)))
	case "/who":
		self := s.w.Roster.Self()
		for _, m := range s.w.Roster.Members() {
			tag := ""
			if m.ID == self {
				tag = " (you)"
			}
			s.printf("  %s%s", m.Username, tag)
		}
	case "/destruct":
		if len(args) != 1 {
			return false, errors.New("usage: /destruct <secs>")
		}
		n, err := seconds(args[0])
		if err != nil {
			return false, err
		}
		s.destruct = n
	case "/lock":
		if len(args) != 1 {
			return false, errors.New("usage: /lock <secs>")
		}
		n, err := seconds(args[0])
		if err != nil {
			return false, err
		}
		s.lockNext = n
	case "/invite":
		base := "enclave://join"
		if len(args) > 0 {
			base = args[0]
		}
		link, err := app.InviteLink(base, s.w.Room())
		if err != nil {
			return false, err
		}
		s.printf("%s", link)
	default:
		return false, fmt.Errorf("unknown command %s, try /help", verb)
	}
	return false, nil
}

func (s *chatSession) render(n app.Notice) {
	switch n.Kind {
	case app.NoticeConnected:
		s.printf("* connected, your fingerprint is %s", s.w.Identity.Fingerprint())
	case app.NoticePresence:
		names := make([]string, 0, len(n.Members))
		for _, m := range n.Members {
			names = append(names, m.Username.String())
		}
		s.printf("* in room: %s", strings.Join(names, ", "))
	case app.NoticeRotation:
		r := n.Rotation
		s.printf("!! %s has a NEW KEY: %s (was %s). Verify before trusting further messages.",
			r.Username, r.Current, r.Previous)
	case app.NoticeMessage:
		s.renderMessage(*n.Message)
	case app.NoticeTyping:
		s.printf("* %s is typing", n.Typing.Username)
	case app.NoticeIncomingCall:
		s.printf("* incoming call from %s, /answer or /hangup", n.Call.PeerName)
	case app.NoticeCallConnected:
		s.printf("* call connected with %s", n.Call.PeerName)
	case app.NoticeCallEnded:
		s.printf("* call ended")
	case app.NoticeCallFailed:
		s.printf("* call failed: %s", n.Reason)
	case app.NoticeCallData:
		s.printf("%s (call): %s", n.Call.PeerName, n.Text)
	case app.NoticeError:
		s.printf("! %v", n.Err)
	}
}

func (s *chatSession) renderMessage(m domain.DecryptedMessage) {
	now := time.Now()
	if m.Metadata.Expired(now, m.Timestamp) {
		return
	}
	prefix := string(m.Sender)
	if m.Conversation() != domain.EveryoneBucket {
		prefix += " (private)"
	}
	suffix := ""
	if at := m.Metadata.ExpiresAt(m.Timestamp); at != 0 {
		suffix = fmt.Sprintf(" [self-destructs in %s]", time.UnixMilli(at).Sub(now).Round(time.Second))
	}

	if m.Metadata.Locked(now) {
		wait := m.Metadata.Remaining(now)
		s.printf("%s: [time-locked, opens in %s]", prefix, wait)
		time.AfterFunc(wait, func() {
			if m.Metadata.Expired(time.Now(), m.Timestamp) {
				return
			}
			s.printf("%s (unlocked): %s", prefix, m.Text)
		})
		return
	}
	s.printf("%s: %s%s", prefix, m.Text, suffix)
}
