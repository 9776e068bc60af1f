package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"enclave/internal/domain"
	"enclave/internal/signaling"
)

// Server is the relay: one Directory, one call Table, and a websocket
// endpoint feeding both.
type Server struct {
	cfg      Config
	log      logrus.FieldLogger
	dir      *Directory
	hub      *Hub
	router   *Router
	calls    *signaling.Table
	upgrader websocket.Upgrader
	engine   *gin.Engine
	newID    func() domain.ConnectionID
}

// NewServer builds a relay from cfg.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	dir := NewDirectory()
	hub := NewHub(log)
	s := &Server{
		cfg:    cfg,
		log:    log,
		dir:    dir,
		hub:    hub,
		router: NewRouter(dir, hub, log),
		calls:  signaling.NewTable(dir.Has),
		newID:  func() domain.ConnectionID { return domain.ConnectionID(uuid.NewString()) },
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog(log))
	engine.GET("/ws", s.serveWS)
	engine.GET("/healthz", s.healthz)
	engine.GET("/rooms", s.rooms)
	s.engine = engine

	return s, nil
}

// Handler returns the HTTP handler serving the relay.
func (s *Server) Handler() http.Handler { return s.engine }

// Directory exposes the relay's directory, mainly for tests and stats.
func (s *Server) Directory() *Directory { return s.dir }

// Calls exposes the relay's call table.
func (s *Server) Calls() *signaling.Table { return s.calls }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("relay listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// rooms reports member counts only; identities and keys stay off this
// endpoint.
func (s *Server) rooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections": s.hub.Len(),
		"joined":      s.dir.Len(),
		"activeCalls": s.calls.Active(),
		"rooms":       s.dir.RoomCounts(),
	})
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	id := s.newID()
	p := &wsPeer{conn: conn, writeTimeout: s.cfg.WriteTimeout}
	s.hub.add(id, p)
	log := s.log.WithField("conn", id)
	log.Debug("connected")

	defer func() {
		s.disconnect(id)
		p.close()
	}()

	if err := p.send(domain.EventSession, domain.SessionInfo{ID: id}); err != nil {
		log.WithError(err).Debug("session greeting failed")
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("read failed")
			}
			return
		}
		var f domain.Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			log.WithError(err).Warn("malformed frame")
			continue
		}
		if err := s.handle(id, f); err != nil {
			entry := log.WithField("event", f.Event).WithError(err)
			if errors.Is(err, ErrMalformedEvent) {
				entry.Warn("event rejected")
			} else {
				entry.Debug("event dropped")
			}
		}
	}
}
