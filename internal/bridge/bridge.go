// Package bridge is the websocket channel between the editor core and the
// browser UI. The UI sends commands; the bridge pushes status snapshots, both
// on a fixed cadence and immediately after every command, so the UI never
// reaches into core state directly.
package bridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nipun-das/ai-dubbing-tool/internal/session"
)

// Controller is what the bridge needs from the session.
type Controller interface {
	Snapshot() session.StatusSnapshot
	Dispatch(ctx context.Context, cmd session.Command) error
}

// Config configures the bridge server.
type Config struct {
	Addr         string // listen address, e.g. "localhost:4456"
	Session      Controller
	PushInterval time.Duration // default 1s
	Logger       *logrus.Logger
}

// Envelope is the wire frame pushed to clients.
type Envelope struct {
	Type   string                  `json:"type"` // "status" or "error"
	Status *session.StatusSnapshot `json:"status,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Server accepts UI connections on /ws.
type Server struct {
	addr     string
	ctrl     Controller
	interval time.Duration
	log      *logrus.Entry
	upgrader websocket.Upgrader

	mu    sync.Mutex
	ln    net.Listener
	srv   *http.Server
	conns map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
}

func (cl *client) send(env Envelope) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return cl.conn.WriteJSON(env)
}

// New creates an unstarted bridge server.
func New(cfg Config) *Server {
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		addr:     cfg.Addr,
		ctrl:     cfg.Session,
		interval: cfg.PushInterval,
		log:      logger.WithField("component", "bridge"),
		upgrader: websocket.Upgrader{
			// The UI is a local page; cross-origin browsers are fine here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*client]struct{}),
	}
}

// Start begins listening. Non-blocking; use Shutdown to stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bridge listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	s.mu.Lock()
	s.ln = ln
	s.srv = &http.Server{Handler: mux}
	s.mu.Unlock()

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("bridge server stopped")
		}
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("bridge listening")
	return nil
}

// Addr returns the bound listen address, useful when Addr was ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Shutdown closes all client connections and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	for cl := range s.conns {
		cl.conn.Close()
	}
	s.conns = make(map[*client]struct{})
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	cl := &client{conn: conn}

	s.mu.Lock()
	s.conns[cl] = struct{}{}
	s.mu.Unlock()
	s.log.WithField("remote", conn.RemoteAddr().String()).Info("ui connected")

	done := make(chan struct{})
	go s.pushLoop(cl, done)
	s.readLoop(r.Context(), cl)
	close(done)

	s.mu.Lock()
	delete(s.conns, cl)
	s.mu.Unlock()
	conn.Close()
	s.log.WithField("remote", conn.RemoteAddr().String()).Info("ui disconnected")
}

// pushLoop sends a snapshot immediately on connect, then on every tick.
func (s *Server) pushLoop(cl *client, done <-chan struct{}) {
	if err := s.pushStatus(cl); err != nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.pushStatus(cl); err != nil {
				return
			}
		}
	}
}

func (s *Server) pushStatus(cl *client) error {
	snap := s.ctrl.Snapshot()
	return cl.send(Envelope{Type: "status", Status: &snap})
}

// readLoop decodes commands until the connection drops. Each command gets an
// immediate status push; failures additionally get an error frame, but never
// close the connection.
func (s *Server) readLoop(ctx context.Context, cl *client) {
	for {
		var cmd session.Command
		if err := cl.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("read failed")
			}
			return
		}
		if err := s.ctrl.Dispatch(ctx, cmd); err != nil {
			if sendErr := cl.send(Envelope{Type: "error", Error: err.Error()}); sendErr != nil {
				return
			}
		}
		if err := s.pushStatus(cl); err != nil {
			return
		}
	}
}
