// Package server implements the game coordinator: a single goroutine that
// owns every registry (connections, players, games) and processes requests,
// socket lifecycle, and periodic sweeps one at a time through a message-bus
// mailbox. Websocket pumps and sweep timers run on their own goroutines and
// communicate with the coordinator only through that mailbox.
package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	messagebus "github.com/vardius/message-bus"
	"go.uber.org/zap"
)

// Message scopes for PLAYER_MESSAGE_RECEIVED routing.
const (
	ScopeServer = "server"
	ScopeGame   = "game"
)

// Config carries the coordinator's limits, idle thresholds, and sweep
// cadences. Zero values are not defaulted here; the command line layer owns
// defaults and validation.
type Config struct {
	WebsocketLimit        int
	RegisteredPlayerLimit int
	TotalGameLimit        int
	InProgressGameLimit   int

	WebsocketIdleThreshold     time.Duration
	WebsocketInactiveThreshold time.Duration
	PlayerIdleThreshold        time.Duration
	PlayerInactiveThreshold    time.Duration
	GameIdleThreshold          time.Duration
	GameInactiveThreshold      time.Duration
	GameRetentionThreshold     time.Duration

	WebsocketCheckDelay  time.Duration
	WebsocketCheckPeriod time.Duration
	PlayerCheckDelay     time.Duration
	PlayerCheckPeriod    time.Duration
	GameCheckDelay       time.Duration
	GameCheckPeriod      time.Duration
	ObsoleteCheckDelay   time.Duration
	ObsoleteCheckPeriod  time.Duration

	CloseTimeout time.Duration
	MessageScope string
}

// Server is the coordinator and its supporting machinery.
type Server struct {
	cfg Config
	log *zap.SugaredLogger
	clk clock.Clock
	bus messagebus.MessageBus

	store *Store
	out   *dispatcher
	scan  *scanner

	accepting atomic.Bool
	stopped   bool          // loop-owned; set once shutdown mail is processed
	done      chan struct{} // closed by the loop after shutdown
	writers   sync.WaitGroup
	seed      func() int64 // engine seed source; tests pin it
}

func New(cfg Config, log *zap.SugaredLogger, clk clock.Clock) *Server {
	s := &Server{
		cfg:  cfg,
		log:  log,
		clk:  clk,
		bus:  messagebus.New(mailboxSize),
		done: make(chan struct{}),
	}

	s.store = newStore(clk, Limits{
		Websockets:        cfg.WebsocketLimit,
		RegisteredPlayers: cfg.RegisteredPlayerLimit,
		TotalGames:        cfg.TotalGameLimit,
		InProgressGames:   cfg.InProgressGameLimit,
	})
	s.out = newDispatcher(log, s.store)
	s.scan = newScanner(clk, s.post)
	s.seed = func() int64 { return clk.Now().UnixNano() }

	return s
}

// Start subscribes the coordinator to its mailbox and begins the sweeps.
func (s *Server) Start() error {
	if err := s.bus.Subscribe(coordinatorTopic, s.consume); err != nil {
		return err
	}

	s.accepting.Store(true)
	s.scan.start(s.cfg)
	s.log.Info("coordinator started")

	return nil
}

// Accept upgrades an HTTP request to a websocket and hands the connection
// to the coordinator. Refused with 503 once shutdown has begun.
func (s *Server) Accept(w http.ResponseWriter, r *http.Request, remote string) {
	if !s.accepting.Load() {
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.log.Debugf("SERVE: websocket upgrade from %s failed: %v", remote, err)
		return
	}

	c := newClient(conn, remote, s.clk.Now())
	s.writers.Add(1)
	go c.writePump(s)

	// the accept must be posted before the read pump can post requests
	s.post(mail{kind: mailAccept, client: c})
	go c.readPump(s)
}

// Shutdown stops accepting connections, broadcasts SERVER_SHUTDOWN, cancels
// in-progress games, and waits up to CloseTimeout for writers to flush
// before forcing the remaining sockets closed. Safe to call once; repeat
// calls are no-ops.
func (s *Server) Shutdown() {
	if !s.accepting.CompareAndSwap(true, false) {
		return
	}

	s.scan.halt()
	s.post(mail{kind: mailShutdown})
	<-s.done

	flushed := make(chan struct{})
	go func() {
		s.writers.Wait()
		close(flushed)
	}()

	timer := s.clk.Timer(s.cfg.CloseTimeout)
	defer timer.Stop()
	select {
	case <-flushed:
	case <-timer.C:
		s.log.Warn("SERVE: close timeout reached, forcing sockets closed")
	}

	// the loop is parked, so touching the store is safe here
	for _, c := range s.store.Connections() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}

	s.log.Info("coordinator stopped")
}
