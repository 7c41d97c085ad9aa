package server

import (
	"fmt"

	"github.com/Seednode/apologies/protocol"
)

// sweepWebsockets applies the idle policy to unbound connections: a notice
// at the idle threshold, a forced close at the inactive threshold. Bound
// connections are governed by their player's thresholds instead.
func (s *Server) sweepWebsockets() {
	now := s.clk.Now()
	for _, c := range s.store.Connections() {
		if c.dead || c.playerID != "" {
			continue
		}

		elapsed := now.Sub(c.lastActive)
		switch {
		case elapsed >= s.cfg.WebsocketInactiveThreshold:
			s.log.Infof("SWEEP: closing inactive websocket from %s", c.remote)
			s.out.toClient(c, protocol.Event{Message: protocol.WebsocketInactive})
			s.out.markDead(c)
		case elapsed >= s.cfg.WebsocketIdleThreshold && !c.idle:
			c.idle = true
			s.out.toClient(c, protocol.Event{Message: protocol.WebsocketIdle})
		}
	}
}

// sweepPlayers applies the idle policy to registered players. A player past
// the inactive threshold, or past the idle threshold with no connection, is
// unregistered through the usual departure cascade.
func (s *Server) sweepPlayers() {
	now := s.clk.Now()
	for _, p := range s.store.Players() {
		elapsed := now.Sub(p.LastActive)
		inactive := elapsed >= s.cfg.PlayerInactiveThreshold ||
			(elapsed >= s.cfg.PlayerIdleThreshold && p.Connection == protocol.Disconnected)

		switch {
		case inactive:
			s.log.Infof("SWEEP: unregistering inactive player %q", p.Handle)
			p.Activity = protocol.Inactive
			s.out.toPlayer(p, protocol.Event{Message: protocol.PlayerInactive})

			conn := p.conn
			s.leaveGame(p, protocol.SeatQuit, fmt.Sprintf("Player %s went inactive", p.Handle))
			s.store.Unregister(p)
			if conn != nil {
				s.out.markDead(conn)
			}
		case elapsed >= s.cfg.PlayerIdleThreshold && p.Activity != protocol.Idle:
			p.Activity = protocol.Idle
			s.out.toPlayer(p, protocol.Event{Message: protocol.PlayerIdle})
		}
	}
}

// sweepGames applies the idle policy to in-progress games: a notice to the
// seats at the idle threshold, cancellation at the inactive threshold.
func (s *Server) sweepGames() {
	now := s.clk.Now()
	for _, g := range s.store.Games() {
		if !g.InProgress() {
			continue
		}

		elapsed := now.Sub(g.LastActive)
		switch {
		case elapsed >= s.cfg.GameInactiveThreshold:
			s.log.Infof("SWEEP: cancelling inactive game %q", g.Name)
			s.cancelGame(g, protocol.ReasonInactive, "The game went inactive", true)
		case elapsed >= s.cfg.GameIdleThreshold && g.Activity != protocol.Idle:
			g.Activity = protocol.Idle
			s.out.toSeatPlayers(g, protocol.Event{Message: protocol.GameIdle})
		}
	}
}

// sweepObsolete purges completed and cancelled games past the retention
// window.
func (s *Server) sweepObsolete() {
	for _, g := range s.store.Games() {
		if g.InProgress() {
			continue
		}
		if s.clk.Now().Sub(g.Completed) >= s.cfg.GameRetentionThreshold {
			s.store.DropGame(g)
			s.log.Infof("SWEEP: purged game %q (%d tracked)", g.Name, s.store.GameCount())
		}
	}
}

// handleShutdown broadcasts SERVER_SHUTDOWN to every connection, cancels
// whatever is still running without further notifications, and closes every
// send channel so the write pumps flush their queues and exit.
func (s *Server) handleShutdown() {
	s.log.Infof("SERVE: shutting down, notifying %d connections", s.store.ConnectionCount())

	s.out.toAll(protocol.Event{Message: protocol.ServerShutdown})

	for _, g := range s.store.Games() {
		if g.InProgress() {
			s.cancelGame(g, protocol.ReasonShutdown, "The server is shutting down", false)
		}
	}

	for _, c := range s.store.Connections() {
		s.out.retire(c)
	}
}
