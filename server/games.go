package server

import (
	"fmt"

	"github.com/Seednode/apologies/engine"
	"github.com/Seednode/apologies/protocol"
)

// maxProgrammaticMoves bounds how many consecutive engine-controlled turns
// one handler may execute. A healthy game finishes long before this;
// hitting the bound means the engine has stopped making progress.
const maxProgrammaticMoves = 500

// startGame fills unclaimed seats with programmatic players, initializes
// the rules engine, and moves every seat to PLAYING. Event order: everyone
// hears GAME_STARTED, then the final seat table, then their first board
// view; programmatic turns then run until a human holds the turn.
func (s *Server) startGame(g *Game) {
	for len(g.Seats) < g.SeatCount {
		color := g.freeColor()
		g.Seats = append(g.Seats, &Seat{
			Color:  color,
			Handle: string(color),
			Type:   protocol.Programmatic,
			State:  protocol.SeatJoined,
		})
	}

	if err := startEngine(g, s.seed()); err != nil {
		s.engineFailed(g, err)
		return
	}

	now := s.clk.Now()
	g.State = protocol.Started
	g.Started = now
	g.LastActive = now
	g.Activity = protocol.Active

	for _, seat := range g.Seats {
		seat.State = protocol.SeatPlaying
	}
	for _, q := range s.store.PlayersSeated(g) {
		if q.GameID == g.ID {
			q.Play = protocol.Playing
		}
	}

	s.log.Infof("GAMES: game %q started with %d seats (%s)", g.Name, g.SeatCount, g.Mode)

	s.out.toSeatPlayers(g, protocol.Event{Message: protocol.GameStarted})
	s.broadcastPlayerChange(g, "Game started")
	s.broadcastStateChange(g)
	s.advanceTurns(g)
}

// advanceTurns plays consecutive programmatic turns until a human holds the
// turn or the game ends. Each programmatic move gets its own
// GAME_STATE_CHANGE so spectating humans watch the board evolve.
func (s *Server) advanceTurns(g *Game) {
	for i := 0; i < maxProgrammaticMoves; i++ {
		current := g.Engine.Current()
		seat := g.seatByColor(current)
		if seat == nil {
			s.engineFailed(g, fmt.Errorf("turn pending for unseated color %s", current))
			return
		}

		if seat.Type == protocol.Human {
			if seat.State != protocol.SeatPlaying {
				s.engineFailed(g, fmt.Errorf("turn pending for withdrawn seat %s", current))
				return
			}
			s.promptTurn(g, seat)
			return
		}

		moves, err := legalMoves(g, current)
		if err != nil {
			s.engineFailed(g, err)
			return
		}
		if len(moves) == 0 {
			s.engineFailed(g, fmt.Errorf("no legal moves for %s", current))
			return
		}

		// programmatic players take the first legal move; move lists are
		// sorted, so replays with the same seed are identical
		outcome, err := applyMove(g, current, moves[0].ID)
		if err != nil {
			s.engineFailed(g, err)
			return
		}

		s.broadcastStateChange(g)
		if outcome.GameOver {
			s.completeGame(g, outcome.Winner)
			return
		}
	}

	s.engineFailed(g, fmt.Errorf("programmatic turns exceeded %d moves", maxProgrammaticMoves))
}

// promptTurn tells a seat's player it holds the turn, with the drawn card
// (Standard mode) and every legal move.
func (s *Server) promptTurn(g *Game, seat *Seat) {
	moves, err := legalMoves(g, seat.Color)
	if err != nil {
		s.engineFailed(g, err)
		return
	}

	p := s.store.PlayerByID(seat.PlayerID)
	if p == nil {
		return
	}

	s.out.toPlayer(p, protocol.Event{
		Message: protocol.GamePlayerTurn,
		Context: &protocol.GamePlayerTurnContext{
			Handle:    seat.Handle,
			Color:     seat.Color,
			DrawnCard: g.Engine.Drawn(),
			Moves:     moves,
		},
	})
}

// broadcastPlayerChange sends the current seat table to everyone seated.
func (s *Server) broadcastPlayerChange(g *Game, comment string) {
	players := make(map[engine.Color]protocol.GamePlayer, len(g.Seats))
	for _, seat := range g.Seats {
		players[seat.Color] = protocol.GamePlayer{
			Handle: seat.Handle,
			Type:   seat.Type,
			State:  seat.State,
		}
	}

	s.out.toSeatPlayers(g, protocol.Event{
		Message: protocol.GamePlayerChange,
		Context: &protocol.GamePlayerChangeContext{Comment: comment, Players: players},
	})
}

// broadcastStateChange sends each seated connected human its own view of
// the board. Views differ per recipient, so this cannot share one frame.
func (s *Server) broadcastStateChange(g *Game) {
	if g.Engine == nil {
		return
	}

	for _, seat := range g.Seats {
		if seat.PlayerID == "" {
			continue
		}
		p := s.store.PlayerByID(seat.PlayerID)
		if p == nil || p.conn == nil {
			continue
		}

		view, err := viewFor(g, seat.Color)
		if err != nil {
			s.log.Errorf("GAMES: no view for %s in game %q: %v", seat.Color, g.Name, err)
			continue
		}
		s.out.toPlayer(p, protocol.Event{
			Message: protocol.GameStateChange,
			Context: &protocol.GameStateChangeContext{GameID: g.ID, State: view},
		})
	}
}

// leaveGame is the one departure cascade, shared by quits, disconnects,
// unregistrations, and inactivity reaping. The seat is released outright
// before the game starts, or flagged and forfeited after; everyone left
// hears about it, and a game that is no longer viable is cancelled.
func (s *Server) leaveGame(p *Player, state protocol.SeatState, comment string) {
	g := s.store.GameOf(p)
	if g == nil {
		return
	}
	seat := g.seat(p.ID)
	s.store.DetachPlayer(p, g, protocol.Waiting)
	if seat == nil || !g.InProgress() {
		return
	}

	heldTurn := false
	switch g.State {
	case protocol.Advertised:
		g.removeSeat(seat)
	case protocol.Started:
		seat.State = state
		heldTurn = g.Engine.Current() == seat.Color
	}

	s.store.MarkGameActive(g)
	s.broadcastPlayerChange(g, comment)

	if !s.viable(g) {
		s.cancelGame(g, protocol.ReasonNotViable, comment, true)
		return
	}
	if g.State != protocol.Started {
		return
	}

	outcome, err := withdrawSeat(g, seat.Color)
	if err != nil {
		s.engineFailed(g, err)
		return
	}

	s.broadcastStateChange(g)
	if outcome.GameOver {
		s.completeGame(g, outcome.Winner)
		return
	}
	if heldTurn {
		s.advanceTurns(g)
	}
}

// viable reports whether a game can continue. An advertised game needs its
// advertiser seated; a started game needs at least two seats still feeding
// the engine, at least one of them human.
func (s *Server) viable(g *Game) bool {
	switch g.State {
	case protocol.Advertised:
		return g.seat(g.Advertiser) != nil
	case protocol.Started:
		active, humans := 0, 0
		for _, seat := range g.Seats {
			switch {
			case seat.Type == protocol.Programmatic:
				active++
			case seat.State == protocol.SeatPlaying:
				active++
				humans++
			}
		}
		return active >= 2 && humans >= 1
	default:
		return true
	}
}

// cancelGame terminates a game before completion. Every seated player's
// game pointer is cleared; when notify is set they also receive
// GAME_CANCELLED and, if the game had started, a final board view.
func (s *Server) cancelGame(g *Game, reason protocol.CompletionReason, comment string, notify bool) {
	now := s.clk.Now()
	g.State = protocol.Cancelled
	g.Reason = reason
	g.Comment = comment
	g.Completed = now
	g.LastActive = now

	for _, q := range s.store.PlayersSeated(g) {
		s.store.DetachPlayer(q, g, protocol.Waiting)
	}

	if notify {
		s.out.toSeatPlayers(g, protocol.Event{
			Message: protocol.GameCancelled,
			Context: &protocol.GameCancelledContext{Reason: reason, Comment: comment},
		})
		s.broadcastStateChange(g)
	}

	s.log.Infof("GAMES: game %q cancelled: %s (%s)", g.Name, reason, comment)
}

// completeGame finishes a won game: playing seats and their players move to
// FINISHED, everyone hears GAME_COMPLETED naming the winner, then sees the
// final board. The record lingers for the obsolete sweep.
func (s *Server) completeGame(g *Game, winner engine.Color) {
	now := s.clk.Now()
	g.State = protocol.Completed
	g.Reason = protocol.ReasonWon
	g.Completed = now
	g.LastActive = now

	winnerHandle := string(winner)
	if seat := g.seatByColor(winner); seat != nil {
		winnerHandle = seat.Handle
	}
	g.Comment = fmt.Sprintf("Player %s won the game", winnerHandle)

	for _, seat := range g.Seats {
		if seat.State == protocol.SeatPlaying {
			seat.State = protocol.SeatFinished
		}
	}
	for _, q := range s.store.PlayersSeated(g) {
		s.store.DetachPlayer(q, g, protocol.Finished)
	}

	s.log.Infof("GAMES: game %q completed: %s", g.Name, g.Comment)

	s.out.toSeatPlayers(g, protocol.Event{
		Message: protocol.GameCompleted,
		Context: &protocol.GameCompletedContext{Comment: g.Comment},
	})
	s.broadcastStateChange(g)
}

// engineFailed handles an unexpected rules-engine error: the affected game
// is cancelled and the coordinator carries on.
func (s *Server) engineFailed(g *Game, err error) {
	if g == nil || !g.InProgress() {
		return
	}
	s.log.Errorf("GAMES: engine failure in game %q: %v", g.Name, err)
	s.cancelGame(g, protocol.ReasonNotViable, "The game engine failed", true)
}
