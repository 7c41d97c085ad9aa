package server

import (
	"errors"

	"github.com/Seednode/apologies/engine"
	"github.com/Seednode/apologies/protocol"
)

// The functions below are the only place server code crosses into the
// rules engine. Expected rule violations map onto protocol failures;
// anything else surfaces as an engineFault, which cancels the game rather
// than crashing the coordinator.

// startEngine initializes rules state for the game's completed seat table.
func startEngine(g *Game, seed int64) error {
	colors := make([]engine.Color, len(g.Seats))
	for i, seat := range g.Seats {
		colors[i] = seat.Color
	}

	state, err := engine.NewGame(g.Mode, colors, seed)
	if err != nil {
		return &engineFault{err: err}
	}

	g.Engine = state
	return nil
}

// applyMove executes a move chosen by id and advances the game's engine
// state on success.
func applyMove(g *Game, color engine.Color, moveID string) (engine.Outcome, error) {
	next, outcome, err := g.Engine.Apply(color, moveID)
	switch {
	case errors.Is(err, engine.ErrIllegalMove):
		return outcome, fail(protocol.IllegalMove)
	case errors.Is(err, engine.ErrNotTurn), errors.Is(err, engine.ErrWithdrawn):
		return outcome, fail(protocol.NotYourTurn)
	case err != nil:
		return outcome, &engineFault{err: err}
	}

	g.Engine = next
	return outcome, nil
}

// withdrawSeat forfeits a color, returning its pawns to start, and advances
// the game's engine state.
func withdrawSeat(g *Game, color engine.Color) (engine.Outcome, error) {
	next, outcome, err := g.Engine.Withdraw(color)
	if err != nil {
		return outcome, &engineFault{err: err}
	}

	g.Engine = next
	return outcome, nil
}

// legalMoves lists the current legal moves for a seated color.
func legalMoves(g *Game, color engine.Color) ([]engine.Move, error) {
	moves, err := g.Engine.LegalMoves(color)
	if err != nil {
		return nil, &engineFault{err: err}
	}
	return moves, nil
}

// viewFor renders the game as the given color sees it: own hand visible,
// opponent hands hidden.
func viewFor(g *Game, color engine.Color) (engine.View, error) {
	view, err := g.Engine.View(color)
	if err != nil {
		return engine.View{}, &engineFault{err: err}
	}
	return view, nil
}
