// Package engine implements the rules of Apologies, a Sorry!-style board
// game, as a pure library. A State value is a complete snapshot of one game;
// Apply, Withdraw and the other mutators return fresh snapshots and never
// modify their receiver, so callers can store states wherever they like and
// replay decisions deterministically.
//
// The board is a shared sixty-square circular track. Each color owns a start
// area, a five-square safe zone reachable only by its own pawns, and a home.
// Pawns enter the track on their color's circle square, travel once around,
// turn into the safe zone past their color's turn square, and finish on an
// exact count into home. Two slides per color sit on the track: a pawn of any
// other color landing on a slide's first square rides it to the end, bumping
// every pawn along the way back to its start area.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Mode selects how cards reach a player's hand.
type Mode string

const (
	// Standard draws a single card at the start of each turn.
	Standard Mode = "STANDARD"
	// Adult deals a five-card hand up front and replaces each card as it
	// is played.
	Adult Mode = "ADULT"
)

// Color identifies a seat and its pawns.
type Color string

const (
	Red    Color = "RED"
	Yellow Color = "YELLOW"
	Green  Color = "GREEN"
	Blue   Color = "BLUE"
)

// colorOrder is the seat assignment order for new games.
var colorOrder = []Color{Red, Yellow, Green, Blue}

// Colors returns the first count seat colors in assignment order.
func Colors(count int) []Color {
	if count < 0 {
		count = 0
	}
	if count > len(colorOrder) {
		count = len(colorOrder)
	}
	out := make([]Color, count)
	copy(out, colorOrder[:count])
	return out
}

const (
	trackSquares = 60
	safeSquares  = 5
	pawnCount    = 4
)

type slide struct {
	start int
	end   int
}

// boardLayout fixes where a color interacts with the shared track.
type boardLayout struct {
	circle int // square a pawn lands on when exiting start
	turn   int // square from which the next forward step enters the safe zone
	slides [2]slide
}

var layouts = map[Color]boardLayout{
	Red:    {circle: 4, turn: 2, slides: [2]slide{{1, 4}, {9, 13}}},
	Blue:   {circle: 19, turn: 17, slides: [2]slide{{16, 19}, {24, 28}}},
	Yellow: {circle: 34, turn: 32, slides: [2]slide{{31, 34}, {39, 43}}},
	Green:  {circle: 49, turn: 47, slides: [2]slide{{46, 49}, {54, 58}}},
}

// slideAt reports the slide starting at the given track square, if any,
// along with the color that owns it.
func slideAt(square int) (slide, Color, bool) {
	for color, layout := range layouts {
		for _, sl := range layout.slides {
			if sl.start == square {
				return sl, color, true
			}
		}
	}
	return slide{}, "", false
}

// Position describes where a pawn sits: its start area, home, one of the
// five safe squares, or one of the sixty shared track squares. Unused
// indices are held at -1 and serialize as null.
type Position struct {
	Start  bool
	Home   bool
	Safe   int
	Square int
}

func startPosition() Position       { return Position{Start: true, Safe: -1, Square: -1} }
func homePosition() Position        { return Position{Home: true, Safe: -1, Square: -1} }
func safePosition(i int) Position   { return Position{Safe: i, Square: -1} }
func squarePosition(i int) Position { return Position{Safe: -1, Square: i} }

// OnTrack reports whether the position is one of the shared track squares.
func (p Position) OnTrack() bool {
	return !p.Start && !p.Home && p.Safe < 0 && p.Square >= 0
}

// InSafe reports whether the position is inside a safe zone.
func (p Position) InSafe() bool {
	return !p.Start && !p.Home && p.Safe >= 0
}

// MarshalJSON renders the unused indices as explicit nulls so every client
// sees the same four-field shape.
func (p Position) MarshalJSON() ([]byte, error) {
	out := struct {
		Start  bool `json:"start"`
		Home   bool `json:"home"`
		Safe   *int `json:"safe"`
		Square *int `json:"square"`
	}{Start: p.Start, Home: p.Home}
	if p.InSafe() {
		out.Safe = &p.Safe
	}
	if p.OnTrack() {
		out.Square = &p.Square
	}
	return json.Marshal(&out)
}

// UnmarshalJSON accepts the wire shape produced by MarshalJSON.
func (p *Position) UnmarshalJSON(data []byte) error {
	var in struct {
		Start  bool `json:"start"`
		Home   bool `json:"home"`
		Safe   *int `json:"safe"`
		Square *int `json:"square"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Position{Start: in.Start, Home: in.Home, Safe: -1, Square: -1}
	if in.Safe != nil {
		p.Safe = *in.Safe
	}
	if in.Square != nil {
		p.Square = *in.Square
	}
	return nil
}

func (p Position) String() string {
	switch {
	case p.Start:
		return "start"
	case p.Home:
		return "home"
	case p.InSafe():
		return fmt.Sprintf("safe %d", p.Safe)
	default:
		return fmt.Sprintf("square %d", p.Square)
	}
}

// key is the stable encoding used inside move ids.
func (p Position) key() string {
	switch {
	case p.Start:
		return "start"
	case p.Home:
		return "home"
	case p.InSafe():
		return fmt.Sprintf("safe%d", p.Safe)
	default:
		return fmt.Sprintf("sq%d", p.Square)
	}
}

var errOffBoard = errors.New("apologies: move runs off the board")

// stepForward advances a position one square for the given color, turning
// into the color's safe zone when it passes the turn square.
func stepForward(c Color, p Position) (Position, error) {
	switch {
	case p.Start || p.Home:
		return Position{}, errOffBoard
	case p.InSafe():
		if p.Safe == safeSquares-1 {
			return homePosition(), nil
		}
		return safePosition(p.Safe + 1), nil
	default:
		if p.Square == layouts[c].turn {
			return safePosition(0), nil
		}
		return squarePosition((p.Square + 1) % trackSquares), nil
	}
}

// stepBackward retreats a position one square, leaving the safe zone onto
// the turn square when it runs out.
func stepBackward(c Color, p Position) (Position, error) {
	switch {
	case p.Start || p.Home:
		return Position{}, errOffBoard
	case p.InSafe():
		if p.Safe == 0 {
			return squarePosition(layouts[c].turn), nil
		}
		return safePosition(p.Safe - 1), nil
	default:
		return squarePosition((p.Square + trackSquares - 1) % trackSquares), nil
	}
}

// forward walks a position n squares ahead. Home requires an exact count;
// overshooting fails.
func forward(c Color, p Position, n int) (Position, error) {
	var err error
	for i := 0; i < n; i++ {
		p, err = stepForward(c, p)
		if err != nil {
			return Position{}, err
		}
	}
	return p, nil
}

// backward walks a position n squares back.
func backward(c Color, p Position, n int) (Position, error) {
	var err error
	for i := 0; i < n; i++ {
		p, err = stepBackward(c, p)
		if err != nil {
			return Position{}, err
		}
	}
	return p, nil
}
