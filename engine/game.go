package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
)

var (
	// ErrNotTurn is returned when a color acts out of turn.
	ErrNotTurn = errors.New("apologies: not that color's turn")
	// ErrIllegalMove is returned when a move id does not match any move
	// that is legal on the current state.
	ErrIllegalMove = errors.New("apologies: move is not legal on this state")
	// ErrWithdrawn is returned when a withdrawn color tries to act or is
	// withdrawn twice.
	ErrWithdrawn = errors.New("apologies: color has withdrawn")
	// ErrUnknownColor is returned when a color is not seated in the game.
	ErrUnknownColor = errors.New("apologies: color is not part of this game")
)

// Pawn is one of the four tokens a color moves around the board.
type Pawn struct {
	Color    Color    `json:"color"`
	ID       int      `json:"id"`
	Position Position `json:"position"`
}

// pawnRef names a pawn without holding a pointer into any particular state.
type pawnRef struct {
	color Color
	id    int
}

// Outcome reports where play stands after a move or a withdrawal.
type Outcome struct {
	GameOver bool
	Winner   Color // set when GameOver
	Next     Color // whose turn is pending when play continues
}

// State is a complete snapshot of one Apologies game. Callers must treat
// values as immutable: Apply and Withdraw return fresh snapshots.
type State struct {
	mode      Mode
	colors    []Color // seat order, fixed at creation
	withdrawn map[Color]bool
	pawns     map[Color][]Pawn
	hands     map[Color][]Card // Adult mode only
	turns     map[Color]int
	deck      []Card
	discard   []Card
	drawn     Card // Standard mode: card drawn for the current turn
	current   int  // index into colors
	seed      int64
}

// NewGame deals a fresh game for the given seat colors. The seed fixes the
// shuffle order, so equal inputs produce equal games.
func NewGame(mode Mode, colors []Color, seed int64) (*State, error) {
	if mode != Standard && mode != Adult {
		return nil, fmt.Errorf("apologies: unknown mode %q", mode)
	}
	if len(colors) < 2 || len(colors) > len(colorOrder) {
		return nil, fmt.Errorf("apologies: need 2-%d colors, got %d", len(colorOrder), len(colors))
	}
	s := &State{
		mode:      mode,
		colors:    slices.Clone(colors),
		withdrawn: make(map[Color]bool),
		pawns:     make(map[Color][]Pawn, len(colors)),
		turns:     make(map[Color]int, len(colors)),
		deck:      newDeck(),
		seed:      seed,
	}
	for _, c := range colors {
		if _, ok := layouts[c]; !ok {
			return nil, fmt.Errorf("apologies: unknown color %q", c)
		}
		if _, dup := s.pawns[c]; dup {
			return nil, fmt.Errorf("apologies: color %q seated twice", c)
		}
		pawns := make([]Pawn, pawnCount)
		for i := range pawns {
			pawns[i] = Pawn{Color: c, ID: i, Position: startPosition()}
		}
		s.pawns[c] = pawns
	}
	s.shuffle(s.deck)
	if mode == Adult {
		s.hands = make(map[Color][]Card, len(colors))
		for i := 0; i < adultHandSize; i++ {
			for _, c := range colors {
				s.hands[c] = append(s.hands[c], s.draw())
			}
		}
	} else {
		s.drawn = s.draw()
	}
	return s, nil
}

// Mode returns the game's card-handling mode.
func (s *State) Mode() Mode { return s.mode }

// Colors returns the seat colors in turn order.
func (s *State) Colors() []Color { return slices.Clone(s.colors) }

// Current returns the color whose turn is pending.
func (s *State) Current() Color { return s.colors[s.current] }

// Drawn returns the card drawn for the current turn in Standard mode, or ""
// in Adult mode.
func (s *State) Drawn() Card {
	if s.mode != Standard {
		return ""
	}
	return s.drawn
}

// Withdrawn reports whether the color has withdrawn from the game.
func (s *State) Withdrawn(c Color) bool { return s.withdrawn[c] }

func (s *State) seated(c Color) bool {
	_, ok := s.pawns[c]
	return ok
}

// shuffle reorders cards in place, then steps the seed so the next shuffle
// of this state value draws a different but still reproducible order.
func (s *State) shuffle(cards []Card) {
	r := rand.New(rand.NewSource(s.seed))
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	s.seed = s.seed*6364136223846793005 + 1442695040888963407
}

// draw takes the top card, folding the discard pile back in when the deck
// runs dry.
func (s *State) draw() Card {
	if len(s.deck) == 0 {
		if len(s.discard) == 0 {
			panic("apologies: deck and discard both empty")
		}
		s.deck = s.discard
		s.discard = nil
		s.shuffle(s.deck)
	}
	card := s.deck[len(s.deck)-1]
	s.deck = s.deck[:len(s.deck)-1]
	return card
}

func (s *State) clone() *State {
	next := &State{
		mode:      s.mode,
		colors:    slices.Clone(s.colors),
		withdrawn: make(map[Color]bool, len(s.withdrawn)),
		pawns:     make(map[Color][]Pawn, len(s.pawns)),
		turns:     make(map[Color]int, len(s.turns)),
		deck:      slices.Clone(s.deck),
		discard:   slices.Clone(s.discard),
		drawn:     s.drawn,
		current:   s.current,
		seed:      s.seed,
	}
	for c, w := range s.withdrawn {
		next.withdrawn[c] = w
	}
	for c, pawns := range s.pawns {
		next.pawns[c] = slices.Clone(pawns)
	}
	for c, n := range s.turns {
		next.turns[c] = n
	}
	if s.hands != nil {
		next.hands = make(map[Color][]Card, len(s.hands))
		for c, hand := range s.hands {
			next.hands[c] = slices.Clone(hand)
		}
	}
	return next
}

func (s *State) pawn(ref pawnRef) *Pawn {
	return &s.pawns[ref.color][ref.id]
}

// pawnAt returns the pawn occupying a track square, if any.
func (s *State) pawnAt(square int) (pawnRef, bool) {
	for _, c := range s.colors {
		for i := range s.pawns[c] {
			p := s.pawns[c][i].Position
			if p.OnTrack() && p.Square == square {
				return pawnRef{color: c, id: i}, true
			}
		}
	}
	return pawnRef{}, false
}

// ownAt reports whether one of c's pawns occupies the position, ignoring
// the excluded pawn and honoring any pending leg destinations in moved.
func (s *State) ownAt(c Color, pos Position, exclude pawnRef, moved map[int]Position) bool {
	for i := range s.pawns[c] {
		if exclude.color == c && exclude.id == i {
			continue
		}
		p := s.pawns[c][i].Position
		if override, ok := moved[i]; ok {
			p = override
		}
		if p == pos {
			return true
		}
	}
	return false
}

// Apply plays one legal move for the given color and returns the resulting
// state plus an outcome. The move id must come from LegalMoves on this same
// state value.
func (s *State) Apply(c Color, moveID string) (*State, Outcome, error) {
	moves, err := s.LegalMoves(c)
	if err != nil {
		return nil, Outcome{}, err
	}
	idx := slices.IndexFunc(moves, func(m Move) bool { return m.ID == moveID })
	if idx < 0 {
		return nil, Outcome{}, ErrIllegalMove
	}
	move := moves[idx]

	next := s.clone()
	next.applyActions(move.actions)
	next.turns[c]++
	next.discardPlayed(c, move.Card)

	if next.finished(c) {
		return next, Outcome{GameOver: true, Winner: c}, nil
	}

	// Playing a 2 earns another draw, unless the 2 was forfeited.
	if s.mode == Standard && move.Card == Card2 && len(move.actions) > 0 {
		next.drawn = next.draw()
		return next, Outcome{Next: c}, nil
	}
	next.advance()
	return next, Outcome{Next: next.Current()}, nil
}

// Withdraw retires a color: its pawns return to start and the turn rotation
// skips it from now on. When only one color remains, that color wins.
func (s *State) Withdraw(c Color) (*State, Outcome, error) {
	if !s.seated(c) {
		return nil, Outcome{}, ErrUnknownColor
	}
	if s.withdrawn[c] {
		return nil, Outcome{}, ErrWithdrawn
	}
	next := s.clone()
	next.withdrawn[c] = true
	pawns := next.pawns[c]
	for i := range pawns {
		pawns[i].Position = startPosition()
	}
	if next.hands != nil {
		next.discard = append(next.discard, next.hands[c]...)
		next.hands[c] = nil
	}

	var active []Color
	for _, other := range next.colors {
		if !next.withdrawn[other] {
			active = append(active, other)
		}
	}
	if len(active) == 1 {
		return next, Outcome{GameOver: true, Winner: active[0]}, nil
	}
	if len(active) == 0 {
		return next, Outcome{GameOver: true}, nil
	}
	if next.colors[next.current] == c {
		if next.mode == Standard {
			next.discard = append(next.discard, next.drawn)
			next.drawn = ""
		}
		next.advance()
	}
	return next, Outcome{Next: next.Current()}, nil
}

// advance hands the turn to the next seated color that has not withdrawn,
// drawing its card in Standard mode.
func (s *State) advance() {
	for i := 0; i < len(s.colors); i++ {
		s.current = (s.current + 1) % len(s.colors)
		if !s.withdrawn[s.colors[s.current]] {
			break
		}
	}
	if s.mode == Standard {
		s.drawn = s.draw()
	}
}

func (s *State) discardPlayed(c Color, card Card) {
	if s.mode == Adult {
		hand := s.hands[c]
		i := slices.Index(hand, card)
		s.hands[c] = append(hand[:i], hand[i+1:]...)
		s.discard = append(s.discard, card)
		s.hands[c] = append(s.hands[c], s.draw())
		return
	}
	s.discard = append(s.discard, card)
	s.drawn = ""
}

// finished reports whether all of c's pawns are home.
func (s *State) finished(c Color) bool {
	for _, p := range s.pawns[c] {
		if !p.Position.Home {
			return false
		}
	}
	return true
}

// applyActions executes a move's actions in order, resolving bumps and
// slides as pawns land on the shared track.
func (s *State) applyActions(actions []action) {
	for _, a := range actions {
		switch a.kind {
		case actionSwap:
			p, q := s.pawn(a.pawn), s.pawn(a.other)
			p.Position, q.Position = q.Position, p.Position
		case actionMove:
			dest := a.dest
			if dest.OnTrack() {
				s.bumpAt(dest.Square, a.pawn)
				if sl, owner, ok := slideAt(dest.Square); ok && owner != a.pawn.color {
					s.sweepSlide(sl, a.pawn)
					dest = squarePosition(sl.end)
				}
			}
			s.pawn(a.pawn).Position = dest
		}
	}
}

// bumpAt sends whatever pawn occupies the square back to its start area.
func (s *State) bumpAt(square int, exclude pawnRef) {
	ref, ok := s.pawnAt(square)
	if !ok || ref == exclude {
		return
	}
	s.pawn(ref).Position = startPosition()
}

// sweepSlide bumps every pawn sitting on the slide's path, end inclusive.
func (s *State) sweepSlide(sl slide, exclude pawnRef) {
	for sq := sl.start + 1; sq <= sl.end; sq++ {
		s.bumpAt(sq, exclude)
	}
}

// PlayerState is one color's public (or, for the viewer, private) state.
type PlayerState struct {
	Color     Color  `json:"color"`
	Turns     int    `json:"turns"`
	Withdrawn bool   `json:"withdrawn,omitempty"`
	Hand      []Card `json:"hand,omitempty"`
	Pawns     []Pawn `json:"pawns"`
}

// View is the game as one player sees it: their own hand, everyone's pawns,
// never an opponent's hand.
type View struct {
	Player    PlayerState   `json:"player"`
	Opponents []PlayerState `json:"opponents"`
}

// View renders the state from one color's perspective.
func (s *State) View(c Color) (View, error) {
	if !s.seated(c) {
		return View{}, ErrUnknownColor
	}
	v := View{Player: s.playerState(c, true)}
	for _, other := range s.colors {
		if other == c {
			continue
		}
		v.Opponents = append(v.Opponents, s.playerState(other, false))
	}
	return v, nil
}

func (s *State) playerState(c Color, withHand bool) PlayerState {
	ps := PlayerState{
		Color:     c,
		Turns:     s.turns[c],
		Withdrawn: s.withdrawn[c],
		Pawns:     slices.Clone(s.pawns[c]),
	}
	if withHand && s.hands != nil {
		ps.Hand = slices.Clone(s.hands[c])
	}
	return ps
}
