package engine

import (
	"fmt"
	"sort"
	"strings"
)

type actionKind int

const (
	actionMove actionKind = iota
	actionSwap
)

// action is one pawn's part of a move. Destinations are absolute, computed
// at generation time; bumps and slides are resolved when the move applies.
type action struct {
	kind  actionKind
	pawn  pawnRef
	dest  Position // actionMove
	other pawnRef  // actionSwap
}

// Move is a single legal play: the card, what each pawn does, and a
// human-readable description. Ids are deterministic functions of the card
// and the pawn destinations, so regenerating moves on the same state always
// yields the same ids. A move with no actions forfeits the turn, discarding
// the card.
type Move struct {
	ID          string `json:"move_id"`
	Card        Card   `json:"card"`
	Description string `json:"description"`
	actions     []action
}

// Forfeit reports whether playing the move only discards the card.
func (m Move) Forfeit() bool { return len(m.actions) == 0 }

// cardForward maps cards to their forward distance.
var cardForward = map[Card]int{
	Card1: 1, Card2: 2, Card3: 3, Card5: 5, Card7: 7,
	Card8: 8, Card10: 10, Card11: 11, Card12: 12,
}

// cardBackward maps cards to their backward distance.
var cardBackward = map[Card]int{
	Card4: 4, Card10: 1,
}

// LegalMoves lists every legal play for the color holding the turn: the
// drawn card's moves in Standard mode, the whole hand's in Adult mode. When
// nothing can move, the single returned move forfeits the turn. The list is
// sorted by id.
func (s *State) LegalMoves(c Color) ([]Move, error) {
	if !s.seated(c) {
		return nil, ErrUnknownColor
	}
	if s.withdrawn[c] {
		return nil, ErrWithdrawn
	}
	if s.Current() != c {
		return nil, ErrNotTurn
	}

	var cards []Card
	if s.mode == Standard {
		cards = []Card{s.drawn}
	} else {
		seen := make(map[Card]bool)
		for _, card := range s.hands[c] {
			if !seen[card] {
				seen[card] = true
				cards = append(cards, card)
			}
		}
	}

	var out []Move
	ids := make(map[string]bool)
	for _, card := range cards {
		for _, mv := range s.movesForCard(c, card) {
			if ids[mv.ID] {
				continue
			}
			ids[mv.ID] = true
			out = append(out, mv)
		}
	}
	if len(out) == 0 {
		out = append(out, forfeitMove(cards[0]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *State) movesForCard(c Color, card Card) []Move {
	var out []Move
	pawns := s.pawns[c]

	// Exit the start area onto the circle square.
	if card == Card1 || card == Card2 {
		circle := squarePosition(layouts[c].circle)
		for i := range pawns {
			if !pawns[i].Position.Start {
				continue
			}
			ref := pawnRef{color: c, id: i}
			if s.ownAt(c, circle, ref, nil) {
				continue
			}
			out = append(out, s.plainMove(card, ref, circle,
				fmt.Sprintf("move pawn %d from start to %s", i, circle)))
		}
	}

	if n, ok := cardForward[card]; ok {
		for i := range pawns {
			pos := pawns[i].Position
			if pos.Start || pos.Home {
				continue
			}
			dest, err := forward(c, pos, n)
			if err != nil {
				continue
			}
			ref := pawnRef{color: c, id: i}
			if s.ownAt(c, dest, ref, nil) {
				continue
			}
			out = append(out, s.plainMove(card, ref, dest,
				fmt.Sprintf("move pawn %d forward %d to %s", i, n, dest)))
		}
	}

	if n, ok := cardBackward[card]; ok {
		for i := range pawns {
			pos := pawns[i].Position
			if pos.Start || pos.Home {
				continue
			}
			dest, err := backward(c, pos, n)
			if err != nil {
				continue
			}
			ref := pawnRef{color: c, id: i}
			if s.ownAt(c, dest, ref, nil) {
				continue
			}
			out = append(out, s.plainMove(card, ref, dest,
				fmt.Sprintf("move pawn %d backward %d to %s", i, n, dest)))
		}
	}

	if card == Card7 {
		out = append(out, s.splitMoves(c)...)
	}

	if card == Card11 {
		out = append(out, s.swapMoves(c)...)
	}

	if card == CardApologies {
		for i := range pawns {
			if !pawns[i].Position.Start {
				continue
			}
			ref := pawnRef{color: c, id: i}
			for _, target := range s.opponentPawnsOnTrack(c) {
				dest := s.pawn(target).Position
				out = append(out, s.plainMove(card, ref, dest,
					fmt.Sprintf("move pawn %d from start to %s, bumping %s", i, dest, target.color)))
			}
		}
	}

	return out
}

// splitMoves builds the 7-card splits: two distinct pawns dividing the
// seven squares between them. Legs apply in order, so the second leg is
// validated with the first one already in place.
func (s *State) splitMoves(c Color) []Move {
	var out []Move
	pawns := s.pawns[c]
	for i := range pawns {
		pi := pawns[i].Position
		if pi.Start || pi.Home {
			continue
		}
		for j := range pawns {
			if i == j {
				continue
			}
			pj := pawns[j].Position
			if pj.Start || pj.Home {
				continue
			}
			for k := 1; k <= 6; k++ {
				refI := pawnRef{color: c, id: i}
				d1, err := forward(c, pi, k)
				if err != nil || s.ownAt(c, d1, refI, nil) {
					continue
				}
				refJ := pawnRef{color: c, id: j}
				d2, err := forward(c, pj, 7-k)
				if err != nil || s.ownAt(c, d2, refJ, map[int]Position{i: d1}) {
					continue
				}
				actions := []action{
					{kind: actionMove, pawn: refI, dest: d1},
					{kind: actionMove, pawn: refJ, dest: d2},
				}
				out = append(out, Move{
					ID:   moveID(Card7, actions),
					Card: Card7,
					Description: fmt.Sprintf("Play 7: move pawn %d forward %d to %s and pawn %d forward %d to %s",
						i, k, d1, j, 7-k, d2),
					actions: actions,
				})
			}
		}
	}
	return out
}

// swapMoves builds the 11-card swaps: any own pawn on the shared track
// trades places with any opponent pawn on the shared track.
func (s *State) swapMoves(c Color) []Move {
	var out []Move
	pawns := s.pawns[c]
	for i := range pawns {
		if !pawns[i].Position.OnTrack() {
			continue
		}
		ref := pawnRef{color: c, id: i}
		for _, target := range s.opponentPawnsOnTrack(c) {
			actions := []action{{kind: actionSwap, pawn: ref, other: target}}
			out = append(out, Move{
				ID:   moveID(Card11, actions),
				Card: Card11,
				Description: fmt.Sprintf("Play 11: swap pawn %d on %s with %s pawn %d on %s",
					i, pawns[i].Position, target.color, target.id, s.pawn(target).Position),
				actions: actions,
			})
		}
	}
	return out
}

// opponentPawnsOnTrack lists every other color's pawns sitting on the
// shared track, in seat order.
func (s *State) opponentPawnsOnTrack(c Color) []pawnRef {
	var out []pawnRef
	for _, other := range s.colors {
		if other == c {
			continue
		}
		for j := range s.pawns[other] {
			if s.pawns[other][j].Position.OnTrack() {
				out = append(out, pawnRef{color: other, id: j})
			}
		}
	}
	return out
}

func (s *State) plainMove(card Card, ref pawnRef, dest Position, desc string) Move {
	actions := []action{{kind: actionMove, pawn: ref, dest: dest}}
	return Move{
		ID:          moveID(card, actions),
		Card:        card,
		Description: fmt.Sprintf("Play %s: %s", card.Label(), desc),
		actions:     actions,
	}
}

func forfeitMove(card Card) Move {
	return Move{
		ID:          string(card) + "/forfeit",
		Card:        card,
		Description: fmt.Sprintf("No legal plays for %s; forfeit the turn", card.Label()),
	}
}

// moveID encodes the card and each pawn's destination. Action encodings are
// sorted so that order-equivalent splits collapse to one id.
func moveID(card Card, actions []action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		switch a.kind {
		case actionSwap:
			parts[i] = fmt.Sprintf("swap:%s%d:%s%d", a.pawn.color, a.pawn.id, a.other.color, a.other.id)
		default:
			parts[i] = fmt.Sprintf("%s%d>%s", a.pawn.color, a.pawn.id, a.dest.key())
		}
	}
	sort.Strings(parts)
	return string(card) + "/" + strings.Join(parts, "+")
}
