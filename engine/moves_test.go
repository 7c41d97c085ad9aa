package engine

import (
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestState builds a Standard-mode state with every pawn in its start
// area and the given card drawn for the first color. The deck is left
// unshuffled, which is fine for tests that never play past a turn or two.
func newTestState(drawn Card, colors ...Color) *State {
	if len(colors) == 0 {
		colors = []Color{Red, Yellow}
	}
	s := &State{
		mode:      Standard,
		colors:    slices.Clone(colors),
		withdrawn: make(map[Color]bool),
		pawns:     make(map[Color][]Pawn, len(colors)),
		turns:     make(map[Color]int, len(colors)),
		deck:      newDeck(),
		drawn:     drawn,
		seed:      1,
	}
	for _, c := range colors {
		pawns := make([]Pawn, pawnCount)
		for i := range pawns {
			pawns[i] = Pawn{Color: c, ID: i, Position: startPosition()}
		}
		s.pawns[c] = pawns
	}
	return s
}

func place(s *State, c Color, id int, pos Position) {
	s.pawns[c][id].Position = pos
}

func moveIDs(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.ID
	}
	return out
}

func TestCard1ExitsStart(t *testing.T) {
	s := newTestState(Card1)
	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)

	// one exit per start pawn, nothing else
	require.Len(t, moves, 4)
	for _, m := range moves {
		assert.Equal(t, Card1, m.Card)
		assert.False(t, m.Forfeit())
		assert.True(t, strings.HasSuffix(m.ID, ">sq4"), "exit should land on red's circle: %s", m.ID)
	}

	next, outcome, err := s.Apply(Red, "CARD_1/RED0>sq4")
	require.NoError(t, err)
	assert.False(t, outcome.GameOver)
	assert.Equal(t, Yellow, outcome.Next)
	assert.Equal(t, squarePosition(4), next.pawns[Red][0].Position)
}

func TestCard1ExitBlockedByOwnPawn(t *testing.T) {
	s := newTestState(Card1)
	place(s, Red, 3, squarePosition(4))

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)
	require.Equal(t, []string{"CARD_1/RED3>sq5"}, moveIDs(moves))
}

func TestCard2EarnsAnotherDraw(t *testing.T) {
	s := newTestState(Card2)
	next, outcome, err := s.Apply(Red, "CARD_2/RED0>sq4")
	require.NoError(t, err)
	assert.Equal(t, Red, outcome.Next)
	assert.Equal(t, Red, next.Current())
	assert.NotEmpty(t, next.Drawn())
}

func TestCard2ForfeitEndsTheTurn(t *testing.T) {
	s := newTestState(Card2)
	place(s, Red, 0, homePosition())
	place(s, Red, 1, homePosition())
	place(s, Red, 2, homePosition())
	place(s, Red, 3, safePosition(4)) // forward 2 overshoots home

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.True(t, moves[0].Forfeit())
	assert.Equal(t, "CARD_2/forfeit", moves[0].ID)

	next, outcome, err := s.Apply(Red, moves[0].ID)
	require.NoError(t, err)
	assert.False(t, outcome.GameOver)
	assert.Equal(t, Yellow, outcome.Next)
	assert.Equal(t, safePosition(4), next.pawns[Red][3].Position)
}

func TestCard4MovesBackwardOnly(t *testing.T) {
	s := newTestState(Card4)
	place(s, Red, 0, squarePosition(10))

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)
	require.Equal(t, []string{"CARD_4/RED0>sq6"}, moveIDs(moves))
}

func TestCard4BacksOutOfSafeZone(t *testing.T) {
	s := newTestState(Card4)
	place(s, Red, 0, safePosition(1))

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)
	require.Len(t, moves, 1)

	next, _, err := s.Apply(Red, moves[0].ID)
	require.NoError(t, err)
	assert.Equal(t, squarePosition(0), next.pawns[Red][0].Position)
}

func TestCard10MovesForwardTenOrBackOne(t *testing.T) {
	s := newTestState(Card10)
	place(s, Red, 0, squarePosition(20))
	place(s, Red, 1, homePosition())
	place(s, Red, 2, homePosition())
	place(s, Red, 3, homePosition())

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)
	require.Equal(t, []string{"CARD_10/RED0>sq19", "CARD_10/RED0>sq30"}, moveIDs(moves))
}

func TestCard7SplitsBetweenTwoPawns(t *testing.T) {
	s := newTestState(Card7)
	place(s, Red, 0, squarePosition(20))
	place(s, Red, 1, squarePosition(30))
	place(s, Red, 2, homePosition())
	place(s, Red, 3, homePosition())

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)

	// two full sevens plus the six distinct divisions of seven squares
	require.Len(t, moves, 8)
	ids := moveIDs(moves)
	assert.Contains(t, ids, "CARD_7/RED0>sq27")
	assert.Contains(t, ids, "CARD_7/RED1>sq37")
	assert.Contains(t, ids, "CARD_7/RED0>sq21+RED1>sq36")
	assert.Contains(t, ids, "CARD_7/RED0>sq26+RED1>sq31")

	next, _, err := s.Apply(Red, "CARD_7/RED0>sq23+RED1>sq34")
	require.NoError(t, err)
	assert.Equal(t, squarePosition(23), next.pawns[Red][0].Position)
	assert.Equal(t, squarePosition(34), next.pawns[Red][1].Position)
}

func TestCard11SwapsWithOpponentOnTrack(t *testing.T) {
	s := newTestState(Card11)
	place(s, Red, 0, squarePosition(10))
	place(s, Yellow, 0, squarePosition(40))
	place(s, Yellow, 1, safePosition(2)) // safe pawns cannot be swapped

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)

	var swaps []Move
	for _, m := range moves {
		if strings.Contains(m.ID, "swap") {
			swaps = append(swaps, m)
		}
	}
	require.Len(t, swaps, 1)
	assert.Equal(t, "CARD_11/swap:RED0:YELLOW0", swaps[0].ID)

	next, _, err := s.Apply(Red, swaps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, squarePosition(40), next.pawns[Red][0].Position)
	assert.Equal(t, squarePosition(10), next.pawns[Yellow][0].Position)
}

func TestApologiesCardTakesAnOccupiedSquare(t *testing.T) {
	s := newTestState(CardApologies)
	place(s, Yellow, 2, squarePosition(33))

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)
	require.Len(t, moves, 4) // every start pawn can take the one target

	next, _, err := s.Apply(Red, "CARD_APOLOGIES/RED0>sq33")
	require.NoError(t, err)
	assert.Equal(t, squarePosition(33), next.pawns[Red][0].Position)
	assert.Equal(t, startPosition(), next.pawns[Yellow][2].Position)
}

func TestApologiesCardNeedsATarget(t *testing.T) {
	s := newTestState(CardApologies)
	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.True(t, moves[0].Forfeit())
	assert.Equal(t, "CARD_APOLOGIES/forfeit", moves[0].ID)
}

func TestLandingBumpsOpponentToStart(t *testing.T) {
	s := newTestState(Card3)
	place(s, Red, 0, squarePosition(20))
	place(s, Yellow, 0, squarePosition(23))

	next, _, err := s.Apply(Red, "CARD_3/RED0>sq23")
	require.NoError(t, err)
	assert.Equal(t, squarePosition(23), next.pawns[Red][0].Position)
	assert.Equal(t, startPosition(), next.pawns[Yellow][0].Position)
}

func TestSlideCarriesPawnAndSweepsPath(t *testing.T) {
	s := newTestState(Card1)
	place(s, Red, 0, squarePosition(15)) // one short of blue's 16-19 slide
	place(s, Red, 1, homePosition())
	place(s, Red, 2, homePosition())
	place(s, Red, 3, homePosition())
	place(s, Yellow, 0, squarePosition(18))

	moves, err := s.LegalMoves(Red)
	require.NoError(t, err)
	require.Equal(t, []string{"CARD_1/RED0>sq16"}, moveIDs(moves))

	next, _, err := s.Apply(Red, moves[0].ID)
	require.NoError(t, err)
	assert.Equal(t, squarePosition(19), next.pawns[Red][0].Position, "pawn should ride the slide to its end")
	assert.Equal(t, startPosition(), next.pawns[Yellow][0].Position, "pawns on the slide path should be bumped")
}

func TestOwnSlideDoesNotTrigger(t *testing.T) {
	s := newTestState(Card1)
	place(s, Red, 0, squarePosition(0)) // red's own slide starts at 1
	place(s, Red, 1, homePosition())
	place(s, Red, 2, homePosition())
	place(s, Red, 3, homePosition())

	next, _, err := s.Apply(Red, "CARD_1/RED0>sq1")
	require.NoError(t, err)
	assert.Equal(t, squarePosition(1), next.pawns[Red][0].Position)
}

func TestExactCountFinishesTheGame(t *testing.T) {
	s := newTestState(Card1)
	place(s, Red, 0, homePosition())
	place(s, Red, 1, homePosition())
	place(s, Red, 2, homePosition())
	place(s, Red, 3, safePosition(4))

	next, outcome, err := s.Apply(Red, "CARD_1/RED3>home")
	require.NoError(t, err)
	assert.True(t, outcome.GameOver)
	assert.Equal(t, Red, outcome.Winner)
	assert.True(t, next.finished(Red))
}

func TestLegalMovesSortedAndStable(t *testing.T) {
	s := newTestState(Card7)
	place(s, Red, 0, squarePosition(20))
	place(s, Red, 1, squarePosition(30))

	first, err := s.LegalMoves(Red)
	require.NoError(t, err)
	second, err := s.LegalMoves(Red)
	require.NoError(t, err)

	assert.Equal(t, moveIDs(first), moveIDs(second))
	assert.True(t, sort.StringsAreSorted(moveIDs(first)))
}

func TestLegalMovesErrors(t *testing.T) {
	s := newTestState(Card1)

	_, err := s.LegalMoves(Green)
	assert.ErrorIs(t, err, ErrUnknownColor)

	_, err = s.LegalMoves(Yellow)
	assert.ErrorIs(t, err, ErrNotTurn)

	s.withdrawn[Yellow] = true
	_, err = s.LegalMoves(Yellow)
	assert.ErrorIs(t, err, ErrWithdrawn)
}

func TestApplyRejectsUnknownMoveID(t *testing.T) {
	s := newTestState(Card1)
	_, _, err := s.Apply(Red, "CARD_12/RED0>sq99")
	assert.ErrorIs(t, err, ErrIllegalMove)
}
