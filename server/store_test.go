package server

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/apologies/engine"
	"github.com/Seednode/apologies/protocol"
)

func testLimits() Limits {
	return Limits{Websockets: 4, RegisteredPlayers: 4, TotalGames: 4, InProgressGames: 4}
}

func newTestStore(limits Limits) (*Store, *clock.Mock) {
	clk := clock.NewMock()
	return newStore(clk, limits), clk
}

func trackedConn(t *testing.T, st *Store, clk *clock.Mock, remote string) *client {
	t.Helper()
	c := newClient(nil, remote, clk.Now())
	require.NoError(t, st.TrackConnection(c))
	return c
}

func advertiseCtx(name string, seats int) *protocol.AdvertiseGameContext {
	return &protocol.AdvertiseGameContext{
		Name:       name,
		Mode:       engine.Standard,
		Players:    seats,
		Visibility: protocol.Public,
	}
}

// startForTest flips an advertised game to STARTED the way the coordinator
// does, without the event fanout.
func startForTest(t *testing.T, st *Store, g *Game, seed int64) {
	t.Helper()
	require.NoError(t, startEngine(g, seed))
	g.State = protocol.Started
	g.Started = st.clk.Now()
	for _, seat := range g.Seats {
		seat.State = protocol.SeatPlaying
	}
	for _, p := range st.PlayersSeated(g) {
		p.Play = protocol.Playing
	}
}

func TestStoreRegisterAndUnregister(t *testing.T) {
	st, clk := newTestStore(testLimits())
	c := trackedConn(t, st, clk, "10.0.0.1:1")

	p, err := st.RegisterPlayer("leela", c)
	require.NoError(t, err)
	assert.Equal(t, p.ID, c.playerID)
	assert.Same(t, p, st.PlayerByID(p.ID))
	assert.Same(t, p, st.PlayerByHandle("leela"))
	assert.Empty(t, st.invariantViolations())

	_, err = st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:2"))
	reason, _ := failureOf(err)
	assert.Equal(t, protocol.HandleTaken, reason)

	st.Unregister(p)
	assert.Nil(t, st.PlayerByID(p.ID))
	assert.Nil(t, st.PlayerByHandle("leela"))
	assert.Empty(t, c.playerID)
	assert.Empty(t, st.invariantViolations())
}

func TestStoreRegisterPlayerLimit(t *testing.T) {
	limits := testLimits()
	limits.RegisteredPlayers = 1
	st, clk := newTestStore(limits)

	_, err := st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:1"))
	require.NoError(t, err)

	_, err = st.RegisterPlayer("bender", trackedConn(t, st, clk, "10.0.0.1:2"))
	reason, _ := failureOf(err)
	assert.Equal(t, protocol.UserLimit, reason)
}

func TestStoreRebind(t *testing.T) {
	st, clk := newTestStore(testLimits())
	c1 := trackedConn(t, st, clk, "10.0.0.1:1")
	c2 := trackedConn(t, st, clk, "10.0.0.1:2")

	p, err := st.RegisterPlayer("leela", c1)
	require.NoError(t, err)

	clk.Add(time.Minute)
	st.Rebind(p, c2)

	assert.Empty(t, c1.playerID)
	assert.Equal(t, p.ID, c2.playerID)
	assert.Same(t, c2, p.conn)
	assert.Equal(t, protocol.Connected, p.Connection)
	assert.Equal(t, clk.Now(), p.LastActive)
	assert.Empty(t, st.invariantViolations())
}

func TestStoreTrackConnectionLimit(t *testing.T) {
	limits := testLimits()
	limits.Websockets = 2
	st, clk := newTestStore(limits)

	trackedConn(t, st, clk, "10.0.0.1:1")
	c2 := trackedConn(t, st, clk, "10.0.0.1:2")

	err := st.TrackConnection(newClient(nil, "10.0.0.1:3", clk.Now()))
	reason, _ := failureOf(err)
	assert.Equal(t, protocol.WebsocketLimit, reason)

	// dropping is idempotent
	assert.True(t, st.DropConnection(c2))
	assert.False(t, st.DropConnection(c2))
	assert.Equal(t, 1, st.ConnectionCount())
}

func TestStoreCreateGameChecksLimitsInOrder(t *testing.T) {
	limits := testLimits()
	limits.TotalGames = 1
	st, clk := newTestStore(limits)

	leela, err := st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:1"))
	require.NoError(t, err)
	bender, err := st.RegisterPlayer("bender", trackedConn(t, st, clk, "10.0.0.1:2"))
	require.NoError(t, err)

	_, err = st.CreateGame(leela, advertiseCtx("first", 2))
	require.NoError(t, err)

	// a seated advertiser is refused before any limit is consulted
	_, err = st.CreateGame(leela, advertiseCtx("second", 2))
	reason, _ := failureOf(err)
	assert.Equal(t, protocol.AlreadyPlaying, reason)

	_, err = st.CreateGame(bender, advertiseCtx("third", 2))
	reason, _ = failureOf(err)
	assert.Equal(t, protocol.TotalGameLimit, reason)
}

func TestStoreCreateGameInProgressLimit(t *testing.T) {
	limits := testLimits()
	limits.InProgressGames = 1
	st, clk := newTestStore(limits)

	leela, err := st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:1"))
	require.NoError(t, err)
	bender, err := st.RegisterPlayer("bender", trackedConn(t, st, clk, "10.0.0.1:2"))
	require.NoError(t, err)

	_, err = st.CreateGame(leela, advertiseCtx("first", 2))
	require.NoError(t, err)

	_, err = st.CreateGame(bender, advertiseCtx("second", 2))
	reason, _ := failureOf(err)
	assert.Equal(t, protocol.InProgressGameLimit, reason)
}

func TestStoreSeatColorsFollowLayoutOrder(t *testing.T) {
	st, clk := newTestStore(testLimits())

	var players []*Player
	for _, handle := range []string{"leela", "bender", "fry", "amy"} {
		p, err := st.RegisterPlayer(handle, trackedConn(t, st, clk, "10.0.0.1:"+handle))
		require.NoError(t, err)
		players = append(players, p)
	}

	g, err := st.CreateGame(players[0], advertiseCtx("full table", 4))
	require.NoError(t, err)
	for _, p := range players[1:] {
		_, err := st.JoinGame(p, g.ID)
		require.NoError(t, err)
	}

	want := []engine.Color{engine.Red, engine.Yellow, engine.Green, engine.Blue}
	require.Len(t, g.Seats, 4)
	for i, seat := range g.Seats {
		assert.Equal(t, want[i], seat.Color)
		assert.Equal(t, players[i].ID, seat.PlayerID)
	}
	assert.Empty(t, st.invariantViolations())
}

func TestStoreJoinGameGates(t *testing.T) {
	st, clk := newTestStore(testLimits())

	leela, _ := st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:1"))
	bender, _ := st.RegisterPlayer("bender", trackedConn(t, st, clk, "10.0.0.1:2"))
	fry, _ := st.RegisterPlayer("fry", trackedConn(t, st, clk, "10.0.0.1:3"))
	zoidberg, _ := st.RegisterPlayer("zoidberg", trackedConn(t, st, clk, "10.0.0.1:4"))

	_, err := st.JoinGame(bender, "no-such-game")
	reason, _ := failureOf(err)
	assert.Equal(t, protocol.InvalidGame, reason)

	g, err := st.CreateGame(leela, advertiseCtx("duo", 2))
	require.NoError(t, err)
	_, err = st.JoinGame(bender, g.ID)
	require.NoError(t, err)

	// the store itself never starts a full game, it just stops seating
	_, err = st.JoinGame(fry, g.ID)
	reason, _ = failureOf(err)
	assert.Equal(t, protocol.NoSeats, reason)

	startForTest(t, st, g, 42)
	_, err = st.JoinGame(zoidberg, g.ID)
	reason, _ = failureOf(err)
	assert.Equal(t, protocol.GameAlreadyStarted, reason)
	assert.Empty(t, st.invariantViolations())
}

func TestStoreJoinPrivateGame(t *testing.T) {
	st, clk := newTestStore(testLimits())

	leela, _ := st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:1"))
	bender, _ := st.RegisterPlayer("bender", trackedConn(t, st, clk, "10.0.0.1:2"))
	fry, _ := st.RegisterPlayer("fry", trackedConn(t, st, clk, "10.0.0.1:3"))

	g, err := st.CreateGame(leela, &protocol.AdvertiseGameContext{
		Name:           "members only",
		Mode:           engine.Standard,
		Players:        3,
		Visibility:     protocol.Private,
		InvitedHandles: []string{"fry"},
	})
	require.NoError(t, err)

	_, err = st.JoinGame(bender, g.ID)
	reason, _ := failureOf(err)
	assert.Equal(t, protocol.NotInvited, reason)

	_, err = st.JoinGame(fry, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, fry.GameID)
	assert.Empty(t, st.invariantViolations())
}

func TestStoreRecordMoveGates(t *testing.T) {
	st, clk := newTestStore(testLimits())

	leela, _ := st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:1"))
	bender, _ := st.RegisterPlayer("bender", trackedConn(t, st, clk, "10.0.0.1:2"))

	_, _, err := st.RecordMove(leela, "CARD_1/RED0>sq4")
	reason, _ := failureOf(err)
	assert.Equal(t, protocol.InvalidGameState, reason)

	g, err := st.CreateGame(leela, advertiseCtx("duo", 2))
	require.NoError(t, err)
	_, err = st.JoinGame(bender, g.ID)
	require.NoError(t, err)

	// advertised games have no board to move on
	_, _, err = st.RecordMove(leela, "CARD_1/RED0>sq4")
	reason, _ = failureOf(err)
	assert.Equal(t, protocol.InvalidGameState, reason)

	startForTest(t, st, g, 42)

	// the turn opens with RED
	_, _, err = st.RecordMove(bender, "CARD_1/YELLOW0>sq33")
	reason, _ = failureOf(err)
	assert.Equal(t, protocol.NotYourTurn, reason)

	// a forfeited seat cannot move even when the engine still holds its turn
	seat := g.seat(leela.ID)
	require.NotNil(t, seat)
	seat.State = protocol.SeatQuit
	_, _, err = st.RecordMove(leela, "CARD_1/RED0>sq4")
	reason, _ = failureOf(err)
	assert.Equal(t, protocol.NotYourTurn, reason)
	seat.State = protocol.SeatPlaying

	moves, err := g.Engine.LegalMoves(engine.Red)
	require.NoError(t, err)
	require.NotEmpty(t, moves)

	clk.Add(30 * time.Second)
	_, outcome, err := st.RecordMove(leela, moves[0].ID)
	require.NoError(t, err)
	assert.False(t, outcome.GameOver)
	assert.Equal(t, clk.Now(), g.LastActive)
	assert.Empty(t, st.invariantViolations())
}

func TestStoreDetachPlayerIgnoresStaleGame(t *testing.T) {
	st, clk := newTestStore(testLimits())

	leela, _ := st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:1"))
	bender, _ := st.RegisterPlayer("bender", trackedConn(t, st, clk, "10.0.0.1:2"))

	mine, err := st.CreateGame(leela, advertiseCtx("mine", 2))
	require.NoError(t, err)
	other, err := st.CreateGame(bender, advertiseCtx("other", 2))
	require.NoError(t, err)

	st.DetachPlayer(leela, other, protocol.Waiting)
	assert.Equal(t, mine.ID, leela.GameID)
	assert.Equal(t, protocol.Joined, leela.Play)

	st.DetachPlayer(leela, mine, protocol.Waiting)
	assert.Empty(t, leela.GameID)
	assert.Empty(t, string(leela.Color))
	assert.Equal(t, protocol.Waiting, leela.Play)
}

func TestStoreSnapshotsAreSorted(t *testing.T) {
	st, clk := newTestStore(testLimits())

	for _, handle := range []string{"zoidberg", "amy", "leela"} {
		_, err := st.RegisterPlayer(handle, trackedConn(t, st, clk, "10.0.0.1:"+handle))
		require.NoError(t, err)
	}

	var handles []string
	for _, p := range st.Players() {
		handles = append(handles, p.Handle)
	}
	assert.Equal(t, []string{"amy", "leela", "zoidberg"}, handles)

	first, err := st.CreateGame(st.PlayerByHandle("zoidberg"), advertiseCtx("first", 2))
	require.NoError(t, err)
	clk.Add(time.Minute)
	second, err := st.CreateGame(st.PlayerByHandle("amy"), advertiseCtx("second", 2))
	require.NoError(t, err)

	games := st.Games()
	require.Len(t, games, 2)
	assert.Equal(t, first.ID, games[0].ID)
	assert.Equal(t, second.ID, games[1].ID)
}

func TestStoreInvariantCheckerDetectsCorruption(t *testing.T) {
	st, clk := newTestStore(testLimits())

	p, err := st.RegisterPlayer("leela", trackedConn(t, st, clk, "10.0.0.1:1"))
	require.NoError(t, err)
	require.Empty(t, st.invariantViolations())

	p.Connection = protocol.Disconnected
	assert.NotEmpty(t, st.invariantViolations())
}
