package server

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Seednode/apologies/engine"
	"github.com/Seednode/apologies/protocol"
)

// Player is the server-side record for one registered handle.
type Player struct {
	ID         string
	Handle     string
	Registered time.Time
	LastActive time.Time
	Connection protocol.ConnectionState
	Activity   protocol.ActivityState
	Play       protocol.PlayState
	GameID     string       // current game, "" while waiting or finished
	Color      engine.Color // seat color within the current game
	conn       *client      // bound connection, nil while disconnected
}

// Seat is one slot in a game's seat table. Programmatic seats have no
// player id and use their color as a display handle.
type Seat struct {
	Color    engine.Color
	PlayerID string
	Handle   string
	Type     protocol.PlayerType
	State    protocol.SeatState
}

// Game is the server-side record for one advertised, running, or retained
// finished game.
type Game struct {
	ID               string
	Name             string
	Mode             engine.Mode
	SeatCount        int
	Advertiser       string
	AdvertiserHandle string
	Visibility       protocol.Visibility
	Invited          []string
	Advertised       time.Time
	Started          time.Time
	Completed        time.Time
	LastActive       time.Time
	State            protocol.GameState
	Activity         protocol.ActivityState
	Reason           protocol.CompletionReason
	Comment          string
	Seats            []*Seat
	Engine           *engine.State
}

// InProgress reports whether the game counts against the in-progress limit.
func (g *Game) InProgress() bool {
	return g.State == protocol.Advertised || g.State == protocol.Started
}

func (g *Game) seat(playerID string) *Seat {
	if playerID == "" {
		return nil
	}
	for _, s := range g.Seats {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (g *Game) seatByColor(color engine.Color) *Seat {
	for _, s := range g.Seats {
		if s.Color == color {
			return s
		}
	}
	return nil
}

// freeColor returns the first unassigned color for the game's seat count.
// Callers check NO_SEATS before asking for one.
func (g *Game) freeColor() engine.Color {
	used := make(map[engine.Color]bool, len(g.Seats))
	for _, s := range g.Seats {
		used[s.Color] = true
	}
	for _, c := range engine.Colors(g.SeatCount) {
		if !used[c] {
			return c
		}
	}
	return ""
}

func (g *Game) removeSeat(seat *Seat) {
	g.Seats = slices.DeleteFunc(g.Seats, func(s *Seat) bool {
		return s == seat
	})
}

// invited reports whether a player may join the game when it is PRIVATE.
func (g *Game) invited(p *Player) bool {
	return p.ID == g.Advertiser || slices.Contains(g.Invited, p.Handle)
}

// Limits bound the coordinator's registries.
type Limits struct {
	Websockets        int
	RegisteredPlayers int
	TotalGames        int
	InProgressGames   int
}

// Store holds every registry the coordinator owns: live connections,
// registered players, the handle index, and tracked games. It is never
// touched outside the coordinator goroutine, so it needs no locking; all
// limit and precondition checks happen before any mutation.
type Store struct {
	clk    clock.Clock
	limits Limits

	conns   map[string]*client
	players map[string]*Player
	handles map[string]*Player
	games   map[string]*Game
}

func newStore(clk clock.Clock, limits Limits) *Store {
	return &Store{
		clk:     clk,
		limits:  limits,
		conns:   make(map[string]*client),
		players: make(map[string]*Player),
		handles: make(map[string]*Player),
		games:   make(map[string]*Game),
	}
}

// TrackConnection admits a freshly upgraded websocket, or fails it with
// WEBSOCKET_LIMIT when the connection registry is full.
func (st *Store) TrackConnection(c *client) error {
	if len(st.conns) >= st.limits.Websockets {
		return fail(protocol.WebsocketLimit)
	}
	st.conns[c.key] = c
	return nil
}

// DropConnection removes a connection from the registry, reporting whether
// it was tracked at all.
func (st *Store) DropConnection(c *client) bool {
	if _, ok := st.conns[c.key]; !ok {
		return false
	}
	delete(st.conns, c.key)
	return true
}

func (st *Store) PlayerByID(id string) *Player {
	return st.players[id]
}

func (st *Store) PlayerByHandle(handle string) *Player {
	return st.handles[handle]
}

func (st *Store) GameByID(id string) *Game {
	return st.games[id]
}

// GameOf resolves the player's current game, nil when not in one.
func (st *Store) GameOf(p *Player) *Game {
	if p.GameID == "" {
		return nil
	}
	return st.games[p.GameID]
}

// RegisterPlayer creates a player bound to the given connection. Fails with
// HANDLE_TAKEN when the handle is in use and USER_LIMIT when the registry
// is full; nothing is mutated on failure.
func (st *Store) RegisterPlayer(handle string, c *client) (*Player, error) {
	if _, taken := st.handles[handle]; taken {
		return nil, fail(protocol.HandleTaken)
	}
	if len(st.players) >= st.limits.RegisteredPlayers {
		return nil, fail(protocol.UserLimit)
	}

	now := st.clk.Now()
	p := &Player{
		ID:         newPlayerID(),
		Handle:     handle,
		Registered: now,
		LastActive: now,
		Connection: protocol.Connected,
		Activity:   protocol.Active,
		Play:       protocol.Waiting,
		conn:       c,
	}

	st.players[p.ID] = p
	st.handles[handle] = p
	c.playerID = p.ID

	return p, nil
}

// Rebind points an existing player at a new connection, releasing the old
// binding if any. Cascades for a player displaced from the new connection
// are the coordinator's responsibility and happen before this call.
func (st *Store) Rebind(p *Player, c *client) {
	if p.conn != nil && p.conn != c {
		p.conn.playerID = ""
	}
	c.playerID = p.ID
	p.conn = c
	p.Connection = protocol.Connected
	p.Activity = protocol.Active
	p.LastActive = st.clk.Now()
}

// Unregister destroys the player record and releases its handle. The bound
// connection, if any, stays open and reverts to unbound.
func (st *Store) Unregister(p *Player) {
	delete(st.handles, p.Handle)
	delete(st.players, p.ID)
	if p.conn != nil && p.conn.playerID == p.ID {
		p.conn.playerID = ""
	}
	p.conn = nil
	p.Connection = protocol.Disconnected
}

// CreateGame advertises a new game with the advertiser in the first seat.
// Limit and precondition checks all happen before any mutation.
func (st *Store) CreateGame(p *Player, ctx *protocol.AdvertiseGameContext) (*Game, error) {
	if p.GameID != "" {
		return nil, fail(protocol.AlreadyPlaying)
	}
	if len(st.games) >= st.limits.TotalGames {
		return nil, fail(protocol.TotalGameLimit)
	}
	if st.inProgressCount() >= st.limits.InProgressGames {
		return nil, fail(protocol.InProgressGameLimit)
	}

	now := st.clk.Now()
	g := &Game{
		ID:               newGameID(),
		Name:             ctx.Name,
		Mode:             ctx.Mode,
		SeatCount:        ctx.Players,
		Advertiser:       p.ID,
		AdvertiserHandle: p.Handle,
		Visibility:       ctx.Visibility,
		Invited:          slices.Clone(ctx.InvitedHandles),
		Advertised:       now,
		LastActive:       now,
		State:            protocol.Advertised,
		Activity:         protocol.Active,
	}

	seat := &Seat{
		Color:    g.freeColor(),
		PlayerID: p.ID,
		Handle:   p.Handle,
		Type:     protocol.Human,
		State:    protocol.SeatJoined,
	}
	g.Seats = append(g.Seats, seat)

	st.games[g.ID] = g
	p.GameID = g.ID
	p.Color = seat.Color
	p.Play = protocol.Joined

	return g, nil
}

// JoinGame seats the player in an advertised game, enforcing visibility
// and capacity.
func (st *Store) JoinGame(p *Player, gameID string) (*Game, error) {
	if p.GameID != "" {
		return nil, fail(protocol.AlreadyPlaying)
	}

	g := st.games[gameID]
	if g == nil || !g.InProgress() {
		return nil, fail(protocol.InvalidGame)
	}
	if g.State == protocol.Started {
		return nil, fail(protocol.GameAlreadyStarted)
	}
	if g.Visibility == protocol.Private && !g.invited(p) {
		return nil, fail(protocol.NotInvited)
	}
	if len(g.Seats) >= g.SeatCount {
		return nil, fail(protocol.NoSeats)
	}

	seat := &Seat{
		Color:    g.freeColor(),
		PlayerID: p.ID,
		Handle:   p.Handle,
		Type:     protocol.Human,
		State:    protocol.SeatJoined,
	}
	g.Seats = append(g.Seats, seat)

	p.GameID = g.ID
	p.Color = seat.Color
	p.Play = protocol.Joined
	st.MarkGameActive(g)

	return g, nil
}

// RecordMove validates that the player holds the current turn and applies
// the chosen move. The returned game is non-nil whenever the player has
// one, even on failure, so the caller can cancel it after an engine fault.
func (st *Store) RecordMove(p *Player, moveID string) (*Game, engine.Outcome, error) {
	g := st.GameOf(p)
	if g == nil || g.State != protocol.Started {
		return g, engine.Outcome{}, fail(protocol.InvalidGameState)
	}

	seat := g.seat(p.ID)
	if seat == nil || seat.State != protocol.SeatPlaying {
		return g, engine.Outcome{}, fail(protocol.NotYourTurn)
	}
	if g.Engine.Current() != seat.Color {
		return g, engine.Outcome{}, fail(protocol.NotYourTurn)
	}

	outcome, err := applyMove(g, seat.Color, moveID)
	if err != nil {
		return g, outcome, err
	}

	st.MarkGameActive(g)
	return g, outcome, nil
}

// DetachPlayer clears the player's game pointer, leaving them in the given
// play state. No-op when the player already points elsewhere.
func (st *Store) DetachPlayer(p *Player, g *Game, play protocol.PlayState) {
	if p.GameID != g.ID {
		return
	}
	p.GameID = ""
	p.Color = ""
	p.Play = play
}

// DropGame purges a retained game record.
func (st *Store) DropGame(g *Game) {
	delete(st.games, g.ID)
}

func (st *Store) MarkPlayerActive(p *Player) {
	p.LastActive = st.clk.Now()
	p.Activity = protocol.Active
}

func (st *Store) MarkGameActive(g *Game) {
	g.LastActive = st.clk.Now()
	g.Activity = protocol.Active
}

// PlayersSeated resolves the live player records behind a game's human
// seats. Seats whose players have since unregistered are skipped.
func (st *Store) PlayersSeated(g *Game) []*Player {
	var out []*Player
	for _, seat := range g.Seats {
		if seat.PlayerID == "" {
			continue
		}
		if p := st.players[seat.PlayerID]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (st *Store) ConnectionCount() int { return len(st.conns) }
func (st *Store) PlayerCount() int     { return len(st.players) }
func (st *Store) GameCount() int       { return len(st.games) }

func (st *Store) inProgressCount() int {
	count := 0
	for _, g := range st.games {
		if g.InProgress() {
			count++
		}
	}
	return count
}

// Connections returns a stable snapshot for sweeps and broadcasts.
func (st *Store) Connections() []*client {
	out := make([]*client, 0, len(st.conns))
	for _, c := range st.conns {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *client) int {
		return strings.Compare(a.key, b.key)
	})
	return out
}

// Players returns a snapshot sorted by handle.
func (st *Store) Players() []*Player {
	out := make([]*Player, 0, len(st.players))
	for _, p := range st.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Player) int {
		return strings.Compare(a.Handle, b.Handle)
	})
	return out
}

// Games returns a snapshot sorted by advertisement time, then id.
func (st *Store) Games() []*Game {
	out := make([]*Game, 0, len(st.games))
	for _, g := range st.games {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *Game) int {
		if !a.Advertised.Equal(b.Advertised) {
			return a.Advertised.Compare(b.Advertised)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// invariantViolations cross-checks every registry relationship. Tests call
// it after each scenario; production code never does.
func (st *Store) invariantViolations() []string {
	var bad []string
	report := func(format string, args ...any) {
		bad = append(bad, fmt.Sprintf(format, args...))
	}

	for handle, p := range st.handles {
		if p.Handle != handle {
			report("handle index %q points at player with handle %q", handle, p.Handle)
		}
		if st.players[p.ID] != p {
			report("handle index %q points at untracked player", handle)
		}
	}

	for id, p := range st.players {
		if p.ID != id {
			report("player index %q holds player with id %q", id, p.ID)
		}
		if st.handles[p.Handle] != p {
			report("player %q missing from handle index", p.Handle)
		}

		switch {
		case p.conn != nil:
			if p.Connection != protocol.Connected {
				report("player %q has a connection but state %s", p.Handle, p.Connection)
			}
			if p.conn.playerID != p.ID {
				report("player %q bound to connection claiming player %q", p.Handle, p.conn.playerID)
			}
			if st.conns[p.conn.key] != p.conn {
				report("player %q bound to untracked connection", p.Handle)
			}
		case p.Connection != protocol.Disconnected:
			report("player %q has no connection but state %s", p.Handle, p.Connection)
		}

		switch p.Play {
		case protocol.Waiting, protocol.Finished:
			if p.GameID != "" {
				report("player %q is %s but points at game %s", p.Handle, p.Play, p.GameID)
			}
		case protocol.Joined, protocol.Playing:
			g := st.games[p.GameID]
			if g == nil {
				report("player %q is %s in unknown game %s", p.Handle, p.Play, p.GameID)
				continue
			}
			seat := g.seat(p.ID)
			if seat == nil {
				report("player %q is %s but has no seat in game %s", p.Handle, p.Play, g.ID)
				continue
			}
			if seat.Color != p.Color {
				report("player %q color %s disagrees with seat color %s", p.Handle, p.Color, seat.Color)
			}
			if p.Play == protocol.Joined && g.State != protocol.Advertised {
				report("player %q is JOINED in %s game %s", p.Handle, g.State, g.ID)
			}
			if p.Play == protocol.Playing && g.State != protocol.Started {
				report("player %q is PLAYING in %s game %s", p.Handle, g.State, g.ID)
			}
		}
	}

	for id, g := range st.games {
		if g.ID != id {
			report("game index %q holds game with id %q", id, g.ID)
		}
		if len(g.Seats) > g.SeatCount {
			report("game %s has %d seats for %d slots", g.ID, len(g.Seats), g.SeatCount)
		}

		allowed := make(map[engine.Color]bool, g.SeatCount)
		for _, c := range engine.Colors(g.SeatCount) {
			allowed[c] = true
		}
		seen := make(map[engine.Color]bool, len(g.Seats))
		for _, seat := range g.Seats {
			if !allowed[seat.Color] {
				report("game %s seats color %s outside its layout", g.ID, seat.Color)
			}
			if seen[seat.Color] {
				report("game %s seats color %s twice", g.ID, seat.Color)
			}
			seen[seat.Color] = true

			if seat.State == protocol.SeatJoined || seat.State == protocol.SeatPlaying {
				if seat.Type == protocol.Human && st.players[seat.PlayerID] == nil {
					report("game %s seat %s references unknown player", g.ID, seat.Color)
				}
			}
		}

		switch g.State {
		case protocol.Advertised:
			if g.Engine != nil {
				report("advertised game %s already has engine state", g.ID)
			}
			for _, seat := range g.Seats {
				if seat.Type != protocol.Human || seat.State != protocol.SeatJoined {
					report("advertised game %s has seat %s in state %s", g.ID, seat.Color, seat.State)
				}
			}
			if g.seat(g.Advertiser) == nil {
				report("advertised game %s has no advertiser seat", g.ID)
			}
		case protocol.Started:
			if g.Engine == nil {
				report("started game %s has no engine state", g.ID)
			}
			if len(g.Seats) != g.SeatCount {
				report("started game %s has %d of %d seats", g.ID, len(g.Seats), g.SeatCount)
			}
		}
	}

	for key, c := range st.conns {
		if c.key != key {
			report("connection index %q holds connection %q", key, c.key)
		}
		if c.playerID == "" {
			continue
		}
		p := st.players[c.playerID]
		if p == nil {
			report("connection %q bound to unknown player %s", key, c.playerID)
		} else if p.conn != c {
			report("connection %q claims player %q bound elsewhere", key, p.Handle)
		}
	}

	return bad
}
