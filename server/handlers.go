package server

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Seednode/apologies/protocol"
)

// handleAccept admits a freshly upgraded connection, or fails it with
// WEBSOCKET_LIMIT and closes it.
func (s *Server) handleAccept(c *client) {
	if err := s.store.TrackConnection(c); err != nil {
		reason, comment := failureOf(err)
		s.out.fail(c, reason, comment)
		s.out.markDead(c)
		s.log.Infof("SERVE: refused websocket from %s: %s", c.remote, reason)
		return
	}

	s.log.Debugf("SERVE: websocket connected from %s (%d tracked)", c.remote, s.store.ConnectionCount())
}

// handleClosed runs the disconnect cascade for one connection. Idempotent:
// reaping a connection that already closed remotely, or vice versa, is a
// no-op the second time.
func (s *Server) handleClosed(c *client) {
	s.out.retire(c)

	if !s.store.DropConnection(c) {
		return
	}
	s.log.Debugf("SERVE: websocket disconnected from %s (%d tracked)", c.remote, s.store.ConnectionCount())

	if c.playerID == "" {
		return
	}
	p := s.store.PlayerByID(c.playerID)
	c.playerID = ""
	if p != nil && p.conn == c {
		s.disconnectPlayer(p)
	}
}

// disconnectPlayer records a player's socket loss. The binding is cleared
// and the player stays registered, so a later REREGISTER_PLAYER can claim
// the id again; any current game treats the departure as a forfeit.
func (s *Server) disconnectPlayer(p *Player) {
	if p.conn != nil {
		if p.conn.playerID == p.ID {
			p.conn.playerID = ""
		}
		p.conn = nil
	}
	p.Connection = protocol.Disconnected

	s.log.Infof("GAMES: player %q disconnected", p.Handle)
	s.leaveGame(p, protocol.SeatDisconnected, fmt.Sprintf("Player %s disconnected", p.Handle))
}

// handleFrame decodes and dispatches one inbound frame.
func (s *Server) handleFrame(c *client, frame []byte) {
	if c.dead {
		return
	}

	c.lastActive = s.clk.Now()
	c.idle = false

	if len(frame) > maxRequestBytes {
		s.out.fail(c, protocol.MessageTooLarge, protocol.MessageTooLarge.Comment())
		return
	}

	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		var r *protocol.RequestError
		if errors.As(err, &r) {
			s.out.fail(c, protocol.InvalidRequest, r.Detail)
			return
		}
		// not speaking the protocol; close without ceremony
		s.log.Debugf("SERVE: dropping %s: %v", c.remote, err)
		s.out.markDead(c)
		return
	}

	s.log.Debugf("REQUEST[%s] from %s: %s", req.Kind, c.remote, maskPlayerIDs(frame))
	s.dispatch(c, req)
}

// dispatch routes one decoded request. REGISTER_PLAYER and
// REREGISTER_PLAYER manage bindings themselves; everything else is
// authenticated first.
func (s *Server) dispatch(c *client, req protocol.Request) {
	var err error

	switch req.Kind {
	case protocol.RegisterPlayer:
		err = s.handleRegisterPlayer(c, req.Context.(*protocol.RegisterPlayerContext))
	case protocol.ReregisterPlayer:
		err = s.handleReregisterPlayer(c, req.PlayerID)
	default:
		var p *Player
		p, err = s.authenticate(c, req.PlayerID)
		if err != nil {
			break
		}

		switch req.Kind {
		case protocol.UnregisterPlayer:
			err = s.handleUnregisterPlayer(p)
		case protocol.ListPlayers:
			err = s.handleListPlayers(p)
		case protocol.AdvertiseGame:
			err = s.handleAdvertiseGame(p, req.Context.(*protocol.AdvertiseGameContext))
		case protocol.ListAvailableGames:
			err = s.handleListAvailableGames(p)
		case protocol.JoinGame:
			err = s.handleJoinGame(p, req.Context.(*protocol.JoinGameContext))
		case protocol.StartGame:
			err = s.handleStartGame(p)
		case protocol.QuitGame:
			err = s.handleQuitGame(p)
		case protocol.CancelGame:
			err = s.handleCancelGame(p)
		case protocol.ExecuteMove:
			err = s.handleExecuteMove(p, req.Context.(*protocol.ExecuteMoveContext))
		case protocol.RetrieveGameState:
			err = s.handleRetrieveGameState(p)
		case protocol.SendMessage:
			err = s.handleSendMessage(p, req.Context.(*protocol.SendMessageContext))
		default:
			err = failf(protocol.InvalidRequest, "unrecognized message %q", req.Kind)
		}
	}

	if err != nil {
		reason, comment := failureOf(err)
		if reason == protocol.InternalError {
			s.log.Errorf("REQUEST[%s] failed internally: %v", req.Kind, err)
		} else {
			s.log.Debugf("REQUEST[%s] failed: %s (%s)", req.Kind, reason, comment)
		}
		s.out.fail(c, reason, comment)
	}
}

// authenticate resolves the player id on an authenticated request. The id
// must be present, known, and bound to the requesting connection; success
// refreshes the player's activity.
func (s *Server) authenticate(c *client, playerID string) (*Player, error) {
	if playerID == "" {
		return nil, fail(protocol.NotAuthorized)
	}

	p := s.store.PlayerByID(playerID)
	if p == nil {
		return nil, fail(protocol.InvalidPlayer)
	}
	if p.conn != c {
		return nil, fail(protocol.NotAuthorized)
	}

	s.store.MarkPlayerActive(p)
	return p, nil
}

func (s *Server) handleRegisterPlayer(c *client, ctx *protocol.RegisterPlayerContext) error {
	if c.playerID != "" {
		return failf(protocol.InvalidRequest, "connection already has a registered player")
	}

	p, err := s.store.RegisterPlayer(ctx.Handle, c)
	if err != nil {
		return err
	}

	s.log.Infof("GAMES: player %q registered (%d registered)", p.Handle, s.store.PlayerCount())
	s.out.toPlayer(p, protocol.Event{
		Message: protocol.PlayerRegistered,
		Context: &protocol.PlayerRegisteredContext{PlayerID: p.ID},
	})

	return nil
}

// handleReregisterPlayer rebinds an existing player to the requesting
// connection. Possession of the player id is the whole credential. If the
// connection already carries a different player, that player is displaced
// exactly as if its socket had dropped.
func (s *Server) handleReregisterPlayer(c *client, playerID string) error {
	if playerID == "" {
		return fail(protocol.NotAuthorized)
	}
	p := s.store.PlayerByID(playerID)
	if p == nil {
		return fail(protocol.InvalidPlayer)
	}

	if c.playerID != "" && c.playerID != p.ID {
		if displaced := s.store.PlayerByID(c.playerID); displaced != nil {
			s.disconnectPlayer(displaced)
		} else {
			c.playerID = ""
		}
	}

	s.store.Rebind(p, c)
	s.log.Infof("GAMES: player %q reregistered", p.Handle)
	s.out.toPlayer(p, protocol.Event{
		Message: protocol.PlayerRegistered,
		Context: &protocol.PlayerRegisteredContext{PlayerID: p.ID},
	})

	return nil
}

// handleUnregisterPlayer destroys the player after cascading out of any
// current game. The connection stays open and unbound. No acknowledgement
// is sent; success is silent.
func (s *Server) handleUnregisterPlayer(p *Player) error {
	s.leaveGame(p, protocol.SeatQuit, fmt.Sprintf("Player %s unregistered", p.Handle))
	s.store.Unregister(p)
	s.log.Infof("GAMES: player %q unregistered (%d registered)", p.Handle, s.store.PlayerCount())

	return nil
}

func (s *Server) handleListPlayers(p *Player) error {
	players := s.store.Players()
	out := make([]protocol.RegisteredPlayer, 0, len(players))
	for _, q := range players {
		out = append(out, protocol.RegisteredPlayer{
			Handle:           q.Handle,
			RegistrationDate: q.Registered,
			LastActiveDate:   q.LastActive,
			ConnectionState:  q.Connection,
			ActivityState:    q.Activity,
			PlayState:        q.Play,
			GameID:           q.GameID,
		})
	}

	s.out.toPlayer(p, protocol.Event{
		Message: protocol.RegisteredPlayers,
		Context: &protocol.RegisteredPlayersContext{Players: out},
	})

	return nil
}

func (s *Server) handleAdvertiseGame(p *Player, ctx *protocol.AdvertiseGameContext) error {
	g, err := s.store.CreateGame(p, ctx)
	if err != nil {
		return err
	}
	s.log.Infof("GAMES: player %q advertised game %q (%d tracked)", p.Handle, g.Name, s.store.GameCount())

	s.out.toPlayer(p, protocol.Event{
		Message: protocol.GameJoined,
		Context: &protocol.GameJoinedContext{GameID: g.ID},
	})

	invitation := &protocol.GameInvitationContext{
		GameID:           g.ID,
		Name:             g.Name,
		Mode:             g.Mode,
		AdvertiserHandle: g.AdvertiserHandle,
		Players:          g.SeatCount,
		Visibility:       g.Visibility,
	}
	for _, handle := range g.Invited {
		q := s.store.PlayerByHandle(handle)
		if q == nil || q.ID == p.ID {
			continue
		}
		s.out.toPlayer(q, protocol.Event{
			Message: protocol.GameInvitation,
			Context: invitation,
		})
	}

	s.out.toPlayer(p, protocol.Event{
		Message: protocol.GameAdvertised,
		Context: &protocol.GameAdvertisedContext{
			GameID:           g.ID,
			Name:             g.Name,
			Mode:             g.Mode,
			AdvertiserHandle: g.AdvertiserHandle,
			Players:          g.SeatCount,
			Visibility:       g.Visibility,
			InvitedHandles:   slices.Clone(g.Invited),
		},
	})

	return nil
}

// handleListAvailableGames lists advertised games the player could join:
// every PUBLIC game, plus PRIVATE games they advertised or are invited to.
func (s *Server) handleListAvailableGames(p *Player) error {
	games := make([]protocol.AdvertisedGame, 0)
	for _, g := range s.store.Games() {
		if g.State != protocol.Advertised {
			continue
		}
		invited := slices.Contains(g.Invited, p.Handle)
		if g.Visibility == protocol.Private && !invited && g.Advertiser != p.ID {
			continue
		}
		games = append(games, protocol.AdvertisedGame{
			GameID:           g.ID,
			Name:             g.Name,
			Mode:             g.Mode,
			AdvertiserHandle: g.AdvertiserHandle,
			Players:          g.SeatCount,
			Available:        g.SeatCount - len(g.Seats),
			Visibility:       g.Visibility,
			Invited:          invited,
		})
	}

	s.out.toPlayer(p, protocol.Event{
		Message: protocol.AvailableGames,
		Context: &protocol.AvailableGamesContext{Games: games},
	})

	return nil
}

func (s *Server) handleJoinGame(p *Player, ctx *protocol.JoinGameContext) error {
	g, err := s.store.JoinGame(p, ctx.GameID)
	if err != nil {
		return err
	}
	s.log.Infof("GAMES: player %q joined game %q (%d/%d seats)", p.Handle, g.Name, len(g.Seats), g.SeatCount)

	s.out.toPlayer(p, protocol.Event{
		Message: protocol.GameJoined,
		Context: &protocol.GameJoinedContext{GameID: g.ID},
	})
	s.broadcastPlayerChange(g, fmt.Sprintf("Player %s joined", p.Handle))

	// a full seat table starts the game without waiting for the advertiser
	if len(g.Seats) == g.SeatCount {
		s.startGame(g)
	}

	return nil
}

func (s *Server) handleStartGame(p *Player) error {
	g := s.store.GameOf(p)
	if g == nil {
		return fail(protocol.InvalidGameState)
	}
	if g.Advertiser != p.ID {
		return fail(protocol.NotAdvertiser)
	}
	if g.State != protocol.Advertised {
		return fail(protocol.InvalidGameState)
	}

	s.startGame(g)
	return nil
}

func (s *Server) handleQuitGame(p *Player) error {
	g := s.store.GameOf(p)
	if g == nil || !g.InProgress() {
		return fail(protocol.InvalidGameState)
	}

	s.log.Infof("GAMES: player %q quit game %q", p.Handle, g.Name)
	s.leaveGame(p, protocol.SeatQuit, fmt.Sprintf("Player %s quit", p.Handle))

	return nil
}

func (s *Server) handleCancelGame(p *Player) error {
	g := s.store.GameOf(p)
	if g == nil {
		return fail(protocol.InvalidGameState)
	}
	if g.Advertiser != p.ID {
		return fail(protocol.NotAdvertiser)
	}
	if !g.InProgress() {
		return fail(protocol.InvalidGameState)
	}

	s.cancelGame(g, protocol.ReasonCancelled, "Game was cancelled by the advertiser", true)
	return nil
}

func (s *Server) handleExecuteMove(p *Player, ctx *protocol.ExecuteMoveContext) error {
	g, outcome, err := s.store.RecordMove(p, ctx.MoveID)
	if err != nil {
		var ef *engineFault
		if errors.As(err, &ef) {
			s.engineFailed(g, err)
			return nil
		}
		return err
	}

	s.log.Debugf("GAMES: player %q played %s in game %q", p.Handle, ctx.MoveID, g.Name)
	s.broadcastStateChange(g)

	if outcome.GameOver {
		s.completeGame(g, outcome.Winner)
		return nil
	}

	s.advanceTurns(g)
	return nil
}

// handleRetrieveGameState re-sends the player's current view. Only valid
// while the game is running; repeating it without intervening moves yields
// an identical payload.
func (s *Server) handleRetrieveGameState(p *Player) error {
	g := s.store.GameOf(p)
	if g == nil || g.State != protocol.Started {
		return fail(protocol.InvalidGameState)
	}

	seat := g.seat(p.ID)
	if seat == nil {
		return fail(protocol.InvalidGameState)
	}

	view, err := viewFor(g, seat.Color)
	if err != nil {
		s.engineFailed(g, err)
		return nil
	}

	s.out.toPlayer(p, protocol.Event{
		Message: protocol.GameStateChange,
		Context: &protocol.GameStateChangeContext{GameID: g.ID, State: view},
	})

	return nil
}

// handleSendMessage relays a chat message to each listed recipient that is
// registered and connected; unknown or disconnected recipients are silently
// dropped. When the server runs with game message scope, recipients outside
// the sender's current game are dropped too.
func (s *Server) handleSendMessage(p *Player, ctx *protocol.SendMessageContext) error {
	var sameGame map[string]bool
	if s.cfg.MessageScope == ScopeGame {
		sameGame = make(map[string]bool)
		if g := s.store.GameOf(p); g != nil {
			for _, seat := range g.Seats {
				if seat.Handle != "" {
					sameGame[seat.Handle] = true
				}
			}
		}
	}

	ev := protocol.Event{
		Message: protocol.PlayerMessageReceived,
		Context: &protocol.PlayerMessageReceivedContext{
			SenderHandle:     p.Handle,
			RecipientHandles: slices.Clone(ctx.RecipientHandles),
			Message:          ctx.Message,
		},
	}

	for _, handle := range ctx.RecipientHandles {
		q := s.store.PlayerByHandle(handle)
		if q == nil || q.conn == nil {
			continue
		}
		if sameGame != nil && !sameGame[handle] {
			continue
		}
		s.out.toPlayer(q, ev)
	}

	return nil
}
