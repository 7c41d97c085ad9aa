package protocol

import (
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/Seednode/apologies/engine"
)

const (
	minGameSeats = 2
	maxGameSeats = 4
)

// RegisterPlayerContext carries REGISTER_PLAYER.
type RegisterPlayerContext struct {
	Handle string `json:"handle"`
}

func (c *RegisterPlayerContext) validate() error {
	if !govalidator.RuneLength(c.Handle, "1", "25") {
		return invalidf("handle must be 1-25 characters")
	}
	return nil
}

// AdvertiseGameContext carries ADVERTISE_GAME.
type AdvertiseGameContext struct {
	Name           string      `json:"name"`
	Mode           engine.Mode `json:"mode"`
	Players        int         `json:"players"`
	Visibility     Visibility  `json:"visibility"`
	InvitedHandles []string    `json:"invited_handles"`
}

func (c *AdvertiseGameContext) validate() error {
	if !govalidator.RuneLength(c.Name, "1", "50") {
		return invalidf("name must be 1-50 characters")
	}
	if c.Mode != engine.Standard && c.Mode != engine.Adult {
		return invalidf("mode must be %s or %s", engine.Standard, engine.Adult)
	}
	if !govalidator.InRangeInt(c.Players, minGameSeats, maxGameSeats) {
		return invalidf("players must be %d-%d", minGameSeats, maxGameSeats)
	}
	if !c.Visibility.valid() {
		return invalidf("visibility must be %s or %s", Public, Private)
	}
	for _, handle := range c.InvitedHandles {
		if !govalidator.RuneLength(handle, "1", "25") {
			return invalidf("invited handles must be 1-25 characters")
		}
	}
	return nil
}

// JoinGameContext carries JOIN_GAME.
type JoinGameContext struct {
	GameID string `json:"game_id"`
}

func (c *JoinGameContext) validate() error {
	if govalidator.IsNull(c.GameID) {
		return invalidf("game_id is required")
	}
	return nil
}

// ExecuteMoveContext carries EXECUTE_MOVE.
type ExecuteMoveContext struct {
	MoveID string `json:"move_id"`
}

func (c *ExecuteMoveContext) validate() error {
	if govalidator.IsNull(c.MoveID) {
		return invalidf("move_id is required")
	}
	return nil
}

// SendMessageContext carries SEND_MESSAGE.
type SendMessageContext struct {
	Message          string   `json:"message"`
	RecipientHandles []string `json:"recipient_handles"`
}

func (c *SendMessageContext) validate() error {
	if govalidator.IsNull(c.Message) {
		return invalidf("message is required")
	}
	if len(c.RecipientHandles) == 0 {
		return invalidf("at least one recipient handle is required")
	}
	for _, handle := range c.RecipientHandles {
		if govalidator.IsNull(handle) {
			return invalidf("recipient handles must not be blank")
		}
	}
	return nil
}

// RequestFailedContext carries REQUEST_FAILED.
type RequestFailedContext struct {
	Reason  FailureReason `json:"reason"`
	Comment string        `json:"comment"`
}

// PlayerRegisteredContext carries PLAYER_REGISTERED.
type PlayerRegisteredContext struct {
	PlayerID string `json:"player_id"`
}

// RegisteredPlayer is one entry in REGISTERED_PLAYERS.
type RegisteredPlayer struct {
	Handle           string          `json:"handle"`
	RegistrationDate time.Time       `json:"registration_date"`
	LastActiveDate   time.Time       `json:"last_active_date"`
	ConnectionState  ConnectionState `json:"connection_state"`
	ActivityState    ActivityState   `json:"activity_state"`
	PlayState        PlayState       `json:"play_state"`
	GameID           string          `json:"game_id,omitempty"`
}

// RegisteredPlayersContext carries REGISTERED_PLAYERS.
type RegisteredPlayersContext struct {
	Players []RegisteredPlayer `json:"players"`
}

// AdvertisedGame is one entry in AVAILABLE_GAMES. Available counts the free
// seats; Invited reports whether the requesting player is on the invitation
// list.
type AdvertisedGame struct {
	GameID           string      `json:"game_id"`
	Name             string      `json:"name"`
	Mode             engine.Mode `json:"mode"`
	AdvertiserHandle string      `json:"advertiser_handle"`
	Players          int         `json:"players"`
	Available        int         `json:"available"`
	Visibility       Visibility  `json:"visibility"`
	Invited          bool        `json:"invited"`
}

// AvailableGamesContext carries AVAILABLE_GAMES.
type AvailableGamesContext struct {
	Games []AdvertisedGame `json:"games"`
}

// PlayerMessageReceivedContext carries PLAYER_MESSAGE_RECEIVED.
type PlayerMessageReceivedContext struct {
	SenderHandle     string   `json:"sender_handle"`
	RecipientHandles []string `json:"recipient_handles"`
	Message          string   `json:"message"`
}

// GameAdvertisedContext carries GAME_ADVERTISED.
type GameAdvertisedContext struct {
	GameID           string      `json:"game_id"`
	Name             string      `json:"name"`
	Mode             engine.Mode `json:"mode"`
	AdvertiserHandle string      `json:"advertiser_handle"`
	Players          int         `json:"players"`
	Visibility       Visibility  `json:"visibility"`
	InvitedHandles   []string    `json:"invited_handles"`
}

// GameInvitationContext carries GAME_INVITATION.
type GameInvitationContext struct {
	GameID           string      `json:"game_id"`
	Name             string      `json:"name"`
	Mode             engine.Mode `json:"mode"`
	AdvertiserHandle string      `json:"advertiser_handle"`
	Players          int         `json:"players"`
	Visibility       Visibility  `json:"visibility"`
}

// GameJoinedContext carries GAME_JOINED.
type GameJoinedContext struct {
	GameID string `json:"game_id"`
}

// GameCancelledContext carries GAME_CANCELLED.
type GameCancelledContext struct {
	Reason  CompletionReason `json:"reason"`
	Comment string           `json:"comment,omitempty"`
}

// GameCompletedContext carries GAME_COMPLETED.
type GameCompletedContext struct {
	Comment string `json:"comment,omitempty"`
}

// GamePlayer is one seat's public view inside GAME_PLAYER_CHANGE.
type GamePlayer struct {
	Handle string     `json:"handle"`
	Type   PlayerType `json:"type"`
	State  SeatState  `json:"state"`
}

// GamePlayerChangeContext carries GAME_PLAYER_CHANGE, keyed by seat color.
type GamePlayerChangeContext struct {
	Comment string                      `json:"comment,omitempty"`
	Players map[engine.Color]GamePlayer `json:"players"`
}

// GameStateChangeContext carries GAME_STATE_CHANGE. State is the receiving
// player's own view of the game.
type GameStateChangeContext struct {
	GameID string      `json:"game_id"`
	State  engine.View `json:"state"`
}

// GamePlayerTurnContext carries GAME_PLAYER_TURN. DrawnCard is empty in
// ADULT mode, where moves span the player's hand.
type GamePlayerTurnContext struct {
	Handle    string        `json:"handle"`
	Color     engine.Color  `json:"color"`
	DrawnCard engine.Card   `json:"drawn_card,omitempty"`
	Moves     []engine.Move `json:"moves"`
}

func invalidf(format string, args ...any) error {
	return &RequestError{Detail: fmt.Sprintf(format, args...)}
}
