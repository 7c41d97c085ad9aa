package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Message  Kind            `json:"message"`
	PlayerID string          `json:"player_id,omitempty"`
	Context  json.RawMessage `json:"context,omitempty"`
}

// RequestError describes a frame that parsed as JSON but failed request
// validation: an unknown kind, a missing context, or bad context fields. The
// transport stays healthy and the client gets a REQUEST_FAILED.
type RequestError struct {
	Detail string
}

func (e *RequestError) Error() string { return e.Detail }

// Request is a decoded client frame. Context is nil for kinds that carry
// none, otherwise a pointer to the kind's context struct.
type Request struct {
	Kind     Kind
	PlayerID string
	Context  any
}

type validated interface {
	validate() error
}

// DecodeRequest parses and validates one client frame. A JSON error means
// the peer is not speaking the protocol and is returned as-is; anything
// recognizable but wrong comes back as a *RequestError.
func DecodeRequest(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Request{}, fmt.Errorf("decode frame: %w", err)
	}
	req := Request{Kind: env.Message, PlayerID: env.PlayerID}

	switch env.Message {
	case RegisterPlayer:
		ctx := &RegisterPlayerContext{}
		if err := decodeContext(env.Context, ctx); err != nil {
			return req, err
		}
		req.Context = ctx
	case AdvertiseGame:
		ctx := &AdvertiseGameContext{}
		if err := decodeContext(env.Context, ctx); err != nil {
			return req, err
		}
		req.Context = ctx
	case JoinGame:
		ctx := &JoinGameContext{}
		if err := decodeContext(env.Context, ctx); err != nil {
			return req, err
		}
		req.Context = ctx
	case ExecuteMove:
		ctx := &ExecuteMoveContext{}
		if err := decodeContext(env.Context, ctx); err != nil {
			return req, err
		}
		req.Context = ctx
	case SendMessage:
		ctx := &SendMessageContext{}
		if err := decodeContext(env.Context, ctx); err != nil {
			return req, err
		}
		req.Context = ctx
	case ReregisterPlayer, UnregisterPlayer, ListPlayers, ListAvailableGames,
		QuitGame, StartGame, CancelGame, RetrieveGameState:
		// no context
	default:
		return req, &RequestError{Detail: fmt.Sprintf("unrecognized message %q", env.Message)}
	}
	return req, nil
}

func decodeContext(raw json.RawMessage, into validated) error {
	if len(raw) == 0 {
		return &RequestError{Detail: "missing context"}
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return &RequestError{Detail: "malformed context: " + err.Error()}
	}
	return into.validate()
}

// Event is one outbound message before serialization.
type Event struct {
	Message Kind `json:"message"`
	Context any  `json:"context,omitempty"`
}

// Encode renders the event as one wire frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a server frame into its typed context. The server only
// encodes events; this is for clients and tests.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}
	ev := Event{Message: env.Message}

	var ctx any
	switch env.Message {
	case RequestFailed:
		ctx = &RequestFailedContext{}
	case RegisteredPlayers:
		ctx = &RegisteredPlayersContext{}
	case AvailableGames:
		ctx = &AvailableGamesContext{}
	case PlayerRegistered:
		ctx = &PlayerRegisteredContext{}
	case PlayerMessageReceived:
		ctx = &PlayerMessageReceivedContext{}
	case GameAdvertised:
		ctx = &GameAdvertisedContext{}
	case GameInvitation:
		ctx = &GameInvitationContext{}
	case GameJoined:
		ctx = &GameJoinedContext{}
	case GameCancelled:
		ctx = &GameCancelledContext{}
	case GameCompleted:
		ctx = &GameCompletedContext{}
	case GamePlayerChange:
		ctx = &GamePlayerChangeContext{}
	case GameStateChange:
		ctx = &GameStateChangeContext{}
	case GamePlayerTurn:
		ctx = &GamePlayerTurnContext{}
	case ServerShutdown, WebsocketIdle, WebsocketInactive,
		PlayerIdle, PlayerInactive, GameStarted, GameIdle:
		return ev, nil
	default:
		return ev, fmt.Errorf("unrecognized event %q", env.Message)
	}
	if len(env.Context) > 0 {
		if err := json.Unmarshal(env.Context, ctx); err != nil {
			return ev, fmt.Errorf("decode %s context: %w", env.Message, err)
		}
	}
	ev.Context = ctx
	return ev, nil
}
