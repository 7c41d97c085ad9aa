// Package protocol defines the JSON protocol spoken over the game
// websocket: the request and event kinds, the shared enumerations, the
// context payload carried by each kind, and request validation.
//
// Every frame in either direction is a single JSON object:
//
//	{"message": <KIND>, "player_id": "...", "context": {...}}
//
// player_id appears only on client frames, and only for requests that
// require an authenticated player.
package protocol

// Kind names one request or event message.
type Kind string

// Requests, client to server.
const (
	RegisterPlayer     Kind = "REGISTER_PLAYER"
	ReregisterPlayer   Kind = "REREGISTER_PLAYER"
	UnregisterPlayer   Kind = "UNREGISTER_PLAYER"
	ListPlayers        Kind = "LIST_PLAYERS"
	AdvertiseGame      Kind = "ADVERTISE_GAME"
	ListAvailableGames Kind = "LIST_AVAILABLE_GAMES"
	JoinGame           Kind = "JOIN_GAME"
	QuitGame           Kind = "QUIT_GAME"
	StartGame          Kind = "START_GAME"
	CancelGame         Kind = "CANCEL_GAME"
	ExecuteMove        Kind = "EXECUTE_MOVE"
	RetrieveGameState  Kind = "RETRIEVE_GAME_STATE"
	SendMessage        Kind = "SEND_MESSAGE"
)

// Events, server to client.
const (
	RequestFailed         Kind = "REQUEST_FAILED"
	ServerShutdown        Kind = "SERVER_SHUTDOWN"
	WebsocketIdle         Kind = "WEBSOCKET_IDLE"
	WebsocketInactive     Kind = "WEBSOCKET_INACTIVE"
	RegisteredPlayers     Kind = "REGISTERED_PLAYERS"
	AvailableGames        Kind = "AVAILABLE_GAMES"
	PlayerRegistered      Kind = "PLAYER_REGISTERED"
	PlayerIdle            Kind = "PLAYER_IDLE"
	PlayerInactive        Kind = "PLAYER_INACTIVE"
	PlayerMessageReceived Kind = "PLAYER_MESSAGE_RECEIVED"
	GameAdvertised        Kind = "GAME_ADVERTISED"
	GameInvitation        Kind = "GAME_INVITATION"
	GameJoined            Kind = "GAME_JOINED"
	GameStarted           Kind = "GAME_STARTED"
	GameCancelled         Kind = "GAME_CANCELLED"
	GameCompleted         Kind = "GAME_COMPLETED"
	GameIdle              Kind = "GAME_IDLE"
	GamePlayerChange      Kind = "GAME_PLAYER_CHANGE"
	GameStateChange       Kind = "GAME_STATE_CHANGE"
	GamePlayerTurn        Kind = "GAME_PLAYER_TURN"
)

// Visibility controls who may discover and join an advertised game.
type Visibility string

const (
	Public  Visibility = "PUBLIC"
	Private Visibility = "PRIVATE"
)

func (v Visibility) valid() bool { return v == Public || v == Private }

// PlayerType distinguishes humans from engine-controlled seats.
type PlayerType string

const (
	Human        PlayerType = "HUMAN"
	Programmatic PlayerType = "PROGRAMMATIC"
)

// ConnectionState tracks whether a player has a live websocket bound.
type ConnectionState string

const (
	Connected    ConnectionState = "CONNECTED"
	Disconnected ConnectionState = "DISCONNECTED"
)

// ActivityState tracks how recently an entity produced traffic.
type ActivityState string

const (
	Active   ActivityState = "ACTIVE"
	Idle     ActivityState = "IDLE"
	Inactive ActivityState = "INACTIVE"
)

// PlayState tracks a player's relationship to games.
type PlayState string

const (
	Waiting  PlayState = "WAITING"
	Joined   PlayState = "JOINED"
	Playing  PlayState = "PLAYING"
	Finished PlayState = "FINISHED"
)

// SeatState tracks one seat inside a game's seat table.
type SeatState string

const (
	SeatJoined       SeatState = "JOINED"
	SeatPlaying      SeatState = "PLAYING"
	SeatQuit         SeatState = "QUIT"
	SeatDisconnected SeatState = "DISCONNECTED"
	SeatFinished     SeatState = "FINISHED"
)

// GameState tracks a game's lifecycle.
type GameState string

const (
	Advertised GameState = "ADVERTISED"
	Started    GameState = "STARTED"
	Completed  GameState = "COMPLETED"
	Cancelled  GameState = "CANCELLED"
)

// CompletionReason records why a game reached COMPLETED or CANCELLED.
type CompletionReason string

const (
	ReasonWon       CompletionReason = "WON"
	ReasonCancelled CompletionReason = "CANCELLED"
	ReasonNotViable CompletionReason = "NOT_VIABLE"
	ReasonInactive  CompletionReason = "INACTIVE"
	ReasonShutdown  CompletionReason = "SHUTDOWN"
)

// FailureReason is the typed reason carried by every REQUEST_FAILED event.
type FailureReason string

const (
	InvalidRequest      FailureReason = "INVALID_REQUEST"
	HandleTaken         FailureReason = "HANDLE_TAKEN"
	UserLimit           FailureReason = "USER_LIMIT"
	TotalGameLimit      FailureReason = "TOTAL_GAME_LIMIT"
	InProgressGameLimit FailureReason = "IN_PROGRESS_GAME_LIMIT"
	AlreadyPlaying      FailureReason = "ALREADY_PLAYING"
	InvalidPlayer       FailureReason = "INVALID_PLAYER"
	InvalidGame         FailureReason = "INVALID_GAME"
	GameAlreadyStarted  FailureReason = "GAME_ALREADY_STARTED"
	NotInvited          FailureReason = "NOT_INVITED"
	NoSeats             FailureReason = "NO_SEATS"
	NotAdvertiser       FailureReason = "NOT_ADVERTISER"
	NotYourTurn         FailureReason = "NOT_YOUR_TURN"
	IllegalMove         FailureReason = "ILLEGAL_MOVE"
	InvalidGameState    FailureReason = "INVALID_GAME_STATE"
	MessageTooLarge     FailureReason = "MESSAGE_TOO_LARGE"
	NotAuthorized       FailureReason = "NOT_AUTHORIZED"
	WebsocketLimit      FailureReason = "WEBSOCKET_LIMIT"
	InternalError       FailureReason = "INTERNAL_ERROR"
)

var failureComments = map[FailureReason]string{
	InvalidRequest:      "Invalid request",
	HandleTaken:         "Handle is already in use",
	UserLimit:           "System user limit reached; try again later",
	TotalGameLimit:      "System game limit reached; try again later",
	InProgressGameLimit: "System in-progress game limit reached; try again later",
	AlreadyPlaying:      "Player is already playing a game",
	InvalidPlayer:       "Unknown or invalid player",
	InvalidGame:         "Unknown or invalid game",
	GameAlreadyStarted:  "Game is already being played",
	NotInvited:          "Player was not invited to this game",
	NoSeats:             "No seats left in this game",
	NotAdvertiser:       "Player did not advertise this game",
	NotYourTurn:         "No move is pending for this player",
	IllegalMove:         "The chosen move is not legal",
	InvalidGameState:    "Game is not in a state where that is possible",
	MessageTooLarge:     "Message exceeds the maximum allowed size",
	NotAuthorized:       "Missing or invalid player id",
	WebsocketLimit:      "Connection limit reached; try again later",
	InternalError:       "Internal error",
}

// Comment returns the default human-readable comment for the reason.
func (r FailureReason) Comment() string {
	if c, ok := failureComments[r]; ok {
		return c
	}
	return string(r)
}
