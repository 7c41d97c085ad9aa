package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/apologies/engine"
)

func TestDecodeRequestRegisterPlayer(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"message":"REGISTER_PLAYER","context":{"handle":"leela"}}`))
	require.NoError(t, err)
	assert.Equal(t, RegisterPlayer, req.Kind)
	assert.Empty(t, req.PlayerID)

	ctx, ok := req.Context.(*RegisterPlayerContext)
	require.True(t, ok)
	assert.Equal(t, "leela", ctx.Handle)
}

func TestDecodeRequestAdvertiseGame(t *testing.T) {
	frame := `{"message":"ADVERTISE_GAME","player_id":"p1","context":
		{"name":"friday night","mode":"ADULT","players":3,"visibility":"PRIVATE","invited_handles":["fry","bender"]}}`
	req, err := DecodeRequest([]byte(frame))
	require.NoError(t, err)
	assert.Equal(t, "p1", req.PlayerID)

	ctx, ok := req.Context.(*AdvertiseGameContext)
	require.True(t, ok)
	assert.Equal(t, "friday night", ctx.Name)
	assert.Equal(t, engine.Adult, ctx.Mode)
	assert.Equal(t, 3, ctx.Players)
	assert.Equal(t, Private, ctx.Visibility)
	assert.Equal(t, []string{"fry", "bender"}, ctx.InvitedHandles)
}

func TestDecodeRequestWithoutContext(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"message":"QUIT_GAME","player_id":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, QuitGame, req.Kind)
	assert.Equal(t, "abc", req.PlayerID)
	assert.Nil(t, req.Context)
}

func TestDecodeRequestRejectsBadFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame string
	}{
		{"unknown kind", `{"message":"MAKE_COFFEE"}`},
		{"missing context", `{"message":"REGISTER_PLAYER"}`},
		{"malformed context", `{"message":"EXECUTE_MOVE","player_id":"p","context":{"move_id":7}}`},
		{"blank handle", `{"message":"REGISTER_PLAYER","context":{"handle":""}}`},
		{"handle too long", `{"message":"REGISTER_PLAYER","context":{"handle":"` + strings.Repeat("x", 26) + `"}}`},
		{"blank game name", `{"message":"ADVERTISE_GAME","player_id":"p","context":{"name":"","mode":"STANDARD","players":2,"visibility":"PUBLIC"}}`},
		{"too many players", `{"message":"ADVERTISE_GAME","player_id":"p","context":{"name":"g","mode":"STANDARD","players":5,"visibility":"PUBLIC"}}`},
		{"bad mode", `{"message":"ADVERTISE_GAME","player_id":"p","context":{"name":"g","mode":"TOURNAMENT","players":2,"visibility":"PUBLIC"}}`},
		{"bad visibility", `{"message":"ADVERTISE_GAME","player_id":"p","context":{"name":"g","mode":"STANDARD","players":2,"visibility":"HIDDEN"}}`},
		{"blank invited handle", `{"message":"ADVERTISE_GAME","player_id":"p","context":{"name":"g","mode":"STANDARD","players":2,"visibility":"PUBLIC","invited_handles":[""]}}`},
		{"blank game id", `{"message":"JOIN_GAME","player_id":"p","context":{"game_id":""}}`},
		{"blank move id", `{"message":"EXECUTE_MOVE","player_id":"p","context":{"move_id":""}}`},
		{"blank message", `{"message":"SEND_MESSAGE","player_id":"p","context":{"message":"","recipient_handles":["fry"]}}`},
		{"no recipients", `{"message":"SEND_MESSAGE","player_id":"p","context":{"message":"hi","recipient_handles":[]}}`},
		{"blank recipient", `{"message":"SEND_MESSAGE","player_id":"p","context":{"message":"hi","recipient_handles":[""]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tc.frame))
			var reqErr *RequestError
			require.ErrorAs(t, err, &reqErr, "want a request error, got %v", err)
			assert.NotEmpty(t, reqErr.Detail)
		})
	}
}

func TestDecodeRequestGarbageIsNotARequestError(t *testing.T) {
	_, err := DecodeRequest([]byte("not json"))
	require.Error(t, err)

	var reqErr *RequestError
	assert.False(t, errors.As(err, &reqErr), "transport-level garbage should not be answerable")
}

func TestEventRoundTrip(t *testing.T) {
	frame, err := Event{
		Message: RequestFailed,
		Context: &RequestFailedContext{Reason: HandleTaken, Comment: HandleTaken.Comment()},
	}.Encode()
	require.NoError(t, err)

	ev, err := DecodeEvent(frame)
	require.NoError(t, err)
	assert.Equal(t, RequestFailed, ev.Message)

	ctx, ok := ev.Context.(*RequestFailedContext)
	require.True(t, ok)
	assert.Equal(t, HandleTaken, ctx.Reason)
	assert.Equal(t, HandleTaken.Comment(), ctx.Comment)
}

func TestEncodeOmitsEmptyContext(t *testing.T) {
	frame, err := Event{Message: ServerShutdown}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"SERVER_SHUTDOWN"}`, string(frame))

	ev, err := DecodeEvent(frame)
	require.NoError(t, err)
	assert.Equal(t, ServerShutdown, ev.Message)
	assert.Nil(t, ev.Context)
}

func TestDecodeEventRejectsUnknownKind(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"message":"GAME_EXPLODED"}`))
	assert.Error(t, err)
}

func TestFailureReasonComments(t *testing.T) {
	assert.NotEmpty(t, HandleTaken.Comment())
	assert.NotEmpty(t, NotYourTurn.Comment())
	assert.NotEmpty(t, InternalError.Comment())

	// unmapped reasons fall back to their own name
	assert.Equal(t, "SOLAR_FLARE", FailureReason("SOLAR_FLARE").Comment())
}
