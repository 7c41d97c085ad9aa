package server

import "github.com/google/uuid"

// Player ids, game ids and connection keys are opaque and unguessable.
// Possession of a player id is the only authentication the server has, so
// ids never appear in logs (see maskPlayerIDs).

func newPlayerID() string      { return uuid.NewString() }
func newGameID() string        { return uuid.NewString() }
func newConnectionKey() string { return uuid.NewString() }
