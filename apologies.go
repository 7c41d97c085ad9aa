package main

import (
	"net/http"
	"net/url"

	"github.com/benbjohnson/clock"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Seednode/apologies/server"
)

func newGameServer(cfg *Config, log *zap.SugaredLogger) *server.Server {
	return server.New(server.Config{
		WebsocketLimit:        cfg.websocketLimit,
		RegisteredPlayerLimit: cfg.registeredPlayerLimit,
		TotalGameLimit:        cfg.totalGameLimit,
		InProgressGameLimit:   cfg.inProgressGameLimit,

		WebsocketIdleThreshold:     cfg.websocketIdleThresh,
		WebsocketInactiveThreshold: cfg.websocketInactiveThresh,
		PlayerIdleThreshold:        cfg.playerIdleThresh,
		PlayerInactiveThreshold:    cfg.playerInactiveThresh,
		GameIdleThreshold:          cfg.gameIdleThresh,
		GameInactiveThreshold:      cfg.gameInactiveThresh,
		GameRetentionThreshold:     cfg.gameRetentionThresh,

		WebsocketCheckDelay:  cfg.websocketCheckDelay,
		WebsocketCheckPeriod: cfg.websocketCheckPeriod,
		PlayerCheckDelay:     cfg.playerCheckDelay,
		PlayerCheckPeriod:    cfg.playerCheckPeriod,
		GameCheckDelay:       cfg.gameCheckDelay,
		GameCheckPeriod:      cfg.gameCheckPeriod,
		ObsoleteCheckDelay:   cfg.obsoleteCheckDelay,
		ObsoleteCheckPeriod:  cfg.obsoleteCheckPeriod,

		CloseTimeout: cfg.closeTimeout,
		MessageScope: cfg.messageScope,
	}, log, clock.New())
}

func serveWebsocket(games *server.Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		games.Accept(w, r, realIP(r))
	}
}

// serveGameQR renders a PNG QR code of the websocket join URL for a game,
// so a phone can scan its way into an advertised game.
func serveGameQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		scheme := "ws"
		if r.TLS != nil {
			scheme = "wss"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
			scheme = "wss"
		}

		target := scheme + "://" + r.Host + cfg.prefix + "/ws?game_id=" + url.QueryEscape(gameID)

		const qrSize = 320
		png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		_, _ = w.Write(png)
	}
}

func registerGameServer(cfg *Config, games *server.Server, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/ws", serveWebsocket(games))

	mux.GET(cfg.prefix+"/games/:gameid/qr", serveGameQR(cfg))
}
