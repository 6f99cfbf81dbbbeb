package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/server"
	"github.com/sihhaapp/sihha/internal/types"
	"go.uber.org/zap"
)

var errRealtimeDisabled = apperr.Unavailable("realtime-unavailable", "realtime updates are not available", nil)

func (a *App) serveWs(w http.ResponseWriter, r *http.Request) {
	if a.cs == nil {
		a.writeError(w, errRealtimeDisabled)
		return
	}

	user := caller(r)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(a.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", zap.String("user_id", user.Id), zap.Error(err))
		return
	}

	client := server.NewClient(types.NewUser(user), conn, a.cs, a.log)

	a.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
