package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aranyaherbals/storefront-backend/api/middleware"
	"github.com/aranyaherbals/storefront-backend/api/responses"
	"github.com/aranyaherbals/storefront-backend/internal/realtime"
	"github.com/aranyaherbals/storefront-backend/pkg/auth"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS middleware; the browser
		// does not send preflights for websocket upgrades.
		return true
	},
}

// EventsSocket upgrades the connection and streams order events to the
// caller. Admins see every event; customers only their own orders.
func EventsSocket(hub *realtime.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime hub unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		admin := middleware.RoleFromContext(r.Context()) == string(auth.RoleAdmin)

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the handshake failure to the client.
			if logg != nil {
				logg.Error(r.Context(), "websocket upgrade failed", err)
			}
			return
		}

		var id uuid.UUID
		if !admin {
			id = customerID
		}
		hub.Register(r.Context(), conn, id, admin)
	}
}
