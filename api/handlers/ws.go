package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"creaverse/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler - WebSocket endpoint для push-событий пользователя.
// Первое соединение переводит пользователя в online, закрытие последнего в offline.
func (h *Handler) WSHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade error", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	// контекст запроса отменяется вместе с соединением, presence пишем в фоне
	ctx := context.WithoutCancel(c.Request.Context())

	_ = conn.WriteJSON(services.Frame{Event: "connected", Data: gin.H{"user_id": userID}})

	if h.WS.Add(userID, conn) {
		h.setPresence(ctx, userID, true)
	}
	defer func() {
		if h.WS.Remove(userID, conn) {
			h.setPresence(ctx, userID, false)
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket read error", "user_id", userID, "error", err)
			}
			break
		}
	}
}

func (h *Handler) setPresence(ctx context.Context, userID int64, online bool) {
	set := h.Presence.SetOffline
	if online {
		set = h.Presence.SetOnline
	}
	if _, err := set(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "presence update failed", "user_id", userID, "online", online, "error", err)
	}
}
