package handlers

import (
	"net/http"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/gorilla/websocket"
	"github.com/pirate-baby/ATC/internal/checkauth"
	"github.com/pirate-baby/ATC/internal/events"
	"github.com/pirate-baby/ATC/internal/metrics"
	"github.com/pirate-baby/ATC/internal/store"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origins are already filtered by the CORS layer on the REST
	// surface; the WS endpoint authenticates every connection itself.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler streams pool events over WebSocket
type EventsHandler struct {
	store       store.Store
	broadcaster *events.Broadcaster
}

// NewEventsHandler creates a new pool events stream handler
func NewEventsHandler(appStore store.Store, broadcaster *events.Broadcaster) *EventsHandler {
	return &EventsHandler{
		store:       appStore,
		broadcaster: broadcaster,
	}
}

// Stream handles GET /ws/claude-tokens/pool/events. Browsers cannot set an
// Authorization header on a WebSocket, so the JWT rides a query parameter;
// auth failures close with policy violation (1008) after the upgrade.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}

	if !h.authenticate(r) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"),
			time.Now().Add(wsWriteWait))
		conn.Close()
		return
	}

	sub := h.broadcaster.Subscribe()
	metrics.EventSubscribers.Inc()

	go h.writeLoop(conn, sub)
	h.readLoop(conn, sub)
}

// authenticate verifies the query-param JWT and checks the user exists
func (h *EventsHandler) authenticate(r *http.Request) bool {
	token := r.URL.Query().Get("token")
	if token == "" {
		return false
	}

	claims, err := checkauth.VerifyAccessToken(token)
	if err != nil {
		return false
	}

	if _, err := h.store.GetUserByID(r.Context(), claims.UserID); err != nil {
		return false
	}
	return true
}

// readLoop discards client frames and detects disconnects. Unsubscribing
// closes the event channel, which ends the write loop.
func (h *EventsHandler) readLoop(conn *websocket.Conn, sub chan events.Event) {
	defer func() {
		h.broadcaster.Unsubscribe(sub)
		metrics.EventSubscribers.Dec()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Log.WithError(err).Debug("Pool events subscriber closed unexpectedly")
			}
			return
		}
	}
}

// writeLoop forwards events to the client and keeps the connection alive
func (h *EventsHandler) writeLoop(conn *websocket.Conn, sub chan events.Event) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
