package gateway

import (
	"net/http"

	"github.com/quizroom/quizroom/internal/identity"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for room connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	coordinator       *Coordinator
	source            identity.Source
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, coordinator *Coordinator, source identity.Source) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		coordinator:       coordinator,
		source:            source,
	}
}

// HandleRoomConnection resolves the caller's identity and upgrades the
// connection. A failed identity check is the only immediate disconnect: the
// upgrade is refused with 401 and the request never reaches room state.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	ident, err := h.source.Identify(r)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rejecting unidentified connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, ident, h.coordinator); err != nil {
		log.Error().
			Err(err).
			Str("username", ident.Username).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/room", h.HandleRoomConnection)
}
