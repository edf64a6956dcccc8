package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// EventsSocket streams pipeline and host events to the admin console. Browsers
// cannot set headers on a websocket handshake, so the access token rides in
// the query string.
func (s *Server) EventsSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("token")
	if query == "" {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	claims, err := s.Tokens.ParseAccessToken(query)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	if !hasAnyRole(claims.Roles, staffRoles...) {
		WriteError(w, http.StatusForbidden, "Not allowed")
		return
	}
	if s.Events == nil {
		WriteError(w, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Events.Add(conn)
	s.Log.Debug("event socket connected", "user_id", claims.UserID, "clients", s.Events.ClientCount())
	defer func() {
		s.Events.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
