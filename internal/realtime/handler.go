package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"delixmi-order-core/internal/auth"
	"delixmi-order-core/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is the caller's responsibility (CORS policy already
	// applies at the chi/cors layer for regular HTTP); the handshake itself
	// accepts any origin the way the host's WS endpoint did.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades a request to a WebSocket connection, enforcing spec
// §4.7's connection protocol.
type Handler struct {
	bus       *Bus
	jwtSecret string
	log       *zap.Logger
}

func NewHandler(bus *Bus, jwtSecret string, log *zap.Logger) *Handler {
	return &Handler{bus: bus, jwtSecret: jwtSecret, log: log}
}

// ServeHTTP implements the handshake: bearer token (query param, since
// browsers cannot set headers on a WS upgrade request), principal
// resolution, automatic room joins, and a CONNECTION_ESTABLISHED ack.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := auth.VerifyAccessToken(token, h.jwtSecret)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	if !claims.IsActive {
		http.Error(w, "account is not active", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("realtime: upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn, h.log)
	rooms := roomsFor(claims)
	for _, room := range rooms {
		h.bus.registry.join(room, c)
	}

	go c.writePump()
	sendConnectionEstablished(c, rooms)
	c.readPump(func() { h.bus.registry.leaveAll(rooms, c) })
}

func sendConnectionEstablished(c *client, rooms []string) {
	event := newEvent("CONNECTION_ESTABLISHED", map[string]any{"rooms": rooms})
	encoded, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- encoded:
	default:
	}
}

// roomsFor implements spec §4.7 step 2's room-assignment rules: an owner
// auto-joins its restaurant room, a driver auto-joins its own user room,
// and every other binding is accepted as a read-only user-room subscriber.
func roomsFor(claims *auth.Claims) []string {
	seen := make(map[string]struct{})
	var rooms []string
	add := func(room string) {
		if _, ok := seen[room]; !ok {
			seen[room] = struct{}{}
			rooms = append(rooms, room)
		}
	}

	for _, b := range claims.Bindings {
		if b.Role == domain.RoleOwner && b.RestaurantID != nil {
			add(restaurantRoom(*b.RestaurantID))
		}
	}
	if claims.HasRole(domain.RoleDriverPlatform) || claims.HasRole(domain.RoleDriverRestaurant) {
		add(userRoom(claims.UserID))
	}
	if len(rooms) == 0 {
		add(userRoom(claims.UserID))
	}
	return rooms
}
