package live

import (
	"log"
	"net/http"

	"parking/internal/domain"
	"parking/internal/pkg/jwt"
	"parking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	hub        *Hub
	jwtService *jwt.Service
}

func NewHandler(hub *Hub, jwtService *jwt.Service) *Handler {
	return &Handler{hub: hub, jwtService: jwtService}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws/reservations", h.HandleWebSocket)
}

// HandleWebSocket upgrades to a websocket streaming reservation events.
//
// Endpoint: GET /ws/reservations?token=JWT_TOKEN
//
// Browsers cannot set headers on a websocket handshake, so the token comes
// from the query string.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token is required")
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("live websocket upgrade failed: %v", err)
		return
	}

	staff := domain.UserRole(claims.Role).IsStaff()
	log.Printf("live_subscriber_connected user_id=%d staff=%t", claims.UserID, staff)
	h.hub.ServeWS(conn, claims.UserID, staff)
	log.Printf("live_subscriber_disconnected user_id=%d", claims.UserID)
}
