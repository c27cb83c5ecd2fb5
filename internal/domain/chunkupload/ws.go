package chunkupload

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mediastore/internal/pkg/jwt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,

	// Allow any origin for dev; tighten in production.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler streams upload session progress over a WebSocket so dashboards
// can render a live progress bar without polling the status endpoint.
type WSHandler struct {
	service    *Service
	jwtService *jwt.Service
	interval   time.Duration
}

func NewWSHandler(service *Service, jwtService *jwt.Service) *WSHandler {
	return &WSHandler{service: service, jwtService: jwtService, interval: 2 * time.Second}
}

// Progress upgrades the connection and pushes the session status every tick
// until the session reaches a terminal state or the client disconnects.
//
// Endpoint: GET /uploads/sessions/:id/progress?token=JWT_TOKEN
//
// Auth travels in the query because WebSocket clients cannot set headers.
func (h *WSHandler) Progress(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	sessionID := c.Param("id")
	if _, err := h.service.Status(c.Request.Context(), claims.OrgID, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	go h.readLoop(conn)

	h.pushLoop(conn, claims.OrgID, sessionID)
}

// pushLoop writes status frames until the session goes terminal. The final
// frame carries the terminal status so clients know not to reconnect.
func (h *WSHandler) pushLoop(conn *websocket.Conn, orgID int64, sessionID string) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for range ticker.C {
		status, err := h.service.Status(context.Background(), orgID, sessionID)
		if err != nil {
			conn.WriteJSON(gin.H{"type": "error", "error": err.Error()})
			return
		}
		if err := conn.WriteJSON(gin.H{"type": "progress", "data": status}); err != nil {
			return
		}
		if status.Session.IsTerminal() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(status.Session.Status)))
			return
		}
	}
}

// readLoop drains client frames so pings and close messages are processed.
func (h *WSHandler) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
	}
}
