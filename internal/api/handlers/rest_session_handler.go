package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lepss/rent-simulator/internal/auth"
	"github.com/lepss/rent-simulator/internal/config"
)

// RestSessionHandler mints anonymous sessions. There are no user accounts:
// a session's random subject is the owner key for every simulation created
// under it, and losing the token means losing access to those simulations
// (unless they were exported).
type RestSessionHandler struct {
	cfg *config.Config
}

// NewRestSessionHandler creates a new RestSessionHandler.
func NewRestSessionHandler(cfg *config.Config) *RestSessionHandler {
	return &RestSessionHandler{cfg: cfg}
}

// CreateSession handles POST /v1/session
func (h *RestSessionHandler) CreateSession(c *gin.Context) {
	sessionID := uuid.NewString()

	token, err := auth.GenerateJWT(sessionID, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Error generating session token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sessionID,
		"token":      token,
		"expires_in": int(h.cfg.JwtTTL.Seconds()),
	})
}
