package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"
	"github.com/rs/zerolog"
)

const wsUserKey = "user_id"

// Event is the frame pushed to dashboards.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WSHandler struct {
	M         *melody.Melody
	jwtSecret string
	log       zerolog.Logger
}

func NewWSHandler(jwtSecret string, log zerolog.Logger) *WSHandler {
	m := melody.New()
	m.Config.MaxMessageSize = 64 * 1024
	// Keep idle connections alive behind proxies
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		userID, _ := s.Get(wsUserKey)
		log.Debug().Interface("user_id", userID).Msg("Websocket connected")
	})
	m.HandleDisconnect(func(s *melody.Session) {
		userID, _ := s.Get(wsUserKey)
		log.Debug().Interface("user_id", userID).Msg("Websocket disconnected")
	})
	m.HandleError(func(s *melody.Session, err error) {
		log.Warn().Err(err).Msg("Websocket error")
	})

	return &WSHandler{M: m, jwtSecret: jwtSecret, log: log}
}

// HandleWS upgrades GET /api/ws?token=<jwt>. Browsers cannot set headers on a
// websocket handshake, so the token travels in the query string.
func (h *WSHandler) HandleWS(c *gin.Context) {
	claims, err := utils.ValidateAccessToken(h.jwtSecret, c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	keys := map[string]interface{}{wsUserKey: claims.UserID}
	if err := h.M.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		log := logger.FromContext(c.Request.Context())
		log.Warn().Err(err).Msg("Failed to upgrade websocket")
	}
}

// Broadcast sends an event to every open session of userID only.
func (h *WSHandler) Broadcast(userID, eventType string, payload interface{}) {
	msg, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("Failed to encode event")
		return
	}

	err = h.M.BroadcastFilter(msg, func(s *melody.Session) bool {
		id, ok := s.Get(wsUserKey)
		return ok && id == userID
	})
	if err != nil {
		h.log.Warn().Err(err).Str("type", eventType).Msg("Broadcast failed")
	}
}

func (h *WSHandler) Close() error {
	return h.M.Close()
}
