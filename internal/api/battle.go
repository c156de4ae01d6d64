package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rpg-nexus/backend/internal/service"
	"rpg-nexus/backend/pkg/logger"
)

// BattleHandler exposes the buffered battle endpoints. Streamed turns go
// through the WebSocket gateway; these endpoints resolve whole turns in
// one response.
type BattleHandler struct {
	narrator *service.NarratorService
	battles  *service.BattleService
	logger   *logger.Logger
}

// NewBattleHandler creates a new battle handler
func NewBattleHandler(narrator *service.NarratorService, battles *service.BattleService, logger *logger.Logger) *BattleHandler {
	return &BattleHandler{narrator: narrator, battles: battles, logger: logger}
}

type startBattleRequest struct {
	CharacterID uint   `json:"character_id" binding:"required"`
	BattleID    string `json:"battle_id" binding:"required"`
	Theme       string `json:"theme" binding:"required"`
}

// StartBattle creates a new battle and returns its opening state
func (h *BattleHandler) StartBattle(c *gin.Context) {
	userID := c.GetUint("userId")

	var req startBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	state, err := h.narrator.StartBattle(c.Request.Context(), userID, req.CharacterID, req.BattleID, req.Theme)
	if err != nil {
		h.respondBattleError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

type battleActionRequest struct {
	CharacterID uint   `json:"character_id" binding:"required"`
	BattleID    string `json:"battle_id" binding:"required"`
	Action      string `json:"action" binding:"required"`
}

// TakeAction resolves one player action as a buffered narrator turn
func (h *BattleHandler) TakeAction(c *gin.Context) {
	userID := c.GetUint("userId")

	var req battleActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	narrative, event, state, err := h.narrator.TakeAction(c.Request.Context(), userID, req.CharacterID, req.BattleID, req.Action)
	if err != nil {
		h.respondBattleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"narrative": narrative,
		"event":     event,
		"state":     state,
	})
}

// Suggestions returns three short next actions for the player
func (h *BattleHandler) Suggestions(c *gin.Context) {
	userID := c.GetUint("userId")

	characterID, _ := strconv.ParseUint(c.Query("character_id"), 10, 32)
	battleID := c.Query("battle_id")
	theme := c.Query("theme")

	if battleID == "" && theme == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either battle_id or theme is required"})
		return
	}

	suggestions, err := h.narrator.Suggestions(c.Request.Context(), userID, uint(characterID), battleID, theme)
	if err != nil {
		h.respondBattleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// MostRecentState returns the latest battle state for a character
func (h *BattleHandler) MostRecentState(c *gin.Context) {
	userID := c.GetUint("userId")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid character ID"})
		return
	}

	state, err := h.battles.GetMostRecentState(c.Request.Context(), uint(id), userID)
	if err != nil {
		h.respondBattleError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *BattleHandler) respondBattleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCharacterNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Character not found"})
	case errors.Is(err, service.ErrBattleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Battle not found"})
	default:
		h.logger.Error("Battle operation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
