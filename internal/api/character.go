package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rpg-nexus/backend/internal/models"
	"rpg-nexus/backend/internal/service"
	"rpg-nexus/backend/pkg/logger"
)

// CharacterHandler handles character CRUD, leveling and campaign progress
type CharacterHandler struct {
	service *service.CharacterService
	logger  *logger.Logger
}

// NewCharacterHandler creates a new character handler
func NewCharacterHandler(service *service.CharacterService, logger *logger.Logger) *CharacterHandler {
	return &CharacterHandler{service: service, logger: logger}
}

func characterID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid character ID"})
		return 0, false
	}
	return uint(id), true
}

// CreateCharacter creates a character for the authenticated user
func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	userID := c.GetUint("userId")

	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	character, err := h.service.CreateCharacter(userID, &req)
	if err != nil {
		h.logger.Error("Error creating character", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create character"})
		return
	}

	c.JSON(http.StatusCreated, character)
}

// ListCharacters returns the authenticated user's characters
func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	userID := c.GetUint("userId")

	characters, err := h.service.ListCharacters(userID)
	if err != nil {
		h.logger.Error("Error listing characters", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list characters"})
		return
	}

	c.JSON(http.StatusOK, characters)
}

// GetCharacter fetches a single character
func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	userID := c.GetUint("userId")
	id, ok := characterID(c)
	if !ok {
		return
	}

	character, err := h.service.GetCharacter(userID, id)
	if err != nil {
		h.respondCharacterError(c, err)
		return
	}

	c.JSON(http.StatusOK, character)
}

// UpdateCharacter applies a partial update
func (h *CharacterHandler) UpdateCharacter(c *gin.Context) {
	userID := c.GetUint("userId")
	id, ok := characterID(c)
	if !ok {
		return
	}

	var req models.UpdateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	character, err := h.service.UpdateCharacter(userID, id, &req)
	if err != nil {
		h.respondCharacterError(c, err)
		return
	}

	c.JSON(http.StatusOK, character)
}

// DeleteCharacter removes a character
func (h *CharacterHandler) DeleteCharacter(c *gin.Context) {
	userID := c.GetUint("userId")
	id, ok := characterID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteCharacter(userID, id); err != nil {
		h.respondCharacterError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AwardExperience grants XP and reports whether a level-up happened
func (h *CharacterHandler) AwardExperience(c *gin.Context) {
	userID := c.GetUint("userId")
	id, ok := characterID(c)
	if !ok {
		return
	}

	var req models.AwardExperienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	character, leveledUp, err := h.service.AwardExperience(userID, id, req.Amount)
	if err != nil {
		h.respondCharacterError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AwardExperienceResponse{
		Character: *character,
		LeveledUp: leveledUp,
	})
}

// GetProgress returns the campaign progress map
func (h *CharacterHandler) GetProgress(c *gin.Context) {
	userID := c.GetUint("userId")
	id, ok := characterID(c)
	if !ok {
		return
	}

	progress, err := h.service.GetProgress(userID, id)
	if err != nil {
		h.respondCharacterError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// SetProgress replaces the campaign progress map
func (h *CharacterHandler) SetProgress(c *gin.Context) {
	userID := c.GetUint("userId")
	id, ok := characterID(c)
	if !ok {
		return
	}

	var progress models.CampaignProgress
	if err := c.ShouldBindJSON(&progress); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	updated, err := h.service.SetProgress(userID, id, progress)
	if err != nil {
		h.respondCharacterError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *CharacterHandler) respondCharacterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCharacterNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Character not found"})
	default:
		h.logger.Error("Character operation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
