package service

import (
	"errors"

	"gorm.io/gorm"

	"rpg-nexus/backend/internal/models"
)

// ErrCharacterNotFound covers both a missing character and an ownership
// mismatch: callers cannot tell the difference, so other users' characters
// cannot be probed.
var ErrCharacterNotFound = errors.New("character not found")

// CharacterService handles character CRUD, leveling and campaign progress.
// Every operation is scoped to the owning user.
type CharacterService struct {
	db *gorm.DB
}

// NewCharacterService creates a new character service
func NewCharacterService(db *gorm.DB) *CharacterService {
	return &CharacterService{db: db}
}

// CreateCharacter creates a character for the given user
func (s *CharacterService) CreateCharacter(userID uint, req *models.CreateCharacterRequest) (*models.Character, error) {
	character := &models.Character{
		UserID:           userID,
		Name:             req.Name,
		Race:             req.Race,
		Class:            req.Class,
		Description:      req.Description,
		Attributes:       req.Attributes,
		Level:            1,
		Experience:       0,
		CampaignProgress: models.CampaignProgress{},
		RaceIcon:         req.RaceIcon,
		ClassIcon:        req.ClassIcon,
	}

	if err := s.db.Create(character).Error; err != nil {
		return nil, err
	}
	return character, nil
}

// ListCharacters returns all characters owned by the user
func (s *CharacterService) ListCharacters(userID uint) ([]models.Character, error) {
	var characters []models.Character
	result := s.db.Where("user_id = ?", userID).Order("id").Find(&characters)
	if result.Error != nil {
		return nil, result.Error
	}
	return characters, nil
}

// GetCharacter fetches one character, rejecting cross-user access
func (s *CharacterService) GetCharacter(userID, id uint) (*models.Character, error) {
	var character models.Character
	result := s.db.Where("id = ? AND user_id = ?", id, userID).First(&character)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, result.Error
	}
	return &character, nil
}

// UpdateCharacter applies a partial update
func (s *CharacterService) UpdateCharacter(userID, id uint, req *models.UpdateCharacterRequest) (*models.Character, error) {
	character, err := s.GetCharacter(userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		character.Name = *req.Name
	}
	if req.Race != nil {
		character.Race = *req.Race
	}
	if req.Class != nil {
		character.Class = *req.Class
	}
	if req.Description != nil {
		character.Description = *req.Description
	}
	if req.Attributes != nil {
		character.Attributes = *req.Attributes
	}
	if req.RaceIcon != nil {
		character.RaceIcon = *req.RaceIcon
	}
	if req.ClassIcon != nil {
		character.ClassIcon = *req.ClassIcon
	}

	if err := s.db.Save(character).Error; err != nil {
		return nil, err
	}
	return character, nil
}

// DeleteCharacter removes a character and its battle states
func (s *CharacterService) DeleteCharacter(userID, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Character{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCharacterNotFound
		}
		return tx.Where("character_id = ?", id).Delete(&models.BattleState{}).Error
	})
}

// AwardExperience adds XP, applying any level-ups in the same update
func (s *CharacterService) AwardExperience(userID, id uint, amount int) (*models.Character, bool, error) {
	character, err := s.GetCharacter(userID, id)
	if err != nil {
		return nil, false, err
	}

	leveledUp := character.AwardExperience(amount)

	if err := s.db.Save(character).Error; err != nil {
		return nil, false, err
	}
	return character, leveledUp, nil
}

// GetProgress returns the campaign progress map
func (s *CharacterService) GetProgress(userID, id uint) (models.CampaignProgress, error) {
	character, err := s.GetCharacter(userID, id)
	if err != nil {
		return nil, err
	}
	if character.CampaignProgress == nil {
		return models.CampaignProgress{}, nil
	}
	return character.CampaignProgress, nil
}

// SetProgress replaces the campaign progress map
func (s *CharacterService) SetProgress(userID, id uint, progress models.CampaignProgress) (models.CampaignProgress, error) {
	character, err := s.GetCharacter(userID, id)
	if err != nil {
		return nil, err
	}

	character.CampaignProgress = progress
	if err := s.db.Save(character).Error; err != nil {
		return nil, err
	}
	return character.CampaignProgress, nil
}
