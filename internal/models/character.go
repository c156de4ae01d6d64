package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"
	"time"
)

const (
	xpBase   = 100
	xpFactor = 1.5
)

// XPForNextLevel returns the experience required to advance from the given level.
func XPForNextLevel(level int) int {
	return int(math.Floor(xpBase * math.Pow(float64(level), xpFactor)))
}

// Attributes is the character attribute set, stored as a jsonb column.
type Attributes struct {
	Strength     int `json:"strength"`
	Intelligence int `json:"intelligence"`
	Charisma     int `json:"charisma"`
	Dexterity    int `json:"dexterity"`
	Intuition    int `json:"intuition"`
}

func (a Attributes) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Attributes) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// CampaignProgress maps campaign milestone ids to completion flags.
type CampaignProgress map[string]bool

func (p CampaignProgress) Value() (driver.Value, error) {
	if p == nil {
		p = CampaignProgress{}
	}
	return json.Marshal(p)
}

func (p *CampaignProgress) Scan(value interface{}) error {
	return scanJSON(value, p)
}

func scanJSON(value, dest interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	case nil:
		return nil
	default:
		return errors.New("unsupported jsonb source type")
	}
}

// Character represents a playable character owned by a user
type Character struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	UserID           uint             `gorm:"index;not null" json:"user_id"`
	Name             string           `gorm:"not null" json:"name"`
	Race             string           `gorm:"not null" json:"race"`
	Class            string           `gorm:"not null" json:"class"`
	Description      string           `json:"description,omitempty"`
	Attributes       Attributes       `gorm:"type:jsonb" json:"attributes"`
	Level            int              `gorm:"default:1" json:"level"`
	Experience       int              `gorm:"default:0" json:"experience"`
	CampaignProgress CampaignProgress `gorm:"type:jsonb" json:"campaign_progress"`
	RaceIcon         string           `json:"race_icon"`
	ClassIcon        string           `json:"class_icon"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// AwardExperience adds XP and applies as many level-ups as the new total
// covers in a single pass. Each level grants +1 strength and +1 intelligence.
// Returns true when at least one level was gained.
func (c *Character) AwardExperience(amount int) bool {
	c.Experience += amount
	leveledUp := false
	for c.Experience >= XPForNextLevel(c.Level) {
		c.Experience -= XPForNextLevel(c.Level)
		c.Level++
		c.Attributes.Strength++
		c.Attributes.Intelligence++
		leveledUp = true
	}
	return leveledUp
}

type CreateCharacterRequest struct {
	Name        string     `json:"name" binding:"required"`
	Race        string     `json:"race" binding:"required"`
	Class       string     `json:"class" binding:"required"`
	Description string     `json:"description"`
	Attributes  Attributes `json:"attributes"`
	RaceIcon    string     `json:"race_icon"`
	ClassIcon   string     `json:"class_icon"`
}

// UpdateCharacterRequest carries a partial update; nil fields are untouched.
type UpdateCharacterRequest struct {
	Name        *string     `json:"name"`
	Race        *string     `json:"race"`
	Class       *string     `json:"class"`
	Description *string     `json:"description"`
	Attributes  *Attributes `json:"attributes"`
	RaceIcon    *string     `json:"race_icon"`
	ClassIcon   *string     `json:"class_icon"`
}

type AwardExperienceRequest struct {
	Amount int `json:"amount" binding:"required,gt=0"`
}

type AwardExperienceResponse struct {
	Character Character `json:"character"`
	LeveledUp bool      `json:"leveled_up"`
}
