package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPForNextLevel(t *testing.T) {
	assert.Equal(t, 100, XPForNextLevel(1))
	assert.Equal(t, 282, XPForNextLevel(2))
	assert.Equal(t, 519, XPForNextLevel(3))
}

func TestAwardExperienceExactThreshold(t *testing.T) {
	c := &Character{
		Level:      1,
		Experience: 0,
		Attributes: Attributes{Strength: 3, Intelligence: 2},
	}

	leveledUp := c.AwardExperience(XPForNextLevel(1))

	assert.True(t, leveledUp)
	assert.Equal(t, 2, c.Level)
	assert.Zero(t, c.Experience, "no leftover XP on an exact threshold")
	assert.Equal(t, 4, c.Attributes.Strength)
	assert.Equal(t, 3, c.Attributes.Intelligence)
}

func TestAwardExperienceMultipleLevels(t *testing.T) {
	c := &Character{Level: 1, Attributes: Attributes{}}

	// Enough for levels 1 and 2 with 10 XP left over.
	leveledUp := c.AwardExperience(XPForNextLevel(1) + XPForNextLevel(2) + 10)

	assert.True(t, leveledUp)
	assert.Equal(t, 3, c.Level)
	assert.Equal(t, 10, c.Experience)
	assert.Equal(t, 2, c.Attributes.Strength)
	assert.Equal(t, 2, c.Attributes.Intelligence)
}

func TestAwardExperienceBelowThreshold(t *testing.T) {
	c := &Character{Level: 1}

	leveledUp := c.AwardExperience(50)

	assert.False(t, leveledUp)
	assert.Equal(t, 1, c.Level)
	assert.Equal(t, 50, c.Experience)
}

func TestAttributesJSONRoundTrip(t *testing.T) {
	a := Attributes{Strength: 5, Intelligence: 3, Charisma: 2, Dexterity: 4, Intuition: 1}

	raw, err := a.Value()
	require.NoError(t, err)

	var got Attributes
	require.NoError(t, got.Scan(raw))
	assert.Equal(t, a, got)
}

func TestCampaignProgressScanNil(t *testing.T) {
	var p CampaignProgress
	require.NoError(t, p.Scan(nil))
	assert.Nil(t, p)
}
