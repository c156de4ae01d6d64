package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyEventSubtractsDamage(t *testing.T) {
	s := &BattleState{PlayerHealth: 100, EnemyHealth: 100}
	e := &CombatEvent{Kind: EventCombat, DamageDealt: 30, DamageReceived: 12}

	s.ApplyEvent(e)

	assert.Equal(t, 88, s.PlayerHealth)
	assert.Equal(t, 70, s.EnemyHealth)
	assert.False(t, e.Victory)
	assert.False(t, s.Finished())
}

func TestApplyEventVictory(t *testing.T) {
	s := &BattleState{PlayerHealth: 40, EnemyHealth: 25}
	e := &CombatEvent{Kind: EventCombat, DamageDealt: 25, DamageReceived: 5}

	s.ApplyEvent(e)

	assert.True(t, e.Victory)
	assert.Zero(t, s.EnemyHealth)
	assert.False(t, s.Defeated())
	assert.True(t, s.Finished())
}

func TestApplyEventDefeat(t *testing.T) {
	s := &BattleState{PlayerHealth: 10, EnemyHealth: 80}
	e := &CombatEvent{Kind: EventCombat, DamageDealt: 15, DamageReceived: 30}

	s.ApplyEvent(e)

	assert.False(t, e.Victory)
	assert.Equal(t, -20, s.PlayerHealth, "health is signed and never clamped")
	assert.True(t, s.Defeated())
	assert.True(t, s.Finished())
}

func TestApplyEventSimultaneousZeroFavorsVictory(t *testing.T) {
	s := &BattleState{PlayerHealth: 10, EnemyHealth: 10}
	e := &CombatEvent{Kind: EventCombat, DamageDealt: 10, DamageReceived: 10}

	s.ApplyEvent(e)

	assert.True(t, e.Victory)
	assert.False(t, s.Defeated())
}

func TestHistoryLines(t *testing.T) {
	h := BattleHistory{
		{Speaker: "Narrador", Text: "A caverna range."},
		{Speaker: "Jogador", Text: "Ataco com a espada."},
	}

	assert.Equal(t, []string{
		"Narrador: A caverna range.",
		"Jogador: Ataco com a espada.",
	}, h.Lines())
}
