package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Combat event kinds. Values match the narrator wire contract.
const (
	EventDialogue = "dialogo"
	EventCombat   = "combate"
	EventStart    = "inicio"
)

// CombatEvent is the resolved outcome of one narrator turn. It is derived
// from the narrative text and applied to BattleState, never stored on its own.
type CombatEvent struct {
	Kind           string `json:"tipo"`
	DamageDealt    int    `json:"danoCausado"`
	DamageReceived int    `json:"danoRecebido"`
	Victory        bool   `json:"vitoria"`
}

// Turn is a single history entry of a battle.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// BattleHistory is the ordered turn log, stored as a jsonb column.
type BattleHistory []Turn

func (h BattleHistory) Value() (driver.Value, error) {
	if h == nil {
		h = BattleHistory{}
	}
	return json.Marshal(h)
}

func (h *BattleHistory) Scan(value interface{}) error {
	return scanJSON(value, h)
}

// Lines renders the history the way narrator prompts expect it.
func (h BattleHistory) Lines() []string {
	lines := make([]string, 0, len(h))
	for _, t := range h {
		lines = append(lines, t.Speaker+": "+t.Text)
	}
	return lines
}

// BattleState is the authoritative per-battle record, keyed by
// (character_id, battle_id). Health values are signed and never clamped;
// crossing zero is the victory/defeat signal.
type BattleState struct {
	ID           uint          `gorm:"primaryKey" json:"-"`
	CharacterID  uint          `gorm:"not null;uniqueIndex:idx_battle_key" json:"character_id"`
	BattleID     string        `gorm:"not null;uniqueIndex:idx_battle_key" json:"battle_id"`
	UserID       uint          `gorm:"index;not null" json:"-"`
	Theme        string        `json:"battle_theme"`
	History      BattleHistory `gorm:"type:jsonb" json:"history"`
	PlayerHealth int           `json:"player_health"`
	EnemyHealth  int           `json:"enemy_health"`
	LastUpdated  time.Time     `gorm:"index" json:"last_updated"`
}

// ApplyEvent mutates health pools with the event's damage numbers and sets
// the victory flag when the enemy drops to or below zero. Defeat is the
// player reaching zero with the enemy still standing; it is read from the
// state, not the flag.
func (s *BattleState) ApplyEvent(e *CombatEvent) {
	s.PlayerHealth -= e.DamageReceived
	s.EnemyHealth -= e.DamageDealt
	if s.EnemyHealth <= 0 {
		e.Victory = true
	}
	s.LastUpdated = time.Now()
}

// Defeated reports whether the player fell before the enemy.
func (s *BattleState) Defeated() bool {
	return s.PlayerHealth <= 0 && s.EnemyHealth > 0
}

// Finished reports whether either side is down.
func (s *BattleState) Finished() bool {
	return s.PlayerHealth <= 0 || s.EnemyHealth <= 0
}

// AppendTurn records one speaker line in the history.
func (s *BattleState) AppendTurn(speaker, text string) {
	s.History = append(s.History, Turn{Speaker: speaker, Text: text})
}
