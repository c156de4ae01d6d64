package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rpg-nexus/backend/internal/models"
	"rpg-nexus/backend/pkg/logger"
	"rpg-nexus/backend/shared/redis"
)

// ErrBattleNotFound covers both missing state and ownership mismatch.
var ErrBattleNotFound = errors.New("battle state not found")

// BattleService owns the persistent battle-state store. Saves are upserts
// keyed by (character_id, battle_id): there is at most one authoritative
// record per key and the last write wins. Recent-state lookups go through
// a best-effort Redis cache.
type BattleService struct {
	db       *gorm.DB
	cache    *redis.Client
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewBattleService creates a battle service. cache may be nil, which
// disables the read-through layer.
func NewBattleService(db *gorm.DB, cache *redis.Client, cacheTTL time.Duration, log *logger.Logger) *BattleService {
	return &BattleService{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

func recentStateKey(characterID, userID uint) string {
	return fmt.Sprintf("battle:recent:%d:%d", characterID, userID)
}

// SaveState upserts the state on its composite key.
func (s *BattleService) SaveState(ctx context.Context, state *models.BattleState) error {
	state.LastUpdated = time.Now()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "character_id"}, {Name: "battle_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "theme", "history", "player_health", "enemy_health", "last_updated",
		}),
	}).Create(state).Error
	if err != nil {
		return err
	}

	s.invalidateRecent(ctx, state.CharacterID, state.UserID)
	return nil
}

// GetStateForUser fetches state by key, rejecting cross-user access.
func (s *BattleService) GetStateForUser(ctx context.Context, characterID uint, battleID string, userID uint) (*models.BattleState, error) {
	var state models.BattleState
	result := s.db.WithContext(ctx).
		Where("character_id = ? AND battle_id = ? AND user_id = ?", characterID, battleID, userID).
		First(&state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrBattleNotFound
		}
		return nil, result.Error
	}
	return &state, nil
}

// GetMostRecentState returns the latest battle for a character, owner
// scoped, consulting the cache first.
func (s *BattleService) GetMostRecentState(ctx context.Context, characterID, userID uint) (*models.BattleState, error) {
	if cached := s.readRecent(ctx, characterID, userID); cached != nil {
		return cached, nil
	}

	var state models.BattleState
	result := s.db.WithContext(ctx).
		Where("character_id = ? AND user_id = ?", characterID, userID).
		Order("last_updated DESC").
		First(&state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrBattleNotFound
		}
		return nil, result.Error
	}

	s.writeRecent(ctx, &state)
	return &state, nil
}

// DeleteState removes the record for a key, owner scoped.
func (s *BattleService) DeleteState(ctx context.Context, characterID uint, battleID string, userID uint) error {
	result := s.db.WithContext(ctx).
		Where("character_id = ? AND battle_id = ? AND user_id = ?", characterID, battleID, userID).
		Delete(&models.BattleState{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBattleNotFound
	}
	s.invalidateRecent(ctx, characterID, userID)
	return nil
}

// Cache helpers. All failures are logged and swallowed: the database is
// authoritative and the cache is strictly best effort.

func (s *BattleService) readRecent(ctx context.Context, characterID, userID uint) *models.BattleState {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, recentStateKey(characterID, userID))
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) {
			s.log.Warn("battle cache read failed", "error", err.Error())
		}
		return nil
	}
	var state models.BattleState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.log.Warn("battle cache entry corrupt, dropping", "error", err.Error())
		_ = s.cache.Del(ctx, recentStateKey(characterID, userID))
		return nil
	}
	// UserID is not serialized; restore it from the lookup key.
	state.UserID = userID
	return &state
}

func (s *BattleService) writeRecent(ctx context.Context, state *models.BattleState) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, recentStateKey(state.CharacterID, state.UserID), string(raw), s.cacheTTL); err != nil {
		s.log.Warn("battle cache write failed", "error", err.Error())
	}
}

func (s *BattleService) invalidateRecent(ctx context.Context, characterID, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, recentStateKey(characterID, userID)); err != nil {
		s.log.Warn("battle cache invalidation failed", "error", err.Error())
	}
}
