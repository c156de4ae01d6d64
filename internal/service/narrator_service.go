package service

import (
	"context"
	"fmt"

	"rpg-nexus/backend/internal/memory"
	"rpg-nexus/backend/internal/models"
	"rpg-nexus/backend/internal/narrative"
	"rpg-nexus/backend/pkg/cache"
	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/logger"
	"rpg-nexus/backend/shared/observability"
)

// Speaker labels recorded in battle history.
const (
	SpeakerNarrator = "Narrador"
	SpeakerPlayer   = "Jogador"
)

// NarratorService orchestrates one full battle turn: memory retrieval,
// narration, parsing, state mutation and persistence. It is shared by the
// REST battle endpoints and the WebSocket gateway.
type NarratorService struct {
	engine      *narrative.Engine
	memory      *memory.Store
	characters  *CharacterService
	battles     *BattleService
	suggestions *cache.Cache
	cfg         *config.Config
	log         *logger.Logger
	metrics     *observability.Metrics
}

// NewNarratorService wires the narrator orchestrator. suggestionCache may
// be nil to disable memoization.
func NewNarratorService(
	engine *narrative.Engine,
	memoryStore *memory.Store,
	characters *CharacterService,
	battles *BattleService,
	suggestionCache *cache.Cache,
	cfg *config.Config,
	log *logger.Logger,
	metrics *observability.Metrics,
) *NarratorService {
	return &NarratorService{
		engine:      engine,
		memory:      memoryStore,
		characters:  characters,
		battles:     battles,
		suggestions: suggestionCache,
		cfg:         cfg,
		log:         log,
		metrics:     metrics,
	}
}

// StartBattle creates the opening state for a (character, battle) pair:
// retrieves memory for the theme, generates the first narrative, persists
// the initial health pools and saves the opening as a memory.
func (s *NarratorService) StartBattle(ctx context.Context, userID, characterID uint, battleID, theme string) (*models.BattleState, error) {
	character, err := s.characters.GetCharacter(userID, characterID)
	if err != nil {
		return nil, err
	}

	memoryBlock := s.memory.Retrieve(ctx, characterID, theme)
	opening := s.engine.GenerateInitial(ctx, character, theme, memoryBlock)

	state := &models.BattleState{
		CharacterID:  characterID,
		BattleID:     battleID,
		UserID:       userID,
		Theme:        theme,
		History:      models.BattleHistory{},
		PlayerHealth: s.cfg.Battle.PlayerHealth,
		EnemyHealth:  s.cfg.Battle.EnemyHealth,
	}
	state.AppendTurn(SpeakerNarrator, opening)

	if err := s.battles.SaveState(ctx, state); err != nil {
		return nil, err
	}

	s.memory.Save(characterID, fmt.Sprintf("%s (Início da Batalha: %s): %s", SpeakerNarrator, theme, opening))
	s.metrics.CountNarratorTurn(ctx, models.EventStart)

	s.log.WithBattle(fmt.Sprint(characterID), battleID).Info("battle started", "theme", theme)
	return state, nil
}

// TakeAction resolves one player action against stored state: narrates the
// turn, applies the resolved event to the health pools and persists the
// updated state before returning.
func (s *NarratorService) TakeAction(ctx context.Context, userID, characterID uint, battleID, action string) (string, models.CombatEvent, *models.BattleState, error) {
	state, err := s.battles.GetStateForUser(ctx, characterID, battleID, userID)
	if err != nil {
		return "", models.CombatEvent{}, nil, err
	}
	character, err := s.characters.GetCharacter(userID, characterID)
	if err != nil {
		return "", models.CombatEvent{}, nil, err
	}

	contextQuery := fmt.Sprintf("Tema: %s. Ação do jogador: %s", state.Theme, action)
	memoryBlock := s.memory.Retrieve(ctx, characterID, contextQuery)

	narrativeText, event := s.engine.ContinueTurn(ctx, character, state.Theme, state.History.Lines(), action, memoryBlock)

	state.AppendTurn(SpeakerPlayer, action)
	state.AppendTurn(SpeakerNarrator, narrativeText)
	state.ApplyEvent(&event)

	if err := s.battles.SaveState(ctx, state); err != nil {
		return "", models.CombatEvent{}, nil, err
	}

	s.memory.Save(characterID, fmt.Sprintf("%s: %s", SpeakerPlayer, action))
	s.memory.Save(characterID, fmt.Sprintf("%s: %s", SpeakerNarrator, narrativeText))
	s.metrics.CountNarratorTurn(ctx, event.Kind)

	return narrativeText, event, state, nil
}

// Suggestions returns three short next actions for the player, memoized
// per battle turn so repeated polling does not burn provider quota.
func (s *NarratorService) Suggestions(ctx context.Context, userID, characterID uint, battleID, theme string) ([]string, error) {
	var history []string
	if battleID != "" {
		state, err := s.battles.GetStateForUser(ctx, characterID, battleID, userID)
		if err != nil {
			return nil, err
		}
		history = state.History.Lines()
		if theme == "" {
			theme = state.Theme
		}
	}

	key := fmt.Sprintf("suggestions:%d:%d:%s:%s:%d", userID, characterID, battleID, theme, len(history))
	if s.suggestions != nil {
		if cached, ok := s.suggestions.Get(key); ok {
			if suggestions, ok := cached.([]string); ok {
				return suggestions, nil
			}
		}
	}

	suggestions := s.engine.Suggestions(ctx, theme, history)
	if s.suggestions != nil && len(suggestions) > 0 {
		s.suggestions.Set(key, suggestions)
	}
	return suggestions, nil
}
