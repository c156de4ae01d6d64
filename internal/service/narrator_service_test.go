package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpg-nexus/backend/ai"
	"rpg-nexus/backend/internal/narrative"
	"rpg-nexus/backend/pkg/cache"
	"rpg-nexus/backend/pkg/logger"
)

// themedCompleter answers suggestion prompts differently per battle theme,
// so a stale cache hit across themes is observable.
type themedCompleter struct {
	calls int
}

func (c *themedCompleter) Complete(ctx context.Context, msgs []ai.ChatMessage) string {
	c.calls++
	if strings.Contains(msgs[0].Content, "vulcão") {
		return "Desviar da lava|Escalar a encosta|Recuar para a borda"
	}
	return "Atacar|Defender|Fugir"
}

func newSuggestionService(llm narrative.Completer) *NarratorService {
	log := logger.New(logger.DefaultConfig())
	engine := narrative.NewEngine(llm, log)
	suggestionCache := cache.New(time.Minute, time.Minute, 100)
	return NewNarratorService(engine, nil, nil, nil, suggestionCache, nil, log, nil)
}

func TestSuggestionsCachedPerTheme(t *testing.T) {
	llm := &themedCompleter{}
	svc := newSuggestionService(llm)

	caverna, err := svc.Suggestions(context.Background(), 1, 1, "", "caverna sombria")
	require.NoError(t, err)
	assert.Equal(t, []string{"Atacar", "Defender", "Fugir"}, caverna)

	vulcao, err := svc.Suggestions(context.Background(), 1, 1, "", "vulcão em erupção")
	require.NoError(t, err)
	assert.Equal(t, []string{"Desviar da lava", "Escalar a encosta", "Recuar para a borda"}, vulcao)
	assert.Equal(t, 2, llm.calls)
}

func TestSuggestionsMemoizedForSameTheme(t *testing.T) {
	llm := &themedCompleter{}
	svc := newSuggestionService(llm)

	first, err := svc.Suggestions(context.Background(), 1, 1, "", "caverna sombria")
	require.NoError(t, err)
	second, err := svc.Suggestions(context.Background(), 1, 1, "", "caverna sombria")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, llm.calls)
}

func TestSuggestionsCachedPerUser(t *testing.T) {
	llm := &themedCompleter{}
	svc := newSuggestionService(llm)

	_, err := svc.Suggestions(context.Background(), 1, 1, "", "caverna sombria")
	require.NoError(t, err)
	_, err = svc.Suggestions(context.Background(), 2, 1, "", "caverna sombria")
	require.NoError(t, err)

	assert.Equal(t, 2, llm.calls)
}
