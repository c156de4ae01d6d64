package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rpg-nexus/backend/internal/models"
)

func TestParseWithMarker(t *testing.T) {
	narrative, event := Parse("Hello world[DANO_CAUSADO:10,DANO_RECEBIDO:5]")

	assert.Equal(t, "Hello world", narrative)
	assert.Equal(t, models.EventCombat, event.Kind)
	assert.Equal(t, 10, event.DamageDealt)
	assert.Equal(t, 5, event.DamageReceived)
	assert.False(t, event.Victory, "victory never comes from the model")
}

func TestParseWithoutMarkerDefaultsToDialogue(t *testing.T) {
	text := "O guarda apenas observa você em silêncio."

	narrative, event := Parse(text)

	assert.Equal(t, text, narrative)
	assert.Equal(t, models.EventDialogue, event.Kind)
	assert.Zero(t, event.DamageDealt)
	assert.Zero(t, event.DamageReceived)
}

func TestParseTrimsWhitespaceBeforeMarker(t *testing.T) {
	narrative, event := Parse("A lâmina corta o ar.  \n[DANO_CAUSADO:42,DANO_RECEBIDO:0]")

	assert.Equal(t, "A lâmina corta o ar.", narrative)
	assert.Equal(t, 42, event.DamageDealt)
	assert.Zero(t, event.DamageReceived)
}

func TestParseMalformedMarkerIsDialogue(t *testing.T) {
	text := "O golpe acerta. [DANO_CAUSADO:muitos,DANO_RECEBIDO:5]"

	narrative, event := Parse(text)

	assert.Equal(t, text, narrative)
	assert.Equal(t, models.EventDialogue, event.Kind)
}

func TestParseSuggestionsPipeDelimited(t *testing.T) {
	got := parseSuggestions("Atacar com a espada|Procurar cobertura|Tentar negociar")

	assert.Equal(t, []string{
		"Atacar com a espada",
		"Procurar cobertura",
		"Tentar negociar",
	}, got)
}

func TestParseSuggestionsFallsBackToLines(t *testing.T) {
	got := parseSuggestions("Primeira opção\n\nSegunda opção\nTerceira opção\nQuarta opção")

	assert.Equal(t, []string{
		"Primeira opção",
		"Segunda opção",
		"Terceira opção",
	}, got)
}

func TestParseSuggestionsShortReply(t *testing.T) {
	got := parseSuggestions("Correr")

	assert.Equal(t, []string{"Correr"}, got)
}
