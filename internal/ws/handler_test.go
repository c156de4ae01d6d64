package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpg-nexus/backend/internal/models"
)

func TestSplitSentencesKeepsPunctuation(t *testing.T) {
	text := "O goblin avança. Você desvia por pouco! E agora? Ataque."
	sentences := splitSentences(text)
	require.Len(t, sentences, 4)
	assert.Equal(t, "O goblin avança.", sentences[0])
	assert.Equal(t, "Você desvia por pouco!", sentences[1])
	assert.Equal(t, "E agora?", sentences[2])
	assert.Equal(t, "Ataque.", sentences[3])
}

func TestSplitSentencesSingleSentence(t *testing.T) {
	sentences := splitSentences("Uma frase sem quebras")
	require.Len(t, sentences, 1)
	assert.Equal(t, "Uma frase sem quebras", sentences[0])
}

func TestSplitSentencesTrailingWhitespace(t *testing.T) {
	sentences := splitSentences("  Primeira. Segunda.  ")
	require.Len(t, sentences, 2)
	assert.Equal(t, "Primeira.", sentences[0])
	assert.Equal(t, "Segunda.", sentences[1])
}

func TestSplitSentencesEmpty(t *testing.T) {
	assert.Nil(t, splitSentences(""))
	assert.Nil(t, splitSentences("   \n  "))
}

func TestSplitLines(t *testing.T) {
	lines := splitLines("Primeira linha.\n\n  Segunda linha.  \nTerceira")
	require.Len(t, lines, 3)
	assert.Equal(t, "Primeira linha.", lines[0])
	assert.Equal(t, "Segunda linha.", lines[1])
	assert.Equal(t, "Terceira", lines[2])
}

func TestSplitLinesEmpty(t *testing.T) {
	assert.Empty(t, splitLines(""))
}

func TestSentenceDelayProportional(t *testing.T) {
	short := sentenceDelay("Oi.", time.Minute)
	long := sentenceDelay("Uma frase consideravelmente mais longa do que a primeira.", time.Minute)
	assert.Equal(t, 3*perRuneDelay, short)
	assert.Greater(t, long, short)
}

func TestSentenceDelayCapped(t *testing.T) {
	limit := 100 * time.Millisecond
	delay := sentenceDelay("Uma frase longa o suficiente para estourar qualquer limite razoável de pausa.", limit)
	assert.Equal(t, limit, delay)
}

func TestSentenceDelayCountsRunesNotBytes(t *testing.T) {
	// "açaí" is 4 runes but 6 bytes in UTF-8.
	assert.Equal(t, 4*perRuneDelay, sentenceDelay("açaí", time.Minute))
}

func TestMessageEnvelopeShape(t *testing.T) {
	data, err := json.Marshal(Message{Type: msgNarrativeChunk, Content: map[string]string{"text": "chunk"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"narrative_chunk","content":{"text":"chunk"}}`, string(data))

	data, err = json.Marshal(Message{Type: msgNarratorTurnStart})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"narrator_turn_start"}`, string(data))
}

func TestTurnResultCarriesEvent(t *testing.T) {
	result := turnResult{Event: models.CombatEvent{
		Kind:           models.EventCombat,
		DamageDealt:    12,
		DamageReceived: 4,
	}}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tipo":"combate"`)
	assert.Contains(t, string(data), `"danoCausado":12`)
	assert.Contains(t, string(data), `"danoRecebido":4`)
}

func TestPlayerActionContentDecoding(t *testing.T) {
	var content playerActionContent
	raw := []byte(`{"action":"ataco com a espada","history":["Narrador: algo"]}`)
	require.NoError(t, json.Unmarshal(raw, &content))
	assert.Equal(t, "ataco com a espada", content.Action)
}
