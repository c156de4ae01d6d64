package narrative

import (
	"regexp"
	"strconv"
	"strings"

	"rpg-nexus/backend/internal/models"
)

// markerRe matches the structured combat suffix the narrator is instructed
// to append: [DANO_CAUSADO:<int>,DANO_RECEBIDO:<int>]. The regex either
// matches fully or not at all; there is no partial capture.
var markerRe = regexp.MustCompile(`\[DANO_CAUSADO:(\d+),DANO_RECEBIDO:(\d+)\]`)

// Parse splits one narrator response into its narrative text and the
// combat event encoded in the trailing marker. A response without a marker
// is treated as pure dialogue with zero damage; victory is never taken
// from the model, it comes from applying the event to battle state.
func Parse(text string) (string, models.CombatEvent) {
	m := markerRe.FindStringSubmatch(text)
	if m == nil {
		return strings.TrimSpace(text), models.CombatEvent{Kind: models.EventDialogue}
	}

	dealt, _ := strconv.Atoi(m[1])
	received, _ := strconv.Atoi(m[2])

	narrative := text
	if i := strings.Index(text, "["); i >= 0 {
		narrative = text[:i]
	}
	return strings.TrimSpace(narrative), models.CombatEvent{
		Kind:           models.EventCombat,
		DamageDealt:    dealt,
		DamageReceived: received,
	}
}

// suggestionRe matches a single pipe-delimited line of three suggestions.
var suggestionRe = regexp.MustCompile(`(?m)^\s*([^|\n]+)\|([^|\n]+)\|([^|\n]+?)\s*$`)

// parseSuggestions extracts three short action suggestions. It first tries
// the pipe-delimited single-line form, then falls back to the first three
// non-blank lines of the response.
func parseSuggestions(text string) []string {
	if m := suggestionRe.FindStringSubmatch(text); m != nil {
		return []string{
			strings.TrimSpace(m[1]),
			strings.TrimSpace(m[2]),
			strings.TrimSpace(m[3]),
		}
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == 3 {
			break
		}
	}
	return out
}
