package narrative

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"rpg-nexus/backend/ai"
	"rpg-nexus/backend/internal/models"
	"rpg-nexus/backend/pkg/logger"
)

// Completer is the completion surface the engine needs; satisfied by
// ai.Router.
type Completer interface {
	Complete(ctx context.Context, msgs []ai.ChatMessage) string
}

// intensifiers are action keywords that double the player damage roll.
var intensifiers = []string{
	"com toda força",
	"com toda a força",
	"golpe poderoso",
	"fúria",
	"furioso",
	"devastador",
	"crítico",
}

const enemyDodgeChance = 10 // percent

// Rolls holds the locally computed combat numbers for one turn. They are
// embedded in the prompt as ground truth the narrator must echo.
type Rolls struct {
	PlayerDamage int
	EnemyDamage  int
	PlayerDodged bool
	EnemyDodged  bool
}

// Engine builds narrator prompts, runs them through the completion chain
// and parses the structured result.
type Engine struct {
	llm Completer
	log *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine returns an engine with a time-seeded roll source.
func NewEngine(llm Completer, log *logger.Logger) *Engine {
	return NewEngineWithSource(llm, rand.NewSource(time.Now().UnixNano()), log)
}

// NewEngineWithSource returns an engine rolling from the given source.
// Deterministic sources make combat reproducible in tests.
func NewEngineWithSource(llm Completer, src rand.Source, log *logger.Logger) *Engine {
	return &Engine{
		llm: llm,
		log: log,
		rng: rand.New(src),
	}
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

// randRange returns a uniform integer in [lo, hi].
func (e *Engine) randRange(lo, hi int) int {
	return lo + e.intn(hi-lo+1)
}

func hasIntensifier(action string) bool {
	lowered := strings.ToLower(action)
	for _, kw := range intensifiers {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// RollTurn computes the deterministic combat numbers for one player action.
// Player damage is strength times a 5..10 roll, doubled on an intensified
// attack. Dodge chances: player dexterity×2 percent, enemy fixed 10
// percent. A successful dodge zeroes the corresponding damage.
func (e *Engine) RollTurn(character *models.Character, action string) Rolls {
	rolls := Rolls{
		PlayerDamage: character.Attributes.Strength * e.randRange(5, 10),
		EnemyDamage:  e.randRange(10, 20),
	}
	if hasIntensifier(action) {
		rolls.PlayerDamage *= 2
	}
	if e.intn(100) < enemyDodgeChance {
		rolls.EnemyDodged = true
		rolls.PlayerDamage = 0
	}
	if e.intn(100) < character.Attributes.Dexterity*2 {
		rolls.PlayerDodged = true
		rolls.EnemyDamage = 0
	}
	return rolls
}

// GenerateInitial produces the opening narrative for a new battle.
func (e *Engine) GenerateInitial(ctx context.Context, character *models.Character, theme, memory string) string {
	prompt := fmt.Sprintf(`Você é um Mestre de RPG talentoso. Sua tarefa é iniciar uma batalha épica de forma concisa.

Personagem: %s, um(a) %s da classe %s.
Descrição do Personagem: %s

Tema da Batalha: "%s"

Memórias de Batalhas Anteriores (use isso para dar continuidade):
---
%s
---

Instruções:
1. Descreva o cenário de forma vívida e imersiva em no máximo 8 frases.
2. Introduza um inimigo que se encaixe no tema da batalha.
3. A narrativa deve ser curta e terminar em um momento de tensão, preparando o jogador para agir.
4. Responda apenas com o texto da narrativa, sem títulos, listas ou qualquer marcação.
5. Seja criativo! Se o personagem já enfrentou inimigos parecidos, faça uma referência sutil.`,
		character.Name, character.Race, character.Class,
		orDefault(character.Description, "Nenhuma."),
		theme,
		orDefault(memory, "Nenhuma."),
	)

	return e.llm.Complete(ctx, []ai.ChatMessage{{Role: ai.RoleUser, Content: prompt}})
}

// ContinueTurn resolves one player action: rolls damage locally, asks the
// narrator to tell the outcome and echo the numbers in the trailing
// marker, then parses the response. The returned event is not yet applied
// to battle state.
func (e *Engine) ContinueTurn(ctx context.Context, character *models.Character, theme string, history []string, action, memory string) (string, models.CombatEvent) {
	rolls := e.RollTurn(character, action)
	text := e.llm.Complete(ctx, e.turnMessages(character, theme, history, action, memory, rolls))
	narrative, event := Parse(text)
	return narrative, event
}

func (e *Engine) turnMessages(character *models.Character, theme string, history []string, action, memory string, rolls Rolls) []ai.ChatMessage {
	playerOutcome := fmt.Sprintf("o golpe do jogador acerta e causa %d de dano ao inimigo", rolls.PlayerDamage)
	if rolls.EnemyDodged {
		playerOutcome = "o inimigo desvia e o golpe do jogador não causa dano (0 de dano)"
	}
	enemyOutcome := fmt.Sprintf("o contra-ataque do inimigo acerta e causa %d de dano ao jogador", rolls.EnemyDamage)
	if rolls.PlayerDodged {
		enemyOutcome = "o jogador desvia e o contra-ataque do inimigo não causa dano (0 de dano)"
	}

	prompt := fmt.Sprintf(`Você é um Mestre de RPG. Sua tarefa é narrar o resultado de um turno de combate.

Personagem: %s, um(a) %s da classe %s.
Tema da Batalha: "%s"

Memórias de Batalhas Anteriores (para contexto):
---
%s
---

Histórico da Batalha Atual:
---
%s
---

Ação do Jogador: "%s"

Resultado já decidido pelos dados (narre exatamente estes números, NÃO os altere):
- %s.
- %s.

Instruções de Resposta:
1. Escreva uma descrição dramática e curta (máximo 4 frases) do resultado da ação e da reação do inimigo, fiel aos números acima.
2. Use apenas texto corrido, sem títulos, listas ou qualquer marcação.
3. Termine a resposta, na mesma linha, com o marcador exato [DANO_CAUSADO:%d,DANO_RECEBIDO:%d] e nada depois dele.`,
		character.Name, character.Race, character.Class,
		theme,
		orDefault(memory, "Nenhuma."),
		orDefault(strings.Join(history, "\n"), "Nenhum."),
		action,
		playerOutcome,
		enemyOutcome,
		rolls.PlayerDamage,
		rolls.EnemyDamage,
	)

	return []ai.ChatMessage{{Role: ai.RoleUser, Content: prompt}}
}

// Suggestions asks for three short next actions for the player. The reply
// is expected pipe-separated on one line; degraded replies fall back to
// line splitting.
func (e *Engine) Suggestions(ctx context.Context, theme string, history []string) []string {
	prompt := fmt.Sprintf(`Você é um Mestre de RPG. Com base no tema e no histórico abaixo, sugira 3 ações curtas que o jogador pode tomar agora.

Tema da Batalha: "%s"

Histórico da Batalha Atual:
---
%s
---

Responda em UMA única linha, com as 3 sugestões separadas por | (pipe), sem numeração e sem texto extra.
Exemplo: Atacar com a espada|Procurar cobertura|Tentar negociar`,
		theme,
		orDefault(strings.Join(history, "\n"), "Nenhum."),
	)

	text := e.llm.Complete(ctx, []ai.ChatMessage{{Role: ai.RoleUser, Content: prompt}})
	return parseSuggestions(text)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
