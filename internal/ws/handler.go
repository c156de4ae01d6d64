package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"rpg-nexus/backend/internal/models"
	"rpg-nexus/backend/internal/service"
	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Server to client message types.
const (
	msgLoadState         = "load_state"
	msgNarrativeStart    = "narrative_start"
	msgNarrativeChunk    = "narrative_chunk"
	msgNarrativeEnd      = "narrative_end"
	msgNarratorTurnStart = "narrator_turn_start"
)

// Client to server message types.
const (
	msgPlayerAction = "player_action"
	msgExitBattle   = "exit_battle"
)

// perRuneDelay paces sentence chunks proportionally to their length so the
// client reads the narration at a natural speed. The per-sentence delay is
// capped by config.
const perRuneDelay = 30 * time.Millisecond

var sentenceRe = regexp.MustCompile(`[.?!]\s+`)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content,omitempty"`
}

type playerActionContent struct {
	Action string `json:"action"`
	// History is advisory. The server keeps the authoritative transcript
	// in the stored battle state and ignores whatever the client sends.
	History []string `json:"history,omitempty"`
}

type turnResult struct {
	Event models.CombatEvent  `json:"event"`
	State *models.BattleState `json:"state,omitempty"`
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	narrator   *service.NarratorService
	battles    *service.BattleService
	cfg        *config.Config
	log        *logger.Logger
	mu         sync.Mutex
}

func NewHub(narrator *service.NarratorService, battles *service.BattleService, cfg *config.Config, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		narrator:   narrator,
		battles:    battles,
		cfg:        cfg,
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			client.log.Info("battle session registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				client.log.Info("battle session unregistered")
			}
			h.mu.Unlock()
		}
	}
}

type Client struct {
	Conn        *websocket.Conn
	Send        chan []byte
	Hub         *Hub
	UserID      uint
	CharacterID uint
	BattleID    string
	Theme       string
	log         *logger.Logger
}

// ReadPump processes incoming frames strictly in order. Each action is
// resolved to completion, including the paced narration stream, before the
// next frame is read, so a client cannot pipeline turns.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.LogError(err, "websocket read failed")
			}
			return
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			c.log.LogError(err, "invalid websocket frame")
			continue
		}

		switch message.Type {
		case msgPlayerAction:
			c.handlePlayerAction(message)
		case msgExitBattle:
			c.handleExitBattle()
			return
		case "ping":
			c.sendMessage("pong", nil)
		default:
			c.log.Warn("unknown websocket message type", "type", message.Type)
		}
	}
}

// openBattle delivers the connect sequence: the stored state when one
// exists, otherwise a freshly initialized battle whose opening narrative is
// streamed line by line.
func (c *Client) openBattle() bool {
	ctx, cancel := c.turnContext()
	defer cancel()

	state, err := c.Hub.battles.GetStateForUser(ctx, c.CharacterID, c.BattleID, c.UserID)
	if err == nil {
		c.sendMessage(msgLoadState, state)
		return true
	}
	if !errors.Is(err, service.ErrBattleNotFound) {
		c.log.LogError(err, "failed to load battle state")
		c.sendErrorMessage("Não foi possível carregar o estado da batalha")
		return false
	}

	state, err = c.Hub.narrator.StartBattle(ctx, c.UserID, c.CharacterID, c.BattleID, c.Theme)
	if err != nil {
		c.log.LogError(err, "failed to start battle")
		c.sendErrorMessage("Não foi possível iniciar a batalha")
		return false
	}

	c.sendMessage(msgLoadState, state)
	c.sendMessage(msgNarrativeStart, nil)
	opening := ""
	if len(state.History) > 0 {
		opening = state.History[len(state.History)-1].Text
	}
	for _, line := range splitLines(opening) {
		c.sendMessage(msgNarrativeChunk, gin.H{"text": line})
		time.Sleep(c.Hub.cfg.Battle.LinePacing)
	}
	c.sendMessage(msgNarrativeEnd, turnResult{State: state})
	return true
}

func (c *Client) handlePlayerAction(message Message) {
	var content playerActionContent
	raw, err := json.Marshal(message.Content)
	if err == nil {
		err = json.Unmarshal(raw, &content)
	}
	if err != nil || strings.TrimSpace(content.Action) == "" {
		c.sendErrorMessage("Ação inválida")
		return
	}

	ctx, cancel := c.turnContext()
	defer cancel()

	c.sendMessage(msgNarratorTurnStart, nil)
	time.Sleep(c.Hub.cfg.Battle.TurnStartDelay)

	narrativeText, event, state, err := c.Hub.narrator.TakeAction(ctx, c.UserID, c.CharacterID, c.BattleID, content.Action)
	if err != nil {
		c.log.LogError(err, "battle turn failed")
		c.sendErrorMessage("O narrador não conseguiu resolver o turno")
		return
	}

	for _, sentence := range splitSentences(narrativeText) {
		c.sendMessage(msgNarrativeChunk, gin.H{"text": sentence})
		time.Sleep(sentenceDelay(sentence, c.Hub.cfg.Battle.SentencePacingCap))
	}
	c.sendMessage(msgNarrativeEnd, turnResult{Event: event, State: state})
}

func (c *Client) handleExitBattle() {
	ctx, cancel := c.turnContext()
	defer cancel()

	if err := c.Hub.battles.DeleteState(ctx, c.CharacterID, c.BattleID, c.UserID); err != nil &&
		!errors.Is(err, service.ErrBattleNotFound) {
		c.log.LogError(err, "failed to delete battle state on exit")
	}
	c.log.Info("battle exited")
}

func (c *Client) turnContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.Hub.cfg.LLM.RouterTimeout)
}

func (c *Client) sendMessage(messageType string, content interface{}) {
	data, err := json.Marshal(Message{Type: messageType, Content: content})
	if err != nil {
		c.log.LogError(err, "failed to marshal websocket message", "type", messageType)
		return
	}
	c.Send <- data
}

func (c *Client) sendErrorMessage(errorText string) {
	c.sendMessage("error", map[string]string{"message": errorText})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades a battle connection. The caller must have authenticated
// the request already; the user ID comes from the gin context.
func ServeWs(hub *Hub, c *gin.Context) {
	userID := c.GetUint("userId")

	characterParam := c.Query("characterId")
	battleID := c.Query("battleId")
	if characterParam == "" || battleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "characterId and battleId are required"})
		return
	}
	characterID, err := strconv.ParseUint(characterParam, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid characterId"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "websocket upgrade failed")
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Hub:         hub,
		UserID:      userID,
		CharacterID: uint(characterID),
		BattleID:    battleID,
		Theme:       c.Query("theme"),
		log:         hub.log.WithBattle(characterParam, battleID).WithUserID(strconv.FormatUint(uint64(userID), 10)),
	}

	client.Hub.register <- client
	go client.WritePump()
	go func() {
		if !client.openBattle() {
			client.Hub.unregister <- client
			client.Conn.Close()
			return
		}
		client.ReadPump()
	}()
}

// splitLines breaks the opening narrative into non-empty lines for paced
// delivery.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// splitSentences breaks narration at sentence boundaries, keeping the
// terminating punctuation with its sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		sentences = append(sentences, strings.TrimSpace(text[last:loc[0]+1]))
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// sentenceDelay is proportional to sentence length and never exceeds the
// configured cap.
func sentenceDelay(sentence string, limit time.Duration) time.Duration {
	delay := time.Duration(utf8.RuneCountInString(sentence)) * perRuneDelay
	if delay > limit {
		return limit
	}
	return delay
}
