package ws

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa as escritas: a conexão aceita um único escritor por vez
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(m ServerMsg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(m)
}

// Hub mantém as conexões do feed ao vivo e suas assinaturas.
// Canal é o roundId ou o símbolo em maiúsculas.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
	conns    int
}

// NewHub cria o hub com política de origem customizada; nil aceita só a mesma origem
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP faz o upgrade e atende a conexão até o cliente sair
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	h.mu.Lock()
	h.conns++
	h.mu.Unlock()
	defer h.drop(c)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe", "unsubscribe":
			ch := channel(msg)
			if ch == "" {
				_ = c.send(ServerMsg{Type: "error", Error: "roundId or symbol required"})
				continue
			}
			if msg.Type == "subscribe" {
				h.subscribe(c, ch)
				_ = c.send(ServerMsg{Type: "subscribed", Channel: ch})
			} else {
				h.unsubscribe(c, ch)
				_ = c.send(ServerMsg{Type: "unsubscribed", Channel: ch})
			}
		case "ping":
			_ = c.send(ServerMsg{Type: "pong"})
		default:
			_ = c.send(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}
}

// Broadcast envia a aposta aos inscritos na rodada e no símbolo
func (h *Hub) Broadcast(e events.BetPlaced) int {
	h.mu.RLock()
	targets := make(map[*client]string)
	for _, ch := range []string{e.RoundID, strings.ToUpper(e.Symbol)} {
		for c := range h.subs[ch] {
			if _, ok := targets[c]; !ok {
				targets[c] = ch
			}
		}
	}
	h.mu.RUnlock()

	sent := 0
	for c, ch := range targets {
		bet := e
		if err := c.send(ServerMsg{Type: "bet", Channel: ch, Bet: &bet}); err != nil {
			// o loop de leitura percebe o fechamento e limpa as assinaturas
			_ = c.conn.Close()
			continue
		}
		sent++
	}
	return sent
}

// Conns devolve o número de conexões abertas
func (h *Hub) Conns() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns
}

func (h *Hub) subscribe(c *client, ch string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		h.subs[ch] = make(map[*client]struct{})
	}
	h.subs[ch][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, ch string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[ch]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, ch)
		}
	}
}

// drop remove a conexão de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	for ch, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, ch)
		}
	}
	h.conns--
	h.mu.Unlock()
	_ = c.conn.Close()
}

func channel(m ClientMsg) string {
	if id := strings.TrimSpace(m.RoundID); id != "" {
		return id
	}
	return strings.ToUpper(strings.TrimSpace(m.Symbol))
}
