package preview

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/sk9822/frame"
)

// Message is one frame as sent to browsers. RGB holds three bytes per LED
// already shaded by brightness; Codes holds the raw 5-bit brightness.
type Message struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	LEDs    int    `json:"leds"`
	RGB     []byte `json:"rgb"`
	Codes   []byte `json:"codes"`
}

// Hub fans frames out to websocket clients.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*websocket.Conn]bool
	frameID   uint64
	leds      int
	startTime time.Time
	upgrader  websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients:   map[*websocket.Conn]bool{},
		startTime: time.Now(),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// HandleFrames upgrades the request and streams every published frame.
func (h *Hub) HandleFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	log.Debug().Str("remote", r.RemoteAddr).Msg("preview client connected")

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	resp := map[string]any{
		"frame_id": h.frameID,
		"uptime_s": time.Since(h.startTime).Seconds(),
		"leds":     h.leds,
		"clients":  len(h.clients),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Publish(wire []byte) error {
	px, err := frame.Parse(wire)
	if err != nil {
		return err
	}
	m := Message{
		T:     time.Now().UnixNano(),
		LEDs:  len(px),
		RGB:   make([]byte, 0, 3*len(px)),
		Codes: make([]byte, 0, len(px)),
	}
	for _, p := range px {
		c := Shade(p)
		m.RGB = append(m.RGB, c.R, c.G, c.B)
		m.Codes = append(m.Codes, p.Code)
	}

	h.mu.Lock()
	h.frameID++
	h.leds = len(px)
	m.FrameID = h.frameID
	h.mu.Unlock()

	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
	return nil
}
