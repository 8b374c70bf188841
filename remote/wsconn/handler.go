package wsconn

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ffx64/presence-bridge/remote"
	"github.com/gorilla/websocket"
)

// Handler is the primary-process end: it accepts surfaces, hands their
// events to OnEvent and pushes state updates to all of them.
type Handler struct {
	OnEvent func(remote.Event)

	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	peers map[*websocket.Conn]*sync.Mutex
}

func NewHandler(onEvent func(remote.Event), logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		OnEvent: onEvent,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		peers:  map[*websocket.Conn]*sync.Mutex{},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.mu.Lock()
	h.peers[ws] = &sync.Mutex{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.peers, ws)
		h.mu.Unlock()
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var ev remote.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			h.logger.Warn("dropping malformed surface event", "error", err)
			continue
		}
		if h.OnEvent != nil {
			h.OnEvent(ev)
		}
	}
}

// Peers returns how many surfaces are connected.
func (h *Handler) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Broadcast pushes u to every connected surface as a state event.
func (h *Handler) Broadcast(u remote.Update) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	msg, err := json.Marshal(remote.Event{Name: remote.EventState, Payload: m})
	if err != nil {
		return err
	}

	h.mu.Lock()
	peers := make(map[*websocket.Conn]*sync.Mutex, len(h.peers))
	for ws, wmu := range h.peers {
		peers[ws] = wmu
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for ws, wmu := range peers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// one writer per connection at a time
			wmu.Lock()
			defer wmu.Unlock()
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("broadcast to surface failed", "error", err)
			}
		}()
	}
	wg.Wait()
	return nil
}

// CloseAll disconnects every surface.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.peers {
		ws.Close()
	}
}
