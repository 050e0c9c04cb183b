// Package livereload pushes build notifications to served pages over
// server-sent events and injects the client script that listens for them.
package livereload

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Paths served next to the site output.
const (
	EventsPath = "/__livereload"
	ScriptPath = "/__livereload.js"
)

const heartbeat = 30 * time.Second

type event struct {
	Build string `json:"build"`
}

// Hub fans build notifications out to connected browsers.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	nextID  int
	clients map[int]*client
	last    string
	closed  bool
}

type client struct {
	ch   chan string
	done chan struct{}
}

// NewHub returns a hub with no clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: map[int]*client{}}
}

// ServeHTTP streams events to one client. The first event carries the last
// build seen so the client can tell later builds apart.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	id, c, last, ok := h.register()
	if !ok {
		http.Error(w, "live reload shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.remove(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(line string) bool {
		if _, err := bw.WriteString(line); err != nil {
			h.logger.Debug("Live reload write failed", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(": connected\n\n" + data(last)) {
		return
	}

	hb := time.NewTicker(heartbeat)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case build := <-c.ch:
			if !send(data(build)) {
				return
			}
		}
	}
}

func data(build string) string {
	b, _ := json.Marshal(event{Build: build})
	return "data: " + string(b) + "\n\n"
}

func (h *Hub) register() (int, *client, string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, nil, "", false
	}
	c := &client{ch: make(chan string, 8), done: make(chan struct{})}
	id := h.nextID
	h.nextID++
	h.clients[id] = c
	return id, c, h.last, true
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast announces a completed build. Clients whose queue is full are dropped.
func (h *Hub) Broadcast(build string) {
	h.mu.Lock()
	if h.closed || build == "" || build == h.last {
		h.mu.Unlock()
		return
	}
	h.last = build
	snapshot := make(map[int]*client, len(h.clients))
	for id, c := range h.clients {
		snapshot[id] = c
	}
	h.mu.Unlock()

	dropped := 0
	for id, c := range snapshot {
		select {
		case c.ch <- build:
		default:
			dropped++
			h.remove(id)
		}
	}
	h.logger.Debug("Live reload broadcast", logfields.BuildID(build), logfields.Count(len(snapshot)), slog.Int("dropped", dropped))
}

// Shutdown disconnects every client and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}
