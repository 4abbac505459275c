// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_fir/internal/config"
	"github.com/relabs-tech/accel_fir/internal/imu"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network tool
	},
}

// windowHub keeps the latest window and status and pushes every new window
// to the connected websocket clients.
type windowHub struct {
	mu         sync.RWMutex
	last       imu.Window
	haveWindow bool
	status     imu.Status
	haveStatus bool

	clientsMu sync.Mutex
	clients   map[chan imu.Window]struct{}
}

func newWindowHub() *windowHub {
	return &windowHub{clients: make(map[chan imu.Window]struct{})}
}

func (h *windowHub) publishWindow(w imu.Window) {
	h.mu.Lock()
	h.last = w
	h.haveWindow = true
	h.mu.Unlock()

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- w:
		default:
			// slow client, it will get the next one
		}
	}
}

func (h *windowHub) publishStatus(s imu.Status) {
	h.mu.Lock()
	h.status = s
	h.haveStatus = true
	h.mu.Unlock()
}

func (h *windowHub) subscribe() chan imu.Window {
	ch := make(chan imu.Window, 4)
	h.clientsMu.Lock()
	h.clients[ch] = struct{}{}
	h.clientsMu.Unlock()
	return ch
}

func (h *windowHub) unsubscribe(ch chan imu.Window) {
	h.clientsMu.Lock()
	delete(h.clients, ch)
	h.clientsMu.Unlock()
}

func (h *windowHub) handleWindow(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	win, ok := h.last, h.haveWindow
	h.mu.RUnlock()
	writeJSON(w, win, ok)
}

func (h *windowHub) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	st, ok := h.status, h.haveStatus
	h.mu.RUnlock()
	writeJSON(w, st, ok)
}

func writeJSON(w http.ResponseWriter, v any, ok bool) {
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// handleWS streams windows to one websocket client, starting with the latest.
func (h *windowHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Reader goroutine notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	h.mu.RLock()
	last, ok := h.last, h.haveWindow
	h.mu.RUnlock()
	if ok {
		if err := conn.WriteJSON(last); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case win := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(win); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

func (h *windowHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/window", h.handleWindow)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/ws", h.handleWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// RunWeb subscribes to the window and status topics and serves them over
// HTTP and websocket until ctx is done.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	hub := newWindowHub()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeJSON(client, cfg.TopicWindow, "web", hub.publishWindow); err != nil {
		return err
	}
	if cfg.TopicStatus != "" {
		if err := subscribeJSON(client, cfg.TopicStatus, "web", hub.publishStatus); err != nil {
			return err
		}
	}

	srv := &http.Server{Addr: ":" + strconv.Itoa(cfg.WebServerPort), Handler: hub.routes()}
	log.Printf("web server listening on %s", srv.Addr)
	return serveHTTP(ctx, srv)
}
