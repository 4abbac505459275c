// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/accel_fir/internal/imu"
)

func testWindow(seq uint64) imu.Window {
	return imu.Window{
		Seq:       seq,
		BlockSize: 2,
		Blocks:    1,
		Fill:      []int{2},
		Raw:       imu.Axes{X: []float32{1, 2}, Y: []float32{3, 4}, Z: []float32{5, 6}},
		Filtered:  imu.Axes{X: []float32{0.5, 1.5}, Y: []float32{1, 2}, Z: []float32{3, 4}},
	}
}

func TestWindowAPI(t *testing.T) {
	hub := newWindowHub()
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/window")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("empty hub status = %d, want 503", resp.StatusCode)
	}

	hub.publishWindow(testWindow(7))
	resp, err = http.Get(srv.URL + "/api/window")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got imu.Window
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Seq != 7 || got.Filtered.X[1] != 1.5 {
		t.Errorf("window = %+v", got)
	}
}

func TestWebsocketStreamsWindows(t *testing.T) {
	hub := newWindowHub()
	hub.publishWindow(testWindow(1))
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var w imu.Window
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatal(err)
	}
	if w.Seq != 1 {
		t.Errorf("first window seq = %d, want latest (1)", w.Seq)
	}

	// The client is registered before the latest window is sent, so this
	// one is delivered through the hub.
	hub.publishWindow(testWindow(2))
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatal(err)
	}
	if w.Seq != 2 {
		t.Errorf("pushed window seq = %d, want 2", w.Seq)
	}
}

func TestStatusAPI(t *testing.T) {
	hub := newWindowHub()
	hub.publishStatus(imu.Status{Drains: 10, BusFaults: 1})
	rec := httptest.NewRecorder()
	hub.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	var st imu.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Drains != 10 || st.BusFaults != 1 {
		t.Errorf("status = %+v", st)
	}
}
