// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_fir/internal/bmi160"
	"github.com/relabs-tech/accel_fir/internal/config"
	"github.com/relabs-tech/accel_fir/internal/sensors"
)

// RegisterAccess is the register surface the debugger drives. *bmi160.Dev
// implements it; its transport serializes access with any running drain.
type RegisterAccess interface {
	ReadRegister(reg byte) (byte, error)
	WriteRegister(reg, value byte) error
}

// RegisterCmd is a websocket request.
type RegisterCmd struct {
	Action  string `json:"action"` // "get_map", "read", "read_all", "write", "export_config"
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterResponse is a websocket reply.
type RegisterResponse struct {
	Type        string                `json:"type"` // "register_data", "register_map", "export_config", "error"
	Device      string                `json:"device,omitempty"`
	Address     string                `json:"addr,omitempty"`
	Value       string                `json:"value,omitempty"`
	Registers   map[string]string     `json:"registers,omitempty"`
	Timestamp   string                `json:"timestamp,omitempty"`
	Message     string                `json:"message,omitempty"`
	RegisterMap []bmi160.RegisterInfo `json:"register_map,omitempty"`
	Config      *RegisterConfigFile   `json:"config,omitempty"`
	Filename    string                `json:"filename,omitempty"`
}

// RegisterConfigFile is the exported register snapshot.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

const debugDevice = "bmi160"

// RegisterDebugger serves register reads and writes over websocket.
type RegisterDebugger struct {
	dev      RegisterAccess
	regs     []bmi160.RegisterInfo
	writable map[byte]bool
}

// NewRegisterDebugger returns a debugger for dev. Writes are limited to the
// registers the map marks writable.
func NewRegisterDebugger(dev RegisterAccess) *RegisterDebugger {
	d := &RegisterDebugger{
		dev:      dev,
		regs:     bmi160.RegisterMap(),
		writable: make(map[byte]bool),
	}
	for _, r := range d.regs {
		if r.Writable() {
			d.writable[r.Address] = true
		}
	}
	return d
}

// HandleWS handles one websocket session.
func (d *RegisterDebugger) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(d.registerMap()); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(d.handle(cmd)); err != nil {
			log.Printf("register_debug: websocket write error: %v", err)
			return
		}
	}
}

func (d *RegisterDebugger) handle(cmd RegisterCmd) RegisterResponse {
	switch cmd.Action {
	case "get_map":
		return d.registerMap()
	case "read":
		return d.read(cmd)
	case "read_all":
		return d.readAll()
	case "write":
		return d.write(cmd)
	case "export_config":
		return d.export()
	}
	return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
}

func parseHexByte(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func hexByte(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}

func (d *RegisterDebugger) read(cmd RegisterCmd) RegisterResponse {
	if cmd.Address == "" {
		return errorResponse("missing addr field")
	}
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}
	value, err := d.dev.ReadRegister(addr)
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Device:    debugDevice,
		Address:   hexByte(addr),
		Value:     hexByte(value),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// snapshot reads every readable register in the map.
func (d *RegisterDebugger) snapshot() (map[string]string, error) {
	out := make(map[string]string)
	for _, r := range d.regs {
		if r.Access == "W" {
			continue
		}
		v, err := d.dev.ReadRegister(r.Address)
		if err != nil {
			return nil, fmt.Errorf("%s (%s): %w", r.Name, hexByte(r.Address), err)
		}
		out[hexByte(r.Address)] = hexByte(v)
	}
	return out, nil
}

func (d *RegisterDebugger) readAll() RegisterResponse {
	regs, err := d.snapshot()
	if err != nil {
		return errorResponse(fmt.Sprintf("read all error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Device:    debugDevice,
		Registers: regs,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (d *RegisterDebugger) write(cmd RegisterCmd) RegisterResponse {
	if cmd.Address == "" || cmd.Value == "" {
		return errorResponse("missing addr or value field")
	}
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}
	value, err := parseHexByte(cmd.Value)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid value format: %s", cmd.Value))
	}
	if !d.writable[addr] {
		return errorResponse(fmt.Sprintf("register %s is not writable", hexByte(addr)))
	}
	if err := d.dev.WriteRegister(addr, value); err != nil {
		return errorResponse(fmt.Sprintf("write error: %v", err))
	}
	log.Printf("register_debug: wrote %s to %s", hexByte(value), hexByte(addr))
	return RegisterResponse{
		Type:      "register_data",
		Device:    debugDevice,
		Address:   hexByte(addr),
		Value:     hexByte(value),
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	}
}

func (d *RegisterDebugger) export() RegisterResponse {
	regs, err := d.snapshot()
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	now := time.Now()
	return RegisterResponse{
		Type:   "export_config",
		Device: debugDevice,
		Config: &RegisterConfigFile{
			Version:   1,
			Device:    debugDevice,
			Timestamp: now.Format(time.RFC3339),
			Registers: regs,
		},
		Filename: fmt.Sprintf("%s_%s_registers.json", debugDevice, now.Format("20060102_150405")),
		Message:  "config exported",
	}
}

func (d *RegisterDebugger) registerMap() RegisterResponse {
	return RegisterResponse{
		Type:        "register_map",
		Device:      debugDevice,
		RegisterMap: d.regs,
	}
}

func errorResponse(message string) RegisterResponse {
	return RegisterResponse{Type: "error", Message: message}
}

// HandleRegisters serves a one-shot register snapshot as JSON.
func (d *RegisterDebugger) HandleRegisters(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	regs, err := d.snapshot()
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error": %q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(regs)
}

func (d *RegisterDebugger) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.HandleWS)
	mux.HandleFunc("/api/registers", d.HandleRegisters)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})
	return mux
}

// RunRegisterDebug opens the sensor without reconfiguring it and serves the
// register debugger until ctx is done.
func RunRegisterDebug(ctx context.Context) error {
	cfg := config.Get()
	log.Println("starting BMI160 register debug tool")

	accel, err := sensors.OpenAccel(cfg, false)
	if err != nil {
		return err
	}
	defer accel.Close()

	dbg := NewRegisterDebugger(accel.Dev)
	srv := &http.Server{Addr: ":" + strconv.Itoa(cfg.RegisterDebugPort), Handler: dbg.routes()}
	log.Printf("register debug tool listening on http://localhost%s", srv.Addr)
	return serveHTTP(ctx, srv)
}
