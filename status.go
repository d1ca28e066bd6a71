package main

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// StatusHandler serves the /api/status endpoint.
type StatusHandler struct {
	engine   *Engine
	sessions *SessionManager
	config   *Config
}

func NewStatusHandler(engine *Engine, sessions *SessionManager, config *Config) *StatusHandler {
	return &StatusHandler{
		engine:   engine,
		sessions: sessions,
		config:   config,
	}
}

// getCPUInfo returns the CPU model name and total core count.
func getCPUInfo() (string, int) {
	info, err := cpu.Info()
	if err != nil {
		log.Printf("Failed to get CPU info: %v", err)
		return "Unknown", 0
	}
	if len(info) == 0 {
		return "Unknown", 0
	}
	cores := 0
	for _, c := range info {
		cores += int(c.Cores)
	}
	return info[0].ModelName, cores
}

// ServeHTTP reports pipeline state, session counts and host resource
// usage as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cpuModel, cpuCores := getCPUInfo()

	system := map[string]interface{}{
		"cpu_model":  cpuModel,
		"cpu_cores":  cpuCores,
		"goroutines": runtime.NumGoroutine(),
		"go_version": runtime.Version(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		system["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		system["mem_total"] = vm.Total
		system["mem_used"] = vm.Used
		system["mem_percent"] = vm.UsedPercent
	}

	status := map[string]interface{}{
		"uptime_seconds": int64(time.Since(StartTime).Seconds()),
		"sessions":       h.sessions.Count(),
		"max_sessions":   h.config.Server.MaxSessions,
		"source":         h.config.Source.Type,
		"engine":         h.engine.Status(),
		"system":         system,
	}

	w.Header().Set("Content-Type", "application/json")
	if h.config.Server.EnableCORS {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("[Status] Failed to encode response: %v", err)
	}
}
