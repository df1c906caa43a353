package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/ballast/internal/database"
)

// SystemHandlers serves process and host monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startedAt   time.Time
	configDB    *database.DB
	portfolioDB *database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, startedAt time.Time, configDB, portfolioDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startedAt:   startedAt,
		configDB:    configDB,
		portfolioDB: portfolioDB,
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"status":         "running",
			"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
			"cpu_percent":    cpuPercent,
			"memory_percent": memPercent,
			"goroutines":     runtime.NumGoroutine(),
			"go_version":     runtime.Version(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, response)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	databases := map[string]*database.DB{
		"config":    h.configDB,
		"portfolio": h.portfolioDB,
	}

	stats := make(map[string]interface{}, len(databases))
	for name, db := range databases {
		if db == nil {
			continue
		}
		dbStats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			continue
		}
		stats[name] = map[string]interface{}{
			"size_bytes":     dbStats.SizeBytes,
			"wal_size_bytes": dbStats.WALSizeBytes,
			"page_count":     dbStats.PageCount,
			"page_size":      dbStats.PageSize,
			"freelist_count": dbStats.FreelistCount,
		}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"databases": stats,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, response)
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"data_dir":     h.dataDir,
		"data_size_mb": h.getDirSize(h.dataDir),
	}

	if usage, err := disk.Usage(h.dataDir); err == nil {
		data["total_gb"] = float64(usage.Total) / 1024 / 1024 / 1024
		data["free_gb"] = float64(usage.Free) / 1024 / 1024 / 1024
		data["used_percent"] = usage.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	}

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, response)
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages.
// A 100ms sampling window keeps the endpoint responsive for pollers.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
