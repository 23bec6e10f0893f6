package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/iotsim/internal/device"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	WebSocket     WSMetrics         `json:"websocket"`
	Simulation    SimulationMetrics `json:"simulation"`
	Devices       DeviceMetrics     `json:"devices"`
	Sinks         SinkMetrics       `json:"sinks"`
	Database      *DatabaseMetrics  `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedMessages  uint64 `json:"dropped_messages"`
}

// SimulationMetrics describes the randomization loop.
type SimulationMetrics struct {
	Passes          uint64  `json:"passes"`
	Strategy        string  `json:"strategy"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

// DeviceMetrics counts devices.
type DeviceMetrics struct {
	Total  int            `json:"total"`
	On     int            `json:"on"`
	ByKind map[string]int `json:"by_kind"`
}

// SinkMetrics reports which export sinks are connected. A nil field means
// the sink is disabled.
type SinkMetrics struct {
	MQTT     *bool `json:"mqtt,omitempty"`
	InfluxDB *bool `json:"influxdb,omitempty"`
	Journal  bool  `json:"journal"`

	InfluxPointsWritten *uint64 `json:"influxdb_points_written,omitempty"`
	InfluxWriteErrors   *uint64 `json:"influxdb_write_errors,omitempty"`
}

// pointCounter is implemented by sinks that count their writes
// (*influxdb.Client).
type pointCounter interface {
	Counts() (written, failed uint64)
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
	SizeBytes       int64 `json:"size_bytes,omitempty"`
}

// dbSizer is implemented by *database.DB.
type dbSizer interface {
	Size(ctx context.Context) (int64, error)
}

// handleMetrics returns runtime and simulation metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedMessages:  s.hub.Dropped(),
		},
		Simulation: SimulationMetrics{
			Passes:          s.system.Passes(),
			Strategy:        string(s.system.Strategy()),
			IntervalSeconds: s.system.Interval().Seconds(),
		},
		Devices: DeviceMetrics{ByKind: make(map[string]int)},
		Sinks: SinkMetrics{
			MQTT:     connected(s.mqtt),
			InfluxDB: connected(s.influx),
			Journal:  s.journal != nil,
		},
	}

	if pc, ok := s.influx.(pointCounter); ok {
		written, failed := pc.Counts()
		metrics.Sinks.InfluxPointsWritten = &written
		metrics.Sinks.InfluxWriteErrors = &failed
	}

	for _, snap := range s.system.Snapshots() {
		metrics.Devices.Total++
		metrics.Devices.ByKind[string(snap.Kind)]++
		if snap.Status == device.StatusOn {
			metrics.Devices.On++
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
		if sz, ok := s.db.(dbSizer); ok {
			if size, err := sz.Size(r.Context()); err == nil {
				metrics.Database.SizeBytes = size
			}
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func connected(c ConnectionStatus) *bool {
	if c == nil {
		return nil
	}
	v := c.IsConnected()
	return &v
}
