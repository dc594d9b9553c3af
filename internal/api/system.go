// internal/api/system.go health endpoint.
package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// StoreCheck reports whether the notification store answers queries.
type StoreCheck struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// SystemInfo is a snapshot of the host the daemon runs on.
type SystemInfo struct {
	Hostname       string  `json:"hostname"`
	OS             string  `json:"os"`
	Architecture   string  `json:"architecture"`
	Platform       string  `json:"platform,omitempty"`
	GoVersion      string  `json:"go_version"`
	NumCPU         int     `json:"num_cpu"`
	MemoryUsedPct  float64 `json:"memory_used_percent"`
	DiskUsedPct    float64 `json:"disk_used_percent"`
	HostUptimeSecs uint64  `json:"host_uptime_seconds,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string     `json:"status"`
	Version       string     `json:"version,omitempty"`
	BuildDate     string     `json:"build_date,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	Store         StoreCheck `json:"store"`
	System        SystemInfo `json:"system"`
}

// HealthCheck handles GET /api/v1/health. It always answers 200 so probes
// can read the body; a store that fails its query turns the status to
// degraded. Host metrics are best effort, a metric that cannot be read is
// simply left at zero. No blocking samples are taken here, probes hit this
// endpoint frequently.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       c.Settings.Version,
		BuildDate:     c.Settings.BuildDate,
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
		Store:         StoreCheck{Healthy: true},
		System:        collectSystemInfo(),
	}

	if _, err := c.DS.GetRecent(1); err != nil {
		resp.Status = "degraded"
		resp.Store = StoreCheck{Healthy: false, Error: err.Error()}
		if c.apiLogger != nil {
			c.apiLogger.Warn("health check: store query failed", "error", err)
		}
	}

	return ctx.JSON(http.StatusOK, resp)
}

func collectSystemInfo() SystemInfo {
	info := SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if hostInfo, err := host.Info(); err == nil {
		info.Platform = hostInfo.Platform
		info.HostUptimeSecs = hostInfo.Uptime
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.MemoryUsedPct = memInfo.UsedPercent
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = "/"
	}
	if usage, err := disk.Usage(wd); err == nil {
		info.DiskUsedPct = usage.UsedPercent
	}

	return info
}
