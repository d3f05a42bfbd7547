package metrics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats 宿主机运行快照，状态接口附带返回
type SystemStats struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryTotal   uint64    `json:"memory_total"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	Goroutines    int       `json:"goroutines"`
}

// CollectSystemStats 采集系统快照，单项采集失败置零不报错
func CollectSystemStats() *SystemStats {
	stats := &SystemStats{
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsed = vm.Used
		stats.MemoryTotal = vm.Total
	}

	if uptime, err := host.Uptime(); err == nil {
		stats.UptimeSeconds = uptime
	}

	return stats
}
