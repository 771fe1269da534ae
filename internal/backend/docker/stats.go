package docker

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-units"
)

func decodeStats(r io.Reader) (container.StatsResponse, error) {
	var stats container.StatsResponse
	if err := json.NewDecoder(r).Decode(&stats); err != nil {
		return stats, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}

// memoryInfo renders usage without page cache against the limit, e.g. "12.5MiB / 1GiB"
func memoryInfo(stats container.StatsResponse) string {
	used := stats.MemoryStats.Usage
	if cache, ok := stats.MemoryStats.Stats["inactive_file"]; ok && cache < used {
		used -= cache
	} else if cache, ok := stats.MemoryStats.Stats["cache"]; ok && cache < used {
		used -= cache
	}
	if used == 0 && stats.MemoryStats.Limit == 0 {
		return ""
	}
	return fmt.Sprintf("%s / %s",
		units.BytesSize(float64(used)),
		units.BytesSize(float64(stats.MemoryStats.Limit)))
}

// cpuInfo renders the CPU percentage between the previous and current sample
func cpuInfo(stats container.StatsResponse) string {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)

	cpus := float64(stats.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if cpus == 0 {
		cpus = 1
	}

	percent := 0.0
	if cpuDelta > 0 && systemDelta > 0 {
		percent = cpuDelta / systemDelta * cpus * 100
	}
	return fmt.Sprintf("%.2f%%", percent)
}
