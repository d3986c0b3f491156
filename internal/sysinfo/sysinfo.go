// Package sysinfo computes the host resource snapshot (C14, §4.14): CPU
// count and load, memory used/total, process RSS, and uptime. Grounded
// on cmd/metrics/main.go's gopsutil cpu/mem/load/host collection pattern,
// adapted from a one-shot startup report into an on-demand snapshot
// served at /debug/hostinfo on the admin surface. The control server's
// info reply does not include it.
package sysinfo

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time host resource inventory.
type Snapshot struct {
	CPUCount     int     `json:"cpu_count"`
	LoadAverage1 float64 `json:"load_average_1m"`
	MemoryUsed   uint64  `json:"memory_used_bytes"`
	MemoryTotal  uint64  `json:"memory_total_bytes"`
	ProcessRSS   uint64  `json:"process_rss_bytes"`
	UptimeSecond float64 `json:"uptime_seconds"`
}

// Collector computes Snapshots. Constructed once at startup so the
// process start time is fixed for the uptime calculation.
type Collector struct {
	startedAt time.Time
	pid       int32
}

// New returns a Collector whose uptime is measured from the moment it is
// constructed.
func New() *Collector {
	return &Collector{startedAt: time.Now(), pid: int32(os.Getpid())}
}

// Collect computes one Snapshot. Individual sub-collector failures are
// tolerated — a failed reading leaves the corresponding field zero rather
// than aborting the whole snapshot, since this feeds a best-effort
// diagnostics surface, not a correctness-critical path.
func (c *Collector) Collect() Snapshot {
	snap := Snapshot{UptimeSecond: time.Since(c.startedAt).Seconds()}

	if counts, err := cpu.Counts(true); err == nil {
		snap.CPUCount = counts
	}
	if avg, err := load.Avg(); err == nil {
		snap.LoadAverage1 = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryUsed = vm.Used
		snap.MemoryTotal = vm.Total
	}
	if proc, err := gopsprocess.NewProcess(c.pid); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			snap.ProcessRSS = info.RSS
		}
	}
	return snap
}
