package scheduler

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Level classifies overall system pressure.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	}
	return "unknown"
}

// DefaultSampleInterval is how often the monitor refreshes its reading.
const DefaultSampleInterval = 5 * time.Second

// ResourceMonitor periodically samples CPU, memory, goroutine count and
// system load average, and classifies pressure into a Level the scheduler
// uses for executor selection.
type ResourceMonitor struct {
	interval time.Duration

	mu         sync.RWMutex
	level      Level
	cpuPercent float64
	memPercent float64
	loadAvg    float64
	goroutines int

	stopOnce sync.Once
	stop     chan struct{}
}

func NewResourceMonitor(interval time.Duration) *ResourceMonitor {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	m := &ResourceMonitor{interval: interval, stop: make(chan struct{})}
	m.sample()
	go m.run()
	return m
}

func (m *ResourceMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stop:
			return
		}
	}
}

// Stop halts sampling. The last reading stays available.
func (m *ResourceMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Level returns the most recent pressure classification.
func (m *ResourceMonitor) Level() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Snapshot returns the last raw readings for diagnostics.
func (m *ResourceMonitor) Snapshot() (cpuPercent, memPercent, loadAvg float64, goroutines int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cpuPercent, m.memPercent, m.loadAvg, m.goroutines
}

func (m *ResourceMonitor) sample() {
	var cpuPct, memPct, load1 float64

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		load1 = avg.Load1
	}
	goroutines := runtime.NumGoroutine()

	level := classify(cpuPct, memPct, load1)

	m.mu.Lock()
	changed := level != m.level
	m.level = level
	m.cpuPercent = cpuPct
	m.memPercent = memPct
	m.loadAvg = load1
	m.goroutines = goroutines
	m.mu.Unlock()

	if changed {
		slog.Debug("system load level changed",
			"level", level.String(),
			"cpu_percent", cpuPct,
			"mem_percent", memPct,
			"load_avg", load1,
			"goroutines", goroutines)
	}
}

func classify(cpuPct, memPct, load1 float64) Level {
	cores := float64(runtime.NumCPU())
	switch {
	case cpuPct > 90 || memPct > 95 || load1 > 4*cores:
		return LevelCritical
	case cpuPct > 75 || memPct > 85 || load1 > 2*cores:
		return LevelHigh
	case cpuPct > 50 || memPct > 70 || load1 > cores:
		return LevelMedium
	default:
		return LevelLow
	}
}
