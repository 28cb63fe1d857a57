// Package monitor samples process and system resource usage on an interval.
// Samples feed the Prometheus gauges and the detailed health endpoint; the
// monitor never touches pool state.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/pirate-baby/ATC/internal/metrics"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSample holds one point-in-time resource reading
type ResourceSample struct {
	Timestamp time.Time `json:"timestamp"`

	// CPU metrics
	CPUPercent float64 `json:"cpu_percent"`
	CPUCores   int     `json:"cpu_cores"`
	GoRoutines int     `json:"go_routines"`

	// Memory metrics
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	HeapAllocMB   uint64  `json:"heap_alloc_mb"`
	HeapSysMB     uint64  `json:"heap_sys_mb"`

	Uptime time.Duration `json:"uptime"`
}

// ResourceMonitor periodically collects resource samples
type ResourceMonitor struct {
	startTime time.Time
	interval  time.Duration

	sample ResourceSample
	mu     sync.RWMutex

	// Thresholds for warnings
	cpuThreshold    float64
	memoryThreshold float64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewResourceMonitor creates a monitor sampling at the given interval
func NewResourceMonitor(interval time.Duration) *ResourceMonitor {
	return &ResourceMonitor{
		startTime:       time.Now(),
		interval:        interval,
		cpuThreshold:    80.0,
		memoryThreshold: 90.0,
		stopCh:          make(chan struct{}),
	}
}

// Start begins the sampling loop
func (rm *ResourceMonitor) Start(ctx context.Context) {
	rm.wg.Add(1)
	go rm.monitorLoop(ctx)
}

// Stop stops the monitor and waits for the loop to exit
func (rm *ResourceMonitor) Stop() {
	close(rm.stopCh)
	rm.wg.Wait()
}

func (rm *ResourceMonitor) monitorLoop(ctx context.Context) {
	defer rm.wg.Done()

	ticker := time.NewTicker(rm.interval)
	defer ticker.Stop()

	// Initial collection so the health endpoint has data immediately
	rm.collectSample()

	for {
		select {
		case <-ctx.Done():
			logging.Log.Info("Resource monitor stopping due to context cancellation")
			return
		case <-rm.stopCh:
			logging.Log.Info("Resource monitor stopping")
			return
		case <-ticker.C:
			rm.collectSample()
			rm.checkThresholds()
		}
	}
}

// collectSample gathers one resource reading and publishes the gauges
func (rm *ResourceMonitor) collectSample() {
	sample := ResourceSample{
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(rm.startTime),
		CPUCores:   runtime.NumCPU(),
		GoRoutines: runtime.NumGoroutine(),
	}

	if cpuPercent, err := cpu.Percent(time.Second, false); err == nil && len(cpuPercent) > 0 {
		sample.CPUPercent = cpuPercent[0]
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		sample.MemoryUsedMB = vmStat.Used / 1024 / 1024
		sample.MemoryTotalMB = vmStat.Total / 1024 / 1024
		sample.MemoryPercent = vmStat.UsedPercent
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	sample.HeapAllocMB = memStats.HeapAlloc / 1024 / 1024
	sample.HeapSysMB = memStats.HeapSys / 1024 / 1024

	rm.mu.Lock()
	rm.sample = sample
	rm.mu.Unlock()

	metrics.UpdateProcessResources(sample.CPUPercent, sample.MemoryPercent, sample.GoRoutines)

	logging.Log.WithField("sample", sample).Debug("Resource sample collected")
}

// checkThresholds warns when resource usage crosses the configured limits
func (rm *ResourceMonitor) checkThresholds() {
	sample := rm.GetSample()

	if sample.CPUPercent > rm.cpuThreshold {
		logging.Log.WithField("cpu_percent", sample.CPUPercent).
			WithField("threshold", rm.cpuThreshold).
			Warn("CPU usage exceeds threshold")
	}

	if sample.MemoryPercent > rm.memoryThreshold {
		logging.Log.WithField("memory_percent", sample.MemoryPercent).
			WithField("threshold", rm.memoryThreshold).
			Warn("Memory usage exceeds threshold")
	}
}

// GetSample returns the most recent resource sample
func (rm *ResourceMonitor) GetSample() ResourceSample {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.sample
}

// SetThresholds overrides the warning thresholds
func (rm *ResourceMonitor) SetThresholds(cpuPercent, memoryPercent float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.cpuThreshold = cpuPercent
	rm.memoryThreshold = memoryPercent
}

// IsHealthy reports whether the process is operating within its thresholds
func (rm *ResourceMonitor) IsHealthy() bool {
	sample := rm.GetSample()

	if sample.CPUPercent > rm.cpuThreshold {
		return false
	}
	if sample.MemoryPercent > rm.memoryThreshold {
		return false
	}
	if sample.GoRoutines > 1000 {
		logging.Log.WithField("go_routines", sample.GoRoutines).
			Warn("Excessive number of goroutines detected")
		return false
	}

	return true
}
