// Package gpu polls accelerator telemetry for the inference backend
// host. The monitor is read-only and safe to share between concurrent
// document pipelines; it alerts through the log, never by failing
// in-flight requests.
package gpu

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/Extracta/internal/logger"
)

// Stats is one telemetry sample across all devices.
type Stats struct {
	MemoryUsedGB       float64
	MemoryTotalGB      float64
	MemoryUsedFraction float64
	Utilization        float64 // 0..1
	Devices            int
}

// queryFunc returns raw telemetry lines; injectable for tests.
type queryFunc func(ctx context.Context) (string, error)

// Monitor samples accelerator memory and utilization via nvidia-smi.
type Monitor struct {
	query         queryFunc
	warnThreshold float64
	pollInterval  time.Duration
	log           logger.Logger

	mu       sync.Mutex
	alerting bool
}

// NewMonitor builds a monitor shelling out to nvidia-smi.
// warnThreshold is a utilization fraction (e.g. 0.90).
func NewMonitor(warnThreshold float64, pollInterval time.Duration, log logger.Logger) *Monitor {
	if log == nil {
		log = logger.Default()
	}
	return &Monitor{
		query:         nvidiaSMI,
		warnThreshold: warnThreshold,
		pollInterval:  pollInterval,
		log:           log,
	}
}

// NewMonitorWithQuery is NewMonitor with an injected telemetry source.
func NewMonitorWithQuery(q queryFunc, warnThreshold float64, pollInterval time.Duration, log logger.Logger) *Monitor {
	m := NewMonitor(warnThreshold, pollInterval, log)
	m.query = q
	return m
}

func nvidiaSMI(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx,
		"nvidia-smi",
		"--query-gpu=memory.used,memory.total,utilization.gpu",
		"--format=csv,noheader,nounits",
	).Output()
	if err != nil {
		return "", fmt.Errorf("nvidia-smi: %w", err)
	}
	return string(out), nil
}

// Stats samples telemetry once, aggregating across devices.
func (m *Monitor) Stats(ctx context.Context) (Stats, error) {
	raw, err := m.query(ctx)
	if err != nil {
		return Stats{}, err
	}
	return parseStats(raw)
}

// parseStats reads "used_mib, total_mib, util_pct" per line, one line
// per device.
func parseStats(raw string) (Stats, error) {
	var s Stats
	var utilSum float64
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return Stats{}, fmt.Errorf("unexpected telemetry line %q", line)
		}
		used, err1 := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		total, err2 := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		util, err3 := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return Stats{}, fmt.Errorf("unparsable telemetry line %q", line)
		}
		s.MemoryUsedGB += used / 1024
		s.MemoryTotalGB += total / 1024
		utilSum += util / 100
		s.Devices++
	}
	if s.Devices == 0 {
		return Stats{}, fmt.Errorf("no devices in telemetry output")
	}
	if s.MemoryTotalGB > 0 {
		s.MemoryUsedFraction = s.MemoryUsedGB / s.MemoryTotalGB
	}
	s.Utilization = utilSum / float64(s.Devices)
	return s, nil
}

// HasAvailableMemory reports whether at least requiredGB is free right now.
func (m *Monitor) HasAvailableMemory(ctx context.Context, requiredGB float64) bool {
	s, err := m.Stats(ctx)
	if err != nil {
		// Telemetry failure must not deadlock callers; assume available.
		m.log.Warn("accelerator telemetry unavailable", "error", err)
		return true
	}
	return s.MemoryTotalGB-s.MemoryUsedGB >= requiredGB
}

// WaitForMemory polls until requiredGB frees up or the timeout elapses.
// Returns false on timeout so the caller decides to fail fast or queue.
func (m *Monitor) WaitForMemory(ctx context.Context, requiredGB float64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if m.HasAvailableMemory(ctx, requiredGB) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.pollInterval):
		}
	}
}

// Watch samples on the poll interval until ctx is cancelled, logging a
// warning once per crossing of the utilization threshold.
func (m *Monitor) Watch(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := m.Stats(ctx)
			if err != nil {
				continue
			}
			m.checkThreshold(s)
		}
	}
}

func (m *Monitor) checkThreshold(s Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	over := s.Utilization >= m.warnThreshold
	if over && !m.alerting {
		m.log.Warn("accelerator utilization above threshold",
			"utilization", s.Utilization, "threshold", m.warnThreshold,
			"memory_used_gb", s.MemoryUsedGB, "memory_total_gb", s.MemoryTotalGB)
	}
	m.alerting = over
}
