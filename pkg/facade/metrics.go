package facade

import (
	"context"
	"os"

	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/opd-ai/go-tor/pkg/session"
)

// ResourceMetrics is the sampled snapshot get_metrics returns, layered on
// top of the session manager's circuit metrics with process-level
// resource usage the façade owns.
type ResourceMetrics struct {
	session.CircuitMetrics
	MemoryMB    float64 `json:"memoryMb"`
	LatencyMs   float64 `json:"latencyMs"`
	CPUPercent  float64 `json:"cpuPercent"`
	ThroughputB float64 `json:"throughputBytesPerSec"`
}

// sampleMemoryMB reads the current process's resident set size via
// gopsutil, the way the pack's own process-supervisor code (hlf-easy's
// node.Peer.GetInfo) samples a child process's MemoryInfo.
func sampleMemoryMB() (float64, error) {
	proc, err := gopsprocess.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return float64(info.RSS) / (1024 * 1024), nil
}

func (f *Facade) cpuPercent() float64 {
	proc, err := gopsprocess.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	pct, err := proc.PercentWithContext(context.Background(), 0)
	if err != nil {
		return 0
	}
	return pct
}
