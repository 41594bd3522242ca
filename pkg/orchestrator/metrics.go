package orchestrator

import "time"

// Metrics receives lifecycle measurements. Implementations must be safe for
// concurrent use; the two extractions report from separate goroutines.
type Metrics interface {
	SetState(state string)
	ObservePhase(phase string, d time.Duration, err error)
	RecordRestart()
	RecordPluginInstall(ok bool)
	AddExtractedBytes(bundle string, n int64)
}

type nopMetrics struct{}

func (nopMetrics) SetState(string) {}
func (nopMetrics) ObservePhase(string, time.Duration, error) {}
func (nopMetrics) RecordRestart() {}
func (nopMetrics) RecordPluginInstall(bool) {}
func (nopMetrics) AddExtractedBytes(string, int64) {}
