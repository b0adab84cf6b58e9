package relate

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Stats holds the side-channel counters of §4.14: atomic counters shared
// by the engine's goroutines and printed through the caller's *log.Logger
// by LogSummary.
type Stats struct {
	checksPerformed      uint64
	checksSkippedDAG     uint64
	checksSkippedNodeInfo uint64
}

// NewStats returns a zeroed Stats.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) IncChecksPerformed()       { atomic.AddUint64(&s.checksPerformed, 1) }
func (s *Stats) IncChecksSkippedDAG()      { atomic.AddUint64(&s.checksSkippedDAG, 1) }
func (s *Stats) IncChecksSkippedNodeInfo() { atomic.AddUint64(&s.checksSkippedNodeInfo, 1) }

func (s *Stats) ChecksPerformed() uint64       { return atomic.LoadUint64(&s.checksPerformed) }
func (s *Stats) ChecksSkippedDAG() uint64      { return atomic.LoadUint64(&s.checksSkippedDAG) }
func (s *Stats) ChecksSkippedNodeInfo() uint64 { return atomic.LoadUint64(&s.checksSkippedNodeInfo) }

// LogSummary prints the counters for one completed phase through logger,
// one line per phase.
func (s *Stats) LogSummary(logger *log.Logger, phase string, elapsed time.Duration) {
	if logger == nil {
		return
	}
	logger.Printf(
		"phase %s complete in %s: checks_performed=%d checks_skipped_dag=%d checks_skipped_node_info=%d",
		phase, elapsed.Round(time.Millisecond), s.ChecksPerformed(), s.ChecksSkippedDAG(), s.ChecksSkippedNodeInfo(),
	)
}

// Progress wraps schollz/progressbar/v3 behind a minimal interface so
// phases that don't know or care about terminal output can still report
// counts.
type Progress interface {
	Add(n int)
	Finish()
}

// ProgressWriter is the default Progress backed by a real terminal bar.
type ProgressWriter struct {
	bar *progressbar.ProgressBar
}

// NewProgress creates a progress bar with the given total and description.
func NewProgress(total int, description string) *ProgressWriter {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	return &ProgressWriter{bar: bar}
}

func (p *ProgressWriter) Add(n int) {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Add(n)
}

func (p *ProgressWriter) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// NoopProgress is a Progress that discards all updates.
type NoopProgress struct{}

func (NoopProgress) Add(int) {}
func (NoopProgress) Finish() {}

// FormatCount renders a count with thousands-grouping for stats output.
func FormatCount(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
