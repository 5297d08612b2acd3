package stats

import (
	"sync/atomic"
	"time"

	"breachbench/internal/record"
)

// KindStats aggregates one operation kind.
type KindStats struct {
	Success uint64
	Fail    uint64

	// Latency in microseconds
	Latency *SafeHistogram
	// Gas is empty for ReadState
	Gas *SafeHistogram
}

// Stats holds real-time aggregated metrics of a run
type Stats struct {
	kinds [3]*KindStats
}

func NewStats() *Stats {
	s := &Stats{}
	for i := range s.kinds {
		s.kinds[i] = &KindStats{
			Latency: NewLatencyHistogram(),
			Gas:     NewGasHistogram(),
		}
	}
	return s
}

// Kind returns the aggregate of k.
func (s *Stats) Kind(k record.Kind) *KindStats {
	return s.kinds[k]
}

func (s *Stats) Add(o record.Outcome) {
	ks := s.kinds[o.Op.Kind]
	atomic.AddUint64(&ks.Success, 1)
	ks.Latency.RecordValue(o.Latency.Microseconds())
	if o.Op.Kind.Mutating() {
		ks.Gas.RecordValue(int64(o.Cost))
	}
}

func (s *Stats) AddFailure(k record.Kind) {
	atomic.AddUint64(&s.kinds[k].Fail, 1)
}

// Completed is the number of successful operations over all kinds.
func (s *Stats) Completed() uint64 {
	var n uint64
	for _, ks := range s.kinds {
		n += atomic.LoadUint64(&ks.Success)
	}
	return n
}

func (s *Stats) Failed() uint64 {
	var n uint64
	for _, ks := range s.kinds {
		n += atomic.LoadUint64(&ks.Fail)
	}
	return n
}

func (s *Stats) ErrorRate() float64 {
	total := s.Completed() + s.Failed()
	if total == 0 {
		return 0
	}
	return (float64(s.Failed()) / float64(total)) * 100
}

// LatencyMs returns the q-th latency percentile of kind k in milliseconds.
func (ks *KindStats) LatencyMs(q float64) float64 {
	return float64(ks.Latency.ValueAtQuantile(q)) / 1000.0
}

func (ks *KindStats) MaxLatency() time.Duration {
	return time.Duration(ks.Latency.Max()) * time.Microsecond
}

func (ks *KindStats) MeanGas() float64 {
	if ks.Gas.TotalCount() == 0 {
		return 0
	}
	return ks.Gas.Mean()
}

// Summary is a serializable view of one kind.
type Summary struct {
	Kind         string  `json:"kind"`
	Success      uint64  `json:"success"`
	Fail         uint64  `json:"fail"`
	P50LatencyMs float64 `json:"p50_latency_ms"`
	P90LatencyMs float64 `json:"p90_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
	MeanGas      float64 `json:"mean_gas,omitempty"`
	MinGas       int64   `json:"min_gas,omitempty"`
	MaxGas       int64   `json:"max_gas,omitempty"`
}

// Summaries returns one Summary per kind that saw any traffic.
func (s *Stats) Summaries() []Summary {
	var out []Summary
	for _, k := range record.Kinds() {
		ks := s.kinds[k]
		ok, fail := atomic.LoadUint64(&ks.Success), atomic.LoadUint64(&ks.Fail)
		if ok+fail == 0 {
			continue
		}
		sum := Summary{
			Kind:         k.String(),
			Success:      ok,
			Fail:         fail,
			P50LatencyMs: ks.LatencyMs(50),
			P90LatencyMs: ks.LatencyMs(90),
			P99LatencyMs: ks.LatencyMs(99),
			MaxLatencyMs: float64(ks.Latency.Max()) / 1000.0,
		}
		if k.Mutating() && ks.Gas.TotalCount() > 0 {
			sum.MeanGas = ks.Gas.Mean()
			sum.MinGas = ks.Gas.Min()
			sum.MaxGas = ks.Gas.Max()
		}
		out = append(out, sum)
	}
	return out
}
