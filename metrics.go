package fusion

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics. Implement it to export to
// a monitoring system.
type MetricsCollector interface {
	// RecordLoad is called after each Open.
	RecordLoad(format string, duration time.Duration, err error)
	// RecordSave is called after each Save.
	RecordSave(format string, duration time.Duration, err error)
	// RecordSearch is called after each similarity query.
	RecordSearch(k int, duration time.Duration, err error)
	// RecordQuantize is called after each quantization run.
	RecordQuantize(duration time.Duration, err error)
	// RecordEvaluate is called after each analogy evaluation with the
	// number of instances read.
	RecordEvaluate(instances int, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(string, time.Duration, error)  {}
func (NoopMetricsCollector) RecordSave(string, time.Duration, error)  {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordQuantize(time.Duration, error)      {}
func (NoopMetricsCollector) RecordEvaluate(int, time.Duration, error) {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	LoadCount          atomic.Int64
	LoadErrors         atomic.Int64
	LoadTotalNanos     atomic.Int64
	SaveCount          atomic.Int64
	SaveErrors         atomic.Int64
	SearchCount        atomic.Int64
	SearchErrors       atomic.Int64
	SearchTotalNanos   atomic.Int64
	QuantizeCount      atomic.Int64
	QuantizeErrors     atomic.Int64
	QuantizeTotalNanos atomic.Int64
	EvaluateCount      atomic.Int64
	EvaluateErrors     atomic.Int64
	EvaluateInstances  atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ string, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(_ string, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordQuantize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuantize(duration time.Duration, err error) {
	b.QuantizeCount.Add(1)
	b.QuantizeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QuantizeErrors.Add(1)
	}
}

// RecordEvaluate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEvaluate(instances int, _ time.Duration, err error) {
	b.EvaluateCount.Add(1)
	b.EvaluateInstances.Add(int64(instances))
	if err != nil {
		b.EvaluateErrors.Add(1)
	}
}

// GetStats returns a snapshot of the counters.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:         b.LoadCount.Load(),
		LoadErrors:        b.LoadErrors.Load(),
		LoadAvgNanos:      avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		SaveCount:         b.SaveCount.Load(),
		SaveErrors:        b.SaveErrors.Load(),
		SearchCount:       b.SearchCount.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SearchAvgNanos:    avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		QuantizeCount:     b.QuantizeCount.Load(),
		QuantizeErrors:    b.QuantizeErrors.Load(),
		QuantizeAvgNanos:  avg(b.QuantizeTotalNanos.Load(), b.QuantizeCount.Load()),
		EvaluateCount:     b.EvaluateCount.Load(),
		EvaluateErrors:    b.EvaluateErrors.Load(),
		EvaluateInstances: b.EvaluateInstances.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector.
type BasicMetricsStats struct {
	LoadCount         int64
	LoadErrors        int64
	LoadAvgNanos      int64
	SaveCount         int64
	SaveErrors        int64
	SearchCount       int64
	SearchErrors      int64
	SearchAvgNanos    int64
	QuantizeCount     int64
	QuantizeErrors    int64
	QuantizeAvgNanos  int64
	EvaluateCount     int64
	EvaluateErrors    int64
	EvaluateInstances int64
}
