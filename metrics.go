package pqcodec

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    encodeCounter prometheus.Counter
//	    trainHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordEncode(count int, duration time.Duration, err error) {
//	    p.encodeCounter.Add(float64(count))
//	}
type MetricsCollector interface {
	// RecordTrain is called after each training run.
	// vectors is the size of the training set.
	RecordTrain(vectors int, duration time.Duration, err error)

	// RecordEncode is called after each Encode or EncodeBatch.
	// count is the number of vectors encoded.
	RecordEncode(count int, duration time.Duration, err error)

	// RecordPublish is called after each registry publication.
	RecordPublish(duration time.Duration, err error)

	// RecordLoad is called after each registry load.
	RecordLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTrain(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordEncode(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordPublish(time.Duration, error)     {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	TrainCount       atomic.Int64
	TrainErrors      atomic.Int64
	TrainVectors     atomic.Int64
	TrainTotalNanos  atomic.Int64
	EncodeCalls      atomic.Int64
	EncodeVectors    atomic.Int64
	EncodeErrors     atomic.Int64
	EncodeTotalNanos atomic.Int64
	PublishCount     atomic.Int64
	PublishErrors    atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
}

// RecordTrain implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrain(vectors int, duration time.Duration, err error) {
	b.TrainCount.Add(1)
	b.TrainVectors.Add(int64(vectors))
	b.TrainTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TrainErrors.Add(1)
	}
}

// RecordEncode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEncode(count int, duration time.Duration, err error) {
	b.EncodeCalls.Add(1)
	b.EncodeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EncodeErrors.Add(1)
		return
	}
	b.EncodeVectors.Add(int64(count))
}

// RecordPublish implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPublish(_ time.Duration, err error) {
	b.PublishCount.Add(1)
	if err != nil {
		b.PublishErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		TrainCount:     b.TrainCount.Load(),
		TrainErrors:    b.TrainErrors.Load(),
		TrainVectors:   b.TrainVectors.Load(),
		TrainAvgNanos:  avg(b.TrainTotalNanos.Load(), b.TrainCount.Load()),
		EncodeCalls:    b.EncodeCalls.Load(),
		EncodeVectors:  b.EncodeVectors.Load(),
		EncodeErrors:   b.EncodeErrors.Load(),
		EncodeAvgNanos: avg(b.EncodeTotalNanos.Load(), b.EncodeCalls.Load()),
		PublishCount:   b.PublishCount.Load(),
		PublishErrors:  b.PublishErrors.Load(),
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	TrainCount     int64
	TrainErrors    int64
	TrainVectors   int64
	TrainAvgNanos  int64
	EncodeCalls    int64
	EncodeVectors  int64
	EncodeErrors   int64
	EncodeAvgNanos int64
	PublishCount   int64
	PublishErrors  int64
	LoadCount      int64
	LoadErrors     int64
}
