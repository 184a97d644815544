// Package metrics collects what a benchmark run measures.
//
// Metrics records operation latency, success/failure counts and throughput.
// ErrorCounters holds the put and get failure counts shared by every driver of
// a run. Unit collects values reported by the backend itself, such as the
// operation time printed by an external script.
//
//	m := metrics.New()
//	start := time.Now()
//	// ... do work ...
//	m.RecordSuccess(time.Since(start))
//	fmt.Printf("Total: %d, RPS: %.2f, P99: %v\n",
//	    m.TotalRequests(), m.RPS(), m.P99Latency())
//
// RunCollector exposes all three to Prometheus.
//
// All types are safe for concurrent use.
package metrics
