// Package client is the load harness: it runs one operation driver per
// worker goroutine and records what the drivers measure.
//
// All drivers of a Client share one warm-up coordinator and one set of error
// counters, so exactly one of them loads the dataset.
//
//	cl := client.New(factory, warmup.New(), metrics.NewErrorCounters(), config)
//
//	// Run for a duration
//	snap, err := cl.RunFor(ctx, 10*time.Second)
//
//	// Or run a fixed number of operations
//	snap, err := cl.RunRequests(ctx, 10000)
//
// # Configuration
//
// The Config struct allows tuning:
//   - NumWorkers: parallel workers (0 = CPU count)
//   - RequestsLimit: max operations across all workers (0 = unlimited)
//   - MaxRPS: global operation rate cap (0 = unlimited)
//   - Driver: dataset size, payload size, key suffix and request sleep
package client
