// Package worker runs a fixed number of long-lived worker goroutines.
//
// Each worker receives its index and a context that is cancelled by Stop or
// by the parent context. A worker returns when its work is done or the
// context is cancelled.
//
//	g := worker.NewGroup(4) // 0 means runtime.NumCPU()
//	g.Start(ctx, func(ctx context.Context, id int) {
//	    for ctx.Err() == nil {
//	        // do work
//	    }
//	})
//	defer g.Stop()
//
// Panics inside a worker are recovered and counted.
package worker
