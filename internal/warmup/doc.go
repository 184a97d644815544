// Package warmup elects the single worker that bulk-loads the dataset.
//
// Every driver calls TryBecomeLeader during setup. Exactly one caller wins
// and performs the load; all others return immediately and start measuring
// without waiting, even if the load is still in flight. Election is scoped to
// one Coordinator, which in a normal run is the process-wide Default.
//
//	c := warmup.New()
//	if c.TryBecomeLeader(workerID) {
//	    defer c.MarkDone()
//	    // load the dataset
//	}
//
// State only moves forward: NotStarted, InProgress, Done. Done returns a
// channel for observers that want to wait for the load.
package warmup
