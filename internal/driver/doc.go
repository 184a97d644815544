// Package driver runs one worker's benchmark lifecycle against a backend.
//
// A Driver owns exactly one transport. Setup connects it and takes part in the
// warm-up election: the single winner loads the dataset, every other driver is
// ready at once without waiting for the load to finish. The harness then calls
// PreOperation, Operation and PostOperation once per measured operation, and
// Close when the run is over.
//
//	d := driver.New(cfg, factory, coord, counters)
//	if err := d.Setup(ctx); err != nil {
//	    return err
//	}
//	defer d.Close()
//	for ctx.Err() == nil {
//	    d.PreOperation(unit)
//	    err := d.Operation(ctx)
//	    d.PostOperation(ctx)
//	}
//
// Transient put failures during warm-up are retried once; a second failure
// abandons the entry. Every failed attempt counts as a put error. Steady-state
// get failures are counted and, except for the HTTP variant, returned as a
// failed operation.
package driver
