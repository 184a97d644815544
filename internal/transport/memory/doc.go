// Package memory provides an in-process cache node and the transport drivers
// use to talk to it.
//
// A Node plays the role of the backend server; a Cluster spreads keys over
// several nodes by hash. Every driver gets its own Transport handle, the same
// way each driver would own its own connection to a real server. Nodes can be
// stopped, suspended or slowed down, which the chaos package uses to produce
// transient failures.
//
//	c := memory.NewCluster()
//	_ = c.CreateNodes(3, "memory")
//	_ = c.StartAll()
//	factory := memory.Factory(c)
package memory
