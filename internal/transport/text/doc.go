// Package text talks to a memcached-compatible server over the text protocol.
//
// The client keeps at most one idle connection per driver. Dial issues a
// "version" command to verify the server is reachable; failures there are
// Fatal. Malformed keys and SERVER_ERROR replies are Protocol failures,
// while timeouts and dropped connections are Transient.
//
// Close releases the driver's socket. Any later Put or Get fails with a
// Fatal error instead of dialing again.
package text
