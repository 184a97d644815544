// Package binary talks to a binary-protocol cache server over RESP.
//
// Every driver owns one Transport with a single pooled connection, so load
// from different workers never shares a socket. Dial checks the server with a
// PING and reports any failure as Fatal, which aborts driver setup:
//
//	t, err := binary.Dial(ctx, binary.Config{Addr: "127.0.0.1:6379"})
//	if err != nil {
//	    return err
//	}
//	defer t.Close()
//
// A missing key is reported through transport.Absent. Resets and timeouts are
// Transient; every other server reply is a Protocol failure.
package binary
