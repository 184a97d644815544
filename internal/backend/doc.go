// Package backend selects and configures the transport variant a run uses.
//
// Config carries one section per variant; only the section named by Kind is
// validated and used. NewFactory turns a Config into the transport.Factory
// each driver calls once during setup:
//
//	cfg := backend.DefaultConfig()
//	cfg.Kind = transport.KindText
//	cfg.Text.Addr = "127.0.0.1:11211"
//	factory, err := backend.NewFactory(cfg)
package backend
