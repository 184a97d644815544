package backend

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cakery-bench/internal/transport"
	"cakery-bench/internal/transport/memory"
)

func TestNewFactorySelectsVariant(t *testing.T) {
	db, err := miniredis.Run()
	require.NoError(t, err)
	defer db.Close()

	node := memory.NewNode("memory-0")
	require.NoError(t, node.Start())

	cfg := DefaultConfig()
	cfg.Binary.Addr = db.Addr()
	cfg.Memory = node

	ctx := context.Background()
	for _, kind := range []transport.Kind{transport.KindBinary, transport.KindHTTP, transport.KindScript, transport.KindMemory} {
		cfg.Kind = kind
		factory, err := NewFactory(cfg)
		require.NoError(t, err, kind)

		tr, err := factory(ctx)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, tr.Kind())
		assert.NoError(t, tr.Close())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"binary without address", func(c *Config) { c.Kind = transport.KindBinary; c.Binary.Addr = "" }},
		{"text without address", func(c *Config) { c.Kind = transport.KindText; c.Text.Addr = "" }},
		{"http without uri", func(c *Config) { c.Kind = transport.KindHTTP; c.HTTP.URI = "" }},
		{"http without cache", func(c *Config) { c.Kind = transport.KindHTTP; c.HTTP.Cache = "" }},
		{"script without query set", func(c *Config) { c.Kind = transport.KindScript; c.Script.QuerySetSize = 0 }},
		{"unknown kind", func(c *Config) { c.Kind = "hotrod2" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewFactory(cfg)
			assert.Error(t, err)
		})
	}
}

func TestMemoryRequiresNode(t *testing.T) {
	_, err := NewFactory(DefaultConfig())
	assert.Error(t, err)
}
