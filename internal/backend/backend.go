package backend

import (
	"github.com/pkg/errors"

	"cakery-bench/internal/transport"
	"cakery-bench/internal/transport/binary"
	"cakery-bench/internal/transport/httpcache"
	"cakery-bench/internal/transport/memory"
	"cakery-bench/internal/transport/script"
	"cakery-bench/internal/transport/text"
)

// Config は実行で使うバックエンドの設定。Kindに対応する項目のみ使う
type Config struct {
	Kind   transport.Kind
	Binary binary.Config
	Text   text.Config
	HTTP   httpcache.Config
	Script script.Config
	// Memory はmemory種別の接続先。単一ノードかクラスタ
	Memory memory.Router
}

// DefaultConfig はmemory種別のデフォルト設定を返す。他の種別も既定値を持つ
func DefaultConfig() Config {
	return Config{
		Kind:   transport.KindMemory,
		Binary: binary.DefaultConfig(),
		Text:   text.DefaultConfig(),
		HTTP:   httpcache.DefaultConfig(),
		Script: script.DefaultConfig(),
	}
}

// Validate はKindで選ばれた項目を検証する
func (c Config) Validate() error {
	switch c.Kind {
	case transport.KindBinary:
		if c.Binary.Addr == "" {
			return errors.New("binary backend requires an address")
		}
	case transport.KindText:
		if c.Text.Addr == "" {
			return errors.New("text backend requires an address")
		}
	case transport.KindHTTP:
		if c.HTTP.URI == "" {
			return errors.New("http backend requires a service uri")
		}
		if c.HTTP.Cache == "" {
			return errors.New("http backend requires a cache name")
		}
	case transport.KindScript:
		if c.Script.QuerySetSize <= 0 {
			return errors.Errorf("script backend requires a positive query set size, got %d", c.Script.QuerySetSize)
		}
	case transport.KindMemory:
	default:
		return errors.Errorf("unknown backend kind: %q", c.Kind)
	}
	return nil
}

// NewFactory はcfg.Kindのtransport.Factoryを返す
func NewFactory(cfg Config) (transport.Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case transport.KindBinary:
		return binary.Factory(cfg.Binary), nil
	case transport.KindText:
		return text.Factory(cfg.Text), nil
	case transport.KindHTTP:
		return httpcache.Factory(cfg.HTTP), nil
	case transport.KindScript:
		return script.Factory(cfg.Script), nil
	default:
		if cfg.Memory == nil {
			return nil, errors.New("memory backend requires a node or cluster")
		}
		return memory.Factory(cfg.Memory), nil
	}
}
