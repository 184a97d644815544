package text

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"

	"cakery-bench/internal/transport"
)

var errClosed = errors.New("transport closed")

// Config はテキストプロトコル接続の設定
type Config struct {
	Addr    string
	Timeout time.Duration
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:11211",
		Timeout: 3 * time.Second,
	}
}

// Transport は1ドライバ専用のmemcached接続
type Transport struct {
	client *memcache.Client
	closed atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// Dial はクライアントを作成し、versionコマンドで疎通を確認する
func Dial(ctx context.Context, cfg Config) (*Transport, error) {
	if cfg.Addr == "" {
		return nil, transport.NewError(transport.Fatal, "dial", "", errors.New("address is required"))
	}
	if err := ctx.Err(); err != nil {
		return nil, transport.NewError(transport.Fatal, "dial", "", err)
	}
	client := memcache.New(cfg.Addr)
	client.Timeout = cfg.Timeout
	client.MaxIdleConns = 1
	if err := client.Ping(); err != nil {
		_ = client.Close()
		return nil, transport.NewError(transport.Fatal, "dial", "", errors.Wrapf(err, "ping %s", cfg.Addr))
	}
	return &Transport{client: client}, nil
}

// Factory はcfgで接続するtransport.Factoryを返す
func Factory(cfg Config) transport.Factory {
	return func(ctx context.Context) (transport.Transport, error) {
		return Dial(ctx, cfg)
	}
}

// Kind はKindTextを返す
func (t *Transport) Kind() transport.Kind {
	return transport.KindText
}

// Put はkeyにvalueを書き込む。Close後はFatalを返す
func (t *Transport) Put(ctx context.Context, key string, value []byte) error {
	if t.closed.Load() {
		return transport.NewError(transport.Fatal, "put", key, errClosed)
	}
	if err := ctx.Err(); err != nil {
		return transport.NewError(transport.Transient, "put", key, err)
	}
	if err := t.client.Set(&memcache.Item{Key: key, Value: value}); err != nil {
		return classify("put", key, err)
	}
	return nil
}

// Get はkeyの値を返す。キャッシュミスはAbsentになる
func (t *Transport) Get(ctx context.Context, key string) ([]byte, error) {
	if t.closed.Load() {
		return nil, transport.NewError(transport.Fatal, "get", key, errClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, transport.NewError(transport.Transient, "get", key, err)
	}
	item, err := t.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, transport.Absent("get", key)
	}
	if err != nil {
		return nil, classify("get", key, err)
	}
	return item.Value, nil
}

// Close はアイドル接続を閉じる。複数回呼んでもよい
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.client.Close()
}

// classify はgomemcacheのエラーを分類する
func classify(op, key string, err error) error {
	var timeout *memcache.ConnectTimeoutError
	var netErr net.Error
	switch {
	case errors.Is(err, memcache.ErrMalformedKey), errors.Is(err, memcache.ErrServerError):
		return transport.NewError(transport.Protocol, op, key, err)
	case errors.As(err, &timeout), errors.As(err, &netErr),
		transport.IsNetworkError(err), transport.IsRefused(err):
		return transport.NewError(transport.Transient, op, key, err)
	default:
		return transport.NewError(transport.Protocol, op, key, err)
	}
}
