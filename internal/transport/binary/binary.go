package binary

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"cakery-bench/internal/transport"
)

var errClosed = errors.New("transport closed")

// Config はバイナリプロトコル接続の設定
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Transport は1ドライバ専用のRESP接続
type Transport struct {
	client *redis.Client
	closed atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// Dial は接続を確立し、疎通を確認する
func Dial(ctx context.Context, cfg Config) (*Transport, error) {
	if cfg.Addr == "" {
		return nil, transport.NewError(transport.Fatal, "dial", "", errors.New("address is required"))
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     1,
		MaxRetries:   0,
	})
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
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

// Kind はKindBinaryを返す
func (t *Transport) Kind() transport.Kind {
	return transport.KindBinary
}

// Put はkeyにvalueを書き込む。Close後はFatalを返す
func (t *Transport) Put(ctx context.Context, key string, value []byte) error {
	if t.closed.Load() {
		return transport.NewError(transport.Fatal, "put", key, errClosed)
	}
	if err := t.client.WithContext(ctx).Set(key, value, 0).Err(); err != nil {
		return classify("put", key, err)
	}
	return nil
}

// Get はkeyの値を返す。存在しなければAbsentを返す
func (t *Transport) Get(ctx context.Context, key string) ([]byte, error) {
	if t.closed.Load() {
		return nil, transport.NewError(transport.Fatal, "get", key, errClosed)
	}
	value, err := t.client.WithContext(ctx).Get(key).Bytes()
	if err == redis.Nil {
		return nil, transport.Absent("get", key)
	}
	if err != nil {
		return nil, classify("get", key, err)
	}
	return value, nil
}

// Close は接続を閉じる。複数回呼んでもよい
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.client.Close()
}

// classify はgo-redisのエラーをTransientかProtocolに分類する
func classify(op, key string, err error) error {
	if transport.IsNetworkError(err) || transport.IsRefused(err) {
		return transport.NewError(transport.Transient, op, key, err)
	}
	return transport.NewError(transport.Protocol, op, key, err)
}
