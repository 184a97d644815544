package memory

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"cakery-bench/internal/transport"
)

var (
	errClosed  = errors.New("transport closed")
	errNoNodes = errors.New("no nodes")
)

// Router はキーを担当するノードを選ぶ
type Router interface {
	Route(key string) *Node
}

// Transport はNodeまたはClusterに対するドライバのハンドル
type Transport struct {
	router Router
	closed atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// New はrのハンドルを返す
func New(r Router) *Transport {
	return &Transport{router: r}
}

// Factory はrのハンドルを作るtransport.Factoryを返す
func Factory(r Router) transport.Factory {
	return func(_ context.Context) (transport.Transport, error) {
		return New(r), nil
	}
}

// Kind はKindMemoryを返す
func (t *Transport) Kind() transport.Kind {
	return transport.KindMemory
}

// Put は担当ノードに書き込む
func (t *Transport) Put(ctx context.Context, key string, value []byte) error {
	if t.closed.Load() {
		return transport.NewError(transport.Fatal, "put", key, errClosed)
	}
	n := t.router.Route(key)
	if n == nil {
		return transport.NewError(transport.Transient, "put", key, errNoNodes)
	}
	if err := n.Set(ctx, key, value); err != nil {
		return transport.NewError(transport.Transient, "put", key, err)
	}
	return nil
}

// Get は担当ノードから読み出す
func (t *Transport) Get(ctx context.Context, key string) ([]byte, error) {
	if t.closed.Load() {
		return nil, transport.NewError(transport.Fatal, "get", key, errClosed)
	}
	n := t.router.Route(key)
	if n == nil {
		return nil, transport.NewError(transport.Transient, "get", key, errNoNodes)
	}
	value, ok, err := n.Get(ctx, key)
	if err != nil {
		return nil, transport.NewError(transport.Transient, "get", key, err)
	}
	if !ok {
		return nil, transport.Absent("get", key)
	}
	return value, nil
}

// Close はハンドルを閉じる。ノードは停止しない
func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}
