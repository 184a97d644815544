package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cakery-bench/internal/logger"
)

// Status はノードの状態を表す
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// ErrNotRunning はノードがリクエストを受け付けない状態を表す
var ErrNotRunning = fmt.Errorf("node is not running")

// Node はインメモリキャッシュの単一ノードを表す
type Node struct {
	id     string
	status Status
	delay  time.Duration

	mu   sync.RWMutex
	data map[string][]byte

	puts atomic.Uint64
	gets atomic.Uint64
}

// NewNode は新しいノードを作成する
func NewNode(id string) *Node {
	return &Node{
		id:     id,
		status: StatusStopped,
		data:   make(map[string][]byte),
	}
}

// ID はノードIDを返す
func (n *Node) ID() string {
	return n.id
}

// Route は単一ノード構成では常に自身を返す
func (n *Node) Route(string) *Node {
	return n
}

// Start はノードを起動する
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == StatusRunning {
		return fmt.Errorf("node %s is already running", n.id)
	}

	n.status = StatusRunning

	logger.Info(n.id, "Node started")
	return nil
}

// Stop はノードを停止する。データは保持される
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == StatusStopped {
		return fmt.Errorf("node %s is already stopped", n.id)
	}

	n.status = StatusStopped

	logger.Info(n.id, "Node stopped")
	return nil
}

// Status はノードの現在のステータスを返す
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Suspend はノードを一時停止する
func (n *Node) Suspend() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status != StatusRunning {
		return fmt.Errorf("node %s is not running", n.id)
	}

	n.status = StatusSuspended
	logger.Info(n.id, "Node suspended")
	return nil
}

// Resume は一時停止中のノードを再開する
func (n *Node) Resume() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status != StatusSuspended {
		return fmt.Errorf("node %s is not suspended", n.id)
	}

	n.status = StatusRunning
	logger.Info(n.id, "Node resumed")
	return nil
}

// SetDelay はレスポンス遅延を設定する
func (n *Node) SetDelay(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delay = d
	if d > 0 {
		logger.Info(n.id, "Delay set to %v", d)
	} else {
		logger.Info(n.id, "Delay cleared")
	}
}

// Delay は現在の遅延設定を返す
func (n *Node) Delay() time.Duration {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.delay
}

// applyDelay は設定された遅延を適用する
func (n *Node) applyDelay(ctx context.Context) error {
	d := n.Delay()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Get はキーに対応する値を取得する
func (n *Node) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := n.applyDelay(ctx); err != nil {
		return nil, false, err
	}
	n.gets.Add(1)

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.status != StatusRunning {
		return nil, false, ErrNotRunning
	}

	value, exists := n.data[key]
	return value, exists, nil
}

// Set はキーに値を設定する
func (n *Node) Set(ctx context.Context, key string, value []byte) error {
	if err := n.applyDelay(ctx); err != nil {
		return err
	}
	n.puts.Add(1)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status != StatusRunning {
		return ErrNotRunning
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	n.data[key] = stored
	return nil
}

// Keys は全てのキーを返す
func (n *Node) Keys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	keys := make([]string, 0, len(n.data))
	for k := range n.data {
		keys = append(keys, k)
	}
	return keys
}

// Size はデータストアのサイズを返す
func (n *Node) Size() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.data)
}

// Puts は受け付けたSet回数を返す
func (n *Node) Puts() uint64 {
	return n.puts.Load()
}

// Gets は受け付けたGet回数を返す
func (n *Node) Gets() uint64 {
	return n.gets.Load()
}
