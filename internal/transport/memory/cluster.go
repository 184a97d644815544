package memory

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"cakery-bench/internal/logger"
)

// Cluster はキーのハッシュで複数ノードにデータを分散する
type Cluster struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	ring  []*Node // ID順。ルーティングに使う
}

// NewCluster は空のクラスタを作成する
func NewCluster() *Cluster {
	return &Cluster{
		nodes: make(map[string]*Node),
	}
}

// AddNode はクラスタにノードを追加する
func (c *Cluster) AddNode(n *Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.nodes[n.ID()]; exists {
		return fmt.Errorf("node %s already exists in cluster", n.ID())
	}

	c.nodes[n.ID()] = n
	c.rebuild()
	logger.Debug("", "Node %s added to cluster", n.ID())
	return nil
}

// RemoveNode はクラスタからノードを削除する
func (c *Cluster) RemoveNode(nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, exists := c.nodes[nodeID]
	if !exists {
		return fmt.Errorf("node %s not found in cluster", nodeID)
	}
	if n.Status() != StatusStopped {
		_ = n.Stop()
	}

	delete(c.nodes, nodeID)
	c.rebuild()
	return nil
}

// rebuild はルーティング順を作り直す。mu を保持して呼ぶこと
func (c *Cluster) rebuild() {
	ring := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		ring = append(ring, n)
	}
	sort.Slice(ring, func(i, j int) bool { return ring[i].ID() < ring[j].ID() })
	c.ring = ring
}

// Route はキーを担当するノードを返す。ノードがなければnil
func (c *Cluster) Route(key string) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.ring) == 0 {
		return nil
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.ring[h.Sum32()%uint32(len(c.ring))]
}

// GetNode はノードIDでノードを取得する
func (c *Cluster) GetNode(nodeID string) (*Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, exists := c.nodes[nodeID]
	return n, exists
}

// Nodes は全てのノードをID順で返す
func (c *Cluster) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Node(nil), c.ring...)
}

// CreateNodes は指定された数のノードを作成してクラスタに追加する
func (c *Cluster) CreateNodes(count int, prefix string) error {
	for i := 0; i < count; i++ {
		if err := c.AddNode(NewNode(fmt.Sprintf("%s-%d", prefix, i+1))); err != nil {
			return err
		}
	}
	logger.Info("", "Created %d memory nodes with prefix '%s'", count, prefix)
	return nil
}

// StartAll は停止中の全ノードを起動する
func (c *Cluster) StartAll() error {
	var result *multierror.Error
	for _, n := range c.Nodes() {
		if n.Status() != StatusStopped {
			continue
		}
		if err := n.Start(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// StopAll は全てのノードを停止する。既に停止しているノードは無視する
func (c *Cluster) StopAll() error {
	var result *multierror.Error
	for _, n := range c.Nodes() {
		if n.Status() == StatusStopped {
			continue
		}
		if err := n.Stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Size はクラスタ内のノード数を返す
func (c *Cluster) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

// RunningCount は実行中のノード数を返す
func (c *Cluster) RunningCount() int {
	count := 0
	for _, n := range c.Nodes() {
		if n.Status() == StatusRunning {
			count++
		}
	}
	return count
}

// Entries は全ノードに格納されたエントリ数の合計を返す
func (c *Cluster) Entries() int {
	total := 0
	for _, n := range c.Nodes() {
		total += n.Size()
	}
	return total
}
