package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"cakery-bench/internal/logger"
)

// Func は各ワーカーゴルーチンが実行する関数。ctxがキャンセルされたら戻ること
type Func func(ctx context.Context, id int)

// Group は長時間動作するワーカーゴルーチンの集合を管理する
type Group struct {
	numWorkers int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	running    atomic.Int32
	panics     atomic.Uint64
	done       chan struct{}
	mu         sync.Mutex
}

// NewGroup は新しいワーカーグループを作成する
// numWorkers が 0 以下の場合は CPU 数を使用
func NewGroup(numWorkers int) *Group {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Group{numWorkers: numWorkers}
}

// Start は全ワーカーを起動する。既に起動済みならfalseを返す
func (g *Group) Start(ctx context.Context, fn Func) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return false
	}

	g.ctx, g.cancel = context.WithCancel(ctx)
	g.started = true
	g.done = make(chan struct{})

	for i := 0; i < g.numWorkers; i++ {
		g.wg.Add(1)
		g.running.Add(1)
		go g.run(i, fn)
	}

	go func(done chan struct{}) {
		g.wg.Wait()
		close(done)
	}(g.done)

	logger.Info("", "Worker group started with %d workers", g.numWorkers)
	return true
}

// run は個々のワーカーゴルーチン
func (g *Group) run(id int, fn Func) {
	defer g.wg.Done()
	defer g.running.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			g.panics.Add(1)
			logger.Error(fmt.Sprintf("worker-%d", id), "Worker panicked: %v", r)
		}
	}()

	fn(g.ctx, id)
}

// Stop は全ワーカーにキャンセルを通知し、終了を待つ
func (g *Group) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	cancel := g.cancel
	g.mu.Unlock()

	cancel()
	g.wg.Wait()

	logger.Info("", "Worker group stopped")
}

// Wait は全ワーカーが自発的に終了するまで待つ
func (g *Group) Wait() {
	g.wg.Wait()
}

// Done は全ワーカー終了時にクローズされるチャネルを返す。Start前はnil
func (g *Group) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// NumWorkers はワーカー数を返す
func (g *Group) NumWorkers() int {
	return g.numWorkers
}

// Running は実行中のワーカー数を返す
func (g *Group) Running() int {
	return int(g.running.Load())
}

// Panics は回復したpanicの回数を返す
func (g *Group) Panics() uint64 {
	return g.panics.Load()
}
