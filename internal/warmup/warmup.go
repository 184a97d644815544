package warmup

import (
	"sync"
	"sync/atomic"
	"time"
)

// State はウォームアップの状態。後戻りしない
type State int32

const (
	NotStarted State = iota
	InProgress
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Coordinator は1回の実行の全ドライバが共有するウォームアップ状態
type Coordinator struct {
	state  atomic.Int32
	leader atomic.Value // string

	startedAt  atomic.Int64
	finishedAt atomic.Int64

	doneOnce sync.Once
	done     chan struct{}
}

// New はNotStarted状態のコーディネータを作成する
func New() *Coordinator {
	c := &Coordinator{done: make(chan struct{})}
	c.leader.Store("")
	return c
}

var defaultCoordinator = New()

// Default はプロセス共通のコーディネータを返す
func Default() *Coordinator {
	return defaultCoordinator
}

// TryBecomeLeader は呼び出し側が選出されたかを返す。ブロックしない
func (c *Coordinator) TryBecomeLeader(id string) bool {
	if !c.state.CompareAndSwap(int32(NotStarted), int32(InProgress)) {
		return false
	}
	c.leader.Store(id)
	c.startedAt.Store(time.Now().UnixNano())
	return true
}

// MarkDone はInProgressをDoneに進める。選出前や2回目の呼び出しは何もしない
func (c *Coordinator) MarkDone() {
	if !c.state.CompareAndSwap(int32(InProgress), int32(Done)) {
		return
	}
	c.finishedAt.Store(time.Now().UnixNano())
	c.doneOnce.Do(func() { close(c.done) })
}

// IsDone はリーダーのロードが完了したかを返す
func (c *Coordinator) IsDone() bool {
	return c.State() == Done
}

// State は現在の状態を返す
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Leader は選出されたリーダーのIDを返す。選出前は空文字
func (c *Coordinator) Leader() string {
	return c.leader.Load().(string)
}

// Done はウォームアップ完了時にクローズされるチャネルを返す
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Duration はロードの所要時間を返す。実行中なら経過時間
func (c *Coordinator) Duration() time.Duration {
	start := c.startedAt.Load()
	if start == 0 {
		return 0
	}
	end := c.finishedAt.Load()
	if end == 0 {
		return time.Since(time.Unix(0, start))
	}
	return time.Duration(end - start)
}
