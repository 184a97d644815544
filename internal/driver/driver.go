package driver

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"cakery-bench/internal/dataset"
	"cakery-bench/internal/events"
	"cakery-bench/internal/logger"
	"cakery-bench/internal/metrics"
	"cakery-bench/internal/transport"
	"cakery-bench/internal/warmup"
)

// State はドライバのライフサイクル状態
type State int32

const (
	StateCreated State = iota
	StateInitialized
	StateWarming
	StateReady
	StateMeasuring
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateWarming:
		return "warming"
	case StateReady:
		return "ready"
	case StateMeasuring:
		return "measuring"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotReady は準備前または終了後の操作呼び出しを表す
var ErrNotReady = errors.New("driver is not ready")

// putAttempts は1エントリあたりの最大put試行回数（初回+リトライ1回）
const putAttempts = 2

// Config はドライバの設定
type Config struct {
	ID           string
	Entries      int           // データセットのエントリ数 N
	PayloadSize  int           // documentString のサイズ
	KeySuffix    string        // キーのサフィックス（空なら付与しない）
	RequestSleep time.Duration // 操作後のスリープ（0以下でスキップ）
	Seed         int64         // キー選択の乱数シード（0で自動）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		ID:          "worker-0",
		Entries:     1000,
		PayloadSize: dataset.DefaultPayloadSize,
	}
}

// WarmupStats はウォームアップの結果
type WarmupStats struct {
	Loaded    int
	Abandoned int
	Duration  time.Duration
}

// Driver は1ワーカー分のライフサイクルを実行する
type Driver struct {
	cfg      Config
	factory  transport.Factory
	coord    *warmup.Coordinator
	counters *metrics.ErrorCounters
	bus      *events.Bus

	state     atomic.Int32
	tr        transport.Transport
	rnd       *rand.Rand
	unit      *metrics.Unit
	leader    bool
	warm      WarmupStats
	closeOnce sync.Once
	closeErr  error
}

// New は新しいドライバを作成する。トランスポートはSetupで作成される
func New(cfg Config, factory transport.Factory, coord *warmup.Coordinator, counters *metrics.ErrorCounters) *Driver {
	if coord == nil {
		coord = warmup.Default()
	}
	if counters == nil {
		counters = metrics.NewErrorCounters()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Driver{
		cfg:      cfg,
		factory:  factory,
		coord:    coord,
		counters: counters,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// SetEventBus はイベントの通知先を設定する。Setup前に呼ぶこと
func (d *Driver) SetEventBus(bus *events.Bus) {
	d.bus = bus
}

// ID はドライバIDを返す
func (d *Driver) ID() string {
	return d.cfg.ID
}

// State は現在の状態を返す
func (d *Driver) State() State {
	return State(d.state.Load())
}

// IsLeader はこのドライバがウォームアップを担当したかを返す
func (d *Driver) IsLeader() bool {
	return d.leader
}

// Warmup はウォームアップ結果を返す。リーダー以外はゼロ値
func (d *Driver) Warmup() WarmupStats {
	return d.warm
}

// Transport は所有しているトランスポートを返す。Setup前はnil
func (d *Driver) Transport() transport.Transport {
	return d.tr
}

// Setup はトランスポートを接続し、ウォームアップ選出に参加する。
// 接続に失敗した場合、ドライバはCreatedのまま残る
func (d *Driver) Setup(ctx context.Context) error {
	if d.State() != StateCreated {
		return errors.Errorf("driver %s: setup called in state %s", d.cfg.ID, d.State())
	}
	if d.cfg.Entries <= 0 {
		return transport.NewError(transport.Fatal, "setup", "", errors.Errorf("number of entries must be positive, got %d", d.cfg.Entries))
	}
	tr, err := d.factory(ctx)
	if err != nil {
		if transport.KindOf(err) != transport.Fatal {
			err = transport.NewError(transport.Fatal, "setup", "", err)
		}
		logger.Error(d.cfg.ID, "Transport setup failed: %v", err)
		return err
	}
	d.tr = tr
	d.state.Store(int32(StateInitialized))

	if tr.Kind().Loadable() && d.coord.TryBecomeLeader(d.cfg.ID) {
		d.leader = true
		d.state.Store(int32(StateWarming))
		d.warmUp(ctx)
	}
	d.state.Store(int32(StateReady))
	return nil
}

// warmUp はデータセットをロードする。途中で終了してもMarkDoneは必ず呼ばれる
func (d *Driver) warmUp(ctx context.Context) {
	defer d.coord.MarkDone()

	start := time.Now()
	before := d.counters.PutErrors()
	logger.Info(d.cfg.ID, "Warm-up started (%d entries, payload %d bytes)", d.cfg.Entries, d.cfg.PayloadSize)
	d.bus.Publish(events.NewWarmupStartedEvent(d.cfg.ID, d.cfg.Entries))

	for i := 1; i <= d.cfg.Entries; i++ {
		if ctx.Err() != nil {
			logger.Warn(d.cfg.ID, "Warm-up interrupted after %d of %d entries", i-1, d.cfg.Entries)
			break
		}
		key := dataset.Key(i, d.cfg.KeySuffix)
		value := dataset.Serialize(dataset.Generate(i, d.cfg.PayloadSize))
		if err := d.put(ctx, key, value); err != nil {
			d.warm.Abandoned++
			logger.Warn(d.cfg.ID, "Abandoning %s: %v", key, err)
			d.bus.Publish(events.NewPutAbandonedEvent(d.cfg.ID, key, err))
			continue
		}
		d.warm.Loaded++
	}

	d.warm.Duration = time.Since(start)
	failed := d.counters.PutErrors() - before
	logger.Info(d.cfg.ID, "Warm-up completed in %v (loaded %d, abandoned %d, failed attempts %d)",
		d.warm.Duration, d.warm.Loaded, d.warm.Abandoned, failed)
	d.bus.Publish(events.NewWarmupCompletedEvent(d.cfg.ID, d.warm.Loaded, failed, d.warm.Duration))
}

// put は1エントリを書き込む。Transientな失敗のみ1回リトライする
func (d *Driver) put(ctx context.Context, key string, value []byte) error {
	attempt := 0
	return retry.Do(
		func() error {
			attempt++
			err := d.tr.Put(ctx, key, value)
			if err != nil {
				d.counters.IncPut()
				if attempt < putAttempts && transport.IsTransient(err) {
					logger.Debug(d.cfg.ID, "Retrying %s after transient failure: %v", key, err)
					d.bus.Publish(events.NewPutRetriedEvent(d.cfg.ID, key, err))
				}
			}
			return err
		},
		retry.Attempts(putAttempts),
		retry.RetryIf(transport.IsTransient),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

// PreOperation は計測単位を受け取る
func (d *Driver) PreOperation(unit *metrics.Unit) {
	d.unit = unit
}

// Operation は1回の計測対象操作を実行する
func (d *Driver) Operation(ctx context.Context) error {
	switch d.State() {
	case StateReady:
		d.state.Store(int32(StateMeasuring))
	case StateMeasuring:
	default:
		return ErrNotReady
	}

	if inv, ok := d.tr.(transport.Invoker); ok {
		return d.invoke(ctx, inv)
	}

	key := dataset.Key(d.rnd.Intn(d.cfg.Entries)+1, d.cfg.KeySuffix)
	_, err := d.tr.Get(ctx, key)
	if err == nil {
		return nil
	}
	d.counters.IncGet()
	if !d.tr.Kind().EscalatesGetFailures() {
		logger.Debug(d.cfg.ID, "Get %s failed: %v", key, err)
		return nil
	}
	d.bus.Publish(events.NewOperationFailedEvent(d.cfg.ID, key, err))
	return errors.Wrapf(err, "operation on %s", key)
}

func (d *Driver) invoke(ctx context.Context, inv transport.Invoker) error {
	m, ok, err := inv.Invoke(ctx)
	if err != nil {
		d.counters.IncGet()
		d.bus.Publish(events.NewOperationFailedEvent(d.cfg.ID, "", err))
		return errors.Wrap(err, "invocation")
	}
	if ok && d.unit != nil {
		d.unit.AppendResult(m.Name, m.Value)
	}
	return nil
}

// PostOperation は設定された間隔だけ待機する
func (d *Driver) PostOperation(ctx context.Context) {
	if d.cfg.RequestSleep <= 0 {
		return
	}
	timer := time.NewTimer(d.cfg.RequestSleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Close はトランスポートを解放する。複数回呼んでもよい
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.state.Store(int32(StateClosed))
		if d.tr != nil {
			d.closeErr = d.tr.Close()
		}
	})
	return d.closeErr
}
