package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"cakery-bench/internal/driver"
	"cakery-bench/internal/events"
	"cakery-bench/internal/logger"
	"cakery-bench/internal/metrics"
	"cakery-bench/internal/transport"
	"cakery-bench/internal/warmup"
	"cakery-bench/internal/worker"
)

// Config はClientの設定
type Config struct {
	NumWorkers    int           // ワーカー数（0でCPU数）
	RequestsLimit uint64        // 操作数の上限（0で無制限）
	MaxRPS        float64       // 全体の秒間操作数の上限（0で無制限）
	Driver        driver.Config // 各ドライバの設定。IDとSeedはワーカーごとに決まる
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		NumWorkers: 0, // CPU数
		Driver:     driver.DefaultConfig(),
	}
}

// Client はワーカーごとに1つのドライバを動かす負荷生成器
type Client struct {
	config   Config
	factory  transport.Factory
	coord    *warmup.Coordinator
	counters *metrics.ErrorCounters
	bus      *events.Bus
	group    *worker.Group
	metrics  *metrics.Metrics
	unit     *metrics.Unit
	limiter  *rate.Limiter

	issued  atomic.Uint64
	running atomic.Bool

	mu        sync.Mutex
	drivers   []*driver.Driver
	setupErrs *multierror.Error
	ctx       context.Context
	cancel    context.CancelFunc
}

// New は新しいClientを作成する
func New(factory transport.Factory, coord *warmup.Coordinator, counters *metrics.ErrorCounters, config Config) *Client {
	if coord == nil {
		coord = warmup.Default()
	}
	if counters == nil {
		counters = metrics.NewErrorCounters()
	}
	c := &Client{
		config:   config,
		factory:  factory,
		coord:    coord,
		counters: counters,
		group:    worker.NewGroup(config.NumWorkers),
		metrics:  metrics.New(),
		unit:     metrics.NewUnit(),
	}
	if config.MaxRPS > 0 {
		burst := int(config.MaxRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.MaxRPS), burst)
	}
	return c
}

// SetEventBus はドライバのイベント通知先を設定する。Start前に呼ぶこと
func (c *Client) SetEventBus(bus *events.Bus) {
	c.bus = bus
}

// Start は全ワーカーを起動する
func (c *Client) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return // Already running
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.group.Start(c.ctx, c.runWorker)

	logger.Info("", "Client started (workers: %d, entries: %d, request_sleep: %v)",
		c.group.NumWorkers(), c.config.Driver.Entries, c.config.Driver.RequestSleep)
}

// runWorker は1ワーカーのライフサイクルを実行する
func (c *Client) runWorker(ctx context.Context, id int) {
	cfg := c.config.Driver
	cfg.ID = fmt.Sprintf("worker-%d", id)
	if cfg.Seed != 0 {
		cfg.Seed += int64(id)
	}

	d := driver.New(cfg, c.factory, c.coord, c.counters)
	d.SetEventBus(c.bus)
	c.mu.Lock()
	c.drivers = append(c.drivers, d)
	c.mu.Unlock()

	if err := d.Setup(ctx); err != nil {
		c.mu.Lock()
		c.setupErrs = multierror.Append(c.setupErrs, errors.Wrapf(err, "%s setup", cfg.ID))
		c.mu.Unlock()
		return
	}

	for ctx.Err() == nil {
		if c.config.RequestsLimit > 0 && c.issued.Add(1) > c.config.RequestsLimit {
			return
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
		}

		d.PreOperation(c.unit)
		start := time.Now()
		err := d.Operation(ctx)
		latency := time.Since(start)
		if err != nil {
			c.metrics.RecordFailure(latency)
			logger.Debug(cfg.ID, "Operation failed: %v", err)
		} else {
			c.metrics.RecordSuccess(latency)
		}
		d.PostOperation(ctx)
	}
}

// Stop は負荷生成を停止し、全ドライバをクローズする
func (c *Client) Stop() error {
	if !c.running.Swap(false) {
		return nil // Not running
	}

	c.cancel()
	c.group.Stop()

	c.mu.Lock()
	drivers := c.drivers
	c.drivers = nil
	c.mu.Unlock()

	var result *multierror.Error
	for _, d := range drivers {
		if err := d.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "%s close", d.ID()))
		}
	}

	logger.Info("", "Client stopped")
	return result.ErrorOrNil()
}

// Metrics はメトリクスを返す
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Unit はバックエンドが報告した値の集計を返す
func (c *Client) Unit() *metrics.Unit {
	return c.unit
}

// Counters はエラーカウンタを返す
func (c *Client) Counters() *metrics.ErrorCounters {
	return c.counters
}

// Coordinator はウォームアップ調整役を返す
func (c *Client) Coordinator() *warmup.Coordinator {
	return c.coord
}

// SetupErrors はセットアップに失敗したドライバのエラーをまとめて返す
func (c *Client) SetupErrors() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setupErrs.ErrorOrNil()
}

// NumWorkers はワーカー数を返す
func (c *Client) NumWorkers() int {
	return c.group.NumWorkers()
}

// IsRunning は実行中かどうかを返す
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// RunFor は指定時間だけ負荷生成を実行する。全ワーカーが先に終了した場合はそこで戻る
func (c *Client) RunFor(ctx context.Context, duration time.Duration) (*metrics.Snapshot, error) {
	c.Start(ctx)

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-c.group.Done():
	}

	err := c.Stop()
	snapshot := c.metrics.Snapshot()
	return &snapshot, err
}

// RunRequests は指定数の操作を実行する
func (c *Client) RunRequests(ctx context.Context, count uint64) (*metrics.Snapshot, error) {
	c.config.RequestsLimit = count
	c.Start(ctx)

	select {
	case <-ctx.Done():
	case <-c.group.Done():
	}

	err := c.Stop()
	snapshot := c.metrics.Snapshot()
	return &snapshot, err
}
