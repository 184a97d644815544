package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"cakery-bench/internal/backend"
	"cakery-bench/internal/chaos"
	"cakery-bench/internal/client"
	"cakery-bench/internal/dataset"
	"cakery-bench/internal/driver"
	"cakery-bench/internal/events"
	"cakery-bench/internal/logger"
	"cakery-bench/internal/metrics"
	"cakery-bench/internal/transport"
	"cakery-bench/internal/transport/memory"
	"cakery-bench/internal/warmup"
)

// Config はシナリオの設定
type Config struct {
	Name        string        // シナリオ名
	Description string        // 説明
	Duration    time.Duration // 実行時間
	Requests    uint64        // 操作数（0より大きければ時間ではなく操作数で終了）

	// バックエンド設定
	Backend   backend.Config
	NodeCount int // memoryバックエンドのノード数

	// データセット設定
	Entries     int    // エントリ数 N
	PayloadSize int    // documentString のサイズ
	KeySuffix   string // キーのサフィックス

	// ワーカー設定
	Workers      int           // ワーカー数
	RequestSleep time.Duration // 操作後のスリープ
	MaxRPS       float64       // 全体の秒間操作数の上限（0で無制限）
	Seed         int64         // キー選択の乱数シード（0で自動）

	// カオス設定（memoryバックエンドのみ）
	EnableChaos   bool               // カオス注入を有効化
	ChaosInterval time.Duration      // 攻撃間隔
	ChaosTargets  int                // 同時攻撃対象数
	AttackTypes   []chaos.AttackType // 有効な攻撃タイプ
	DelayAmount   time.Duration      // Delay攻撃の遅延時間
	RestoreAfter  time.Duration      // 攻撃から復旧までの時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:          "memory",
		Description:   "In-memory backend without chaos",
		Duration:      10 * time.Second,
		Backend:       backend.DefaultConfig(),
		NodeCount:     3,
		Entries:       1000,
		PayloadSize:   dataset.DefaultPayloadSize,
		Workers:       10,
		ChaosInterval: 2 * time.Second,
		ChaosTargets:  1,
		AttackTypes:   []chaos.AttackType{chaos.AttackKill, chaos.AttackSuspend, chaos.AttackDelay},
		DelayAmount:   100 * time.Millisecond,
		RestoreAfter:  1 * time.Second,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Entries <= 0 {
		return errors.Errorf("number of entries must be positive, got %d", c.Entries)
	}
	if c.PayloadSize < 0 {
		return errors.Errorf("payload size must be non-negative, got %d", c.PayloadSize)
	}
	if c.RequestSleep < 0 {
		return errors.Errorf("request sleep must be non-negative, got %v", c.RequestSleep)
	}
	if c.Duration <= 0 && c.Requests == 0 {
		return errors.New("either a duration or a request count is required")
	}
	if c.Backend.Kind == transport.KindMemory && c.NodeCount <= 0 {
		return errors.Errorf("memory backend needs at least one node, got %d", c.NodeCount)
	}
	if c.EnableChaos && c.Backend.Kind != transport.KindMemory {
		return errors.Errorf("chaos injection is only available for the memory backend, not %s", c.Backend.Kind)
	}
	return nil
}

// Result はシナリオ実行結果
type Result struct {
	RunID        string
	ScenarioName string
	Backend      transport.Kind
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Workers      int

	// データセット
	Entries     int
	EntrySize   int
	Footprint   int64
	KeySuffix   string
	PayloadSize int

	// ウォームアップ
	WarmupLeader   string
	WarmupState    warmup.State
	WarmupDuration time.Duration

	// メトリクス
	TotalRequests   uint64
	SuccessRequests uint64
	FailedRequests  uint64
	ErrorRate       float64
	AvgLatency      time.Duration
	P50Latency      time.Duration
	P99Latency      time.Duration
	PutErrors       uint64
	GetErrors       uint64
	Measurements    []metrics.Summary

	// カオス統計
	TotalAttacks  uint64
	TotalRestores uint64

	// ノード状態
	FinalNodeStatus map[string]string
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	runID    string
	eventBus *events.Bus

	cluster  *memory.Cluster
	coord    *warmup.Coordinator
	counters *metrics.ErrorCounters
	client   *client.Client
	monkey   *chaos.Monkey

	mu      sync.RWMutex
	running bool
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config:   config,
		runID:    uuid.NewString(),
		counters: metrics.NewErrorCounters(),
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// RunID は実行IDを返す
func (e *Engine) RunID() string {
	return e.runID
}

// Config は設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Run はシナリオを実行する。全ドライバのセットアップが失敗した場合はエラーを返す
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if err := e.config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}

	logger.Info("", "=== Scenario '%s' started (run %s, backend %s) ===", e.config.Name, e.runID, e.config.Backend.Kind)
	logger.Info("", "Description: %s", e.config.Description)

	result := &Result{
		RunID:        e.runID,
		ScenarioName: e.config.Name,
		Backend:      e.config.Backend.Kind,
		StartTime:    time.Now(),
	}

	if err := e.setup(); err != nil {
		if tdErr := e.teardown(); tdErr != nil {
			logger.Warn("", "Teardown after failed setup: %v", tdErr)
		}
		return nil, errors.Wrap(err, "setup failed")
	}

	snapshot, runErr := e.runScenario(ctx)
	teardownErr := e.teardown()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result, snapshot)

	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)

	var errs *multierror.Error
	if runErr != nil {
		errs = multierror.Append(errs, runErr)
	}
	if teardownErr != nil {
		errs = multierror.Append(errs, errors.Wrap(teardownErr, "teardown"))
	}
	if setupErr := e.client.SetupErrors(); setupErr != nil && result.TotalRequests == 0 {
		errs = multierror.Append(errs, errors.Wrap(setupErr, "no driver could be set up"))
	} else if setupErr != nil {
		logger.Warn("", "Some drivers failed to set up: %v", setupErr)
	}
	return result, errs.ErrorOrNil()
}

// setup はシナリオ実行前のセットアップ
func (e *Engine) setup() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	backendConfig := e.config.Backend
	if backendConfig.Kind == transport.KindMemory {
		e.cluster = memory.NewCluster()
		if err := e.cluster.CreateNodes(e.config.NodeCount, "memory"); err != nil {
			return errors.Wrap(err, "failed to create nodes")
		}
		if err := e.cluster.StartAll(); err != nil {
			return errors.Wrap(err, "failed to start nodes")
		}
		backendConfig.Memory = e.cluster
	}

	factory, err := backend.NewFactory(backendConfig)
	if err != nil {
		return err
	}

	// ウォームアップの選出とエラー集計は実行ごとに行う
	e.coord = warmup.New()
	e.counters = metrics.NewErrorCounters()

	clientConfig := client.DefaultConfig()
	clientConfig.NumWorkers = e.config.Workers
	clientConfig.RequestsLimit = e.config.Requests
	clientConfig.MaxRPS = e.config.MaxRPS
	clientConfig.Driver = driver.Config{
		Entries:      e.config.Entries,
		PayloadSize:  e.config.PayloadSize,
		KeySuffix:    e.config.KeySuffix,
		RequestSleep: e.config.RequestSleep,
		Seed:         e.config.Seed,
	}
	e.client = client.New(factory, e.coord, e.counters, clientConfig)
	e.client.SetEventBus(e.eventBus)

	if e.config.EnableChaos {
		chaosConfig := chaos.DefaultConfig()
		chaosConfig.Interval = e.config.ChaosInterval
		chaosConfig.TargetCount = e.config.ChaosTargets
		chaosConfig.AttackTypes = e.config.AttackTypes
		chaosConfig.DelayDuration = e.config.DelayAmount
		chaosConfig.RestoreAfter = e.config.RestoreAfter
		e.monkey = chaos.New(e.cluster, chaosConfig)
		e.monkey.SetEventBus(e.eventBus)
	}

	return nil
}

// runScenario はシナリオのメイン処理
func (e *Engine) runScenario(ctx context.Context) (*metrics.Snapshot, error) {
	if e.monkey != nil {
		e.monkey.Start(ctx)
	}

	if e.config.Requests > 0 {
		runCtx := ctx
		if e.config.Duration > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, e.config.Duration)
			defer cancel()
		}
		return e.client.RunRequests(runCtx, e.config.Requests)
	}
	return e.client.RunFor(ctx, e.config.Duration)
}

// teardown はシナリオ実行後のクリーンアップ
func (e *Engine) teardown() error {
	var result *multierror.Error
	if e.monkey != nil {
		e.monkey.Stop()
	}
	if e.client != nil {
		if err := e.client.Stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if e.cluster != nil {
		if err := e.cluster.StopAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result, snapshot *metrics.Snapshot) {
	if snapshot == nil {
		s := e.client.Metrics().Snapshot()
		snapshot = &s
	}
	result.Workers = e.client.NumWorkers()
	result.TotalRequests = snapshot.TotalRequests
	result.SuccessRequests = snapshot.SuccessRequests
	result.FailedRequests = snapshot.FailedRequests
	result.ErrorRate = snapshot.ErrorRate
	result.AvgLatency = snapshot.AverageLatency
	result.P50Latency = snapshot.P50Latency
	result.P99Latency = snapshot.P99Latency
	result.PutErrors = e.counters.PutErrors()
	result.GetErrors = e.counters.GetErrors()
	result.Measurements = e.client.Unit().Summaries()

	result.Entries = e.config.Entries
	result.PayloadSize = e.config.PayloadSize
	result.KeySuffix = e.config.KeySuffix
	result.EntrySize = dataset.EntrySize(e.config.Entries, e.config.PayloadSize)
	result.Footprint = dataset.Footprint(e.config.Entries, e.config.PayloadSize)

	result.WarmupLeader = e.coord.Leader()
	result.WarmupState = e.coord.State()
	result.WarmupDuration = e.coord.Duration()

	if e.monkey != nil {
		stats := e.monkey.Stats()
		result.TotalAttacks = stats.TotalAttacks
		result.TotalRestores = stats.TotalRestores
	}

	if e.cluster != nil {
		result.FinalNodeStatus = make(map[string]string)
		for _, n := range e.cluster.Nodes() {
			result.FinalNodeStatus[n.ID()] = fmt.Sprintf("%s (%d entries)", n.Status(), n.Size())
		}
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	var b strings.Builder
	line := strings.Repeat("=", 80)

	fmt.Fprintf(&b, "\n%s\n                         SCENARIO REPORT: %s\n%s\n", line, r.ScenarioName, line)
	fmt.Fprintf(&b, `
EXECUTION SUMMARY
-----------------
  Run ID:         %s
  Backend:        %s
  Workers:        %d
  Start Time:     %s
  End Time:       %s
  Duration:       %v

DATASET
-------
  Entries:        %d
  Entry Size:     %d bytes
  Footprint:      %d bytes
  Key Suffix:     %s

WARM-UP
-------
  Leader:         %s
  State:          %s
  Duration:       %v
  Put Errors:     %d

TRAFFIC METRICS
---------------
  Total Requests:   %d
  Success:          %d
  Failed:           %d
  Get Errors:       %d
  Error Rate:       %.2f%%
  Avg Latency:      %v
  P50 Latency:      %v
  P99 Latency:      %v
`,
		r.RunID,
		r.Backend,
		r.Workers,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Entries,
		r.EntrySize,
		r.Footprint,
		valueOr(r.KeySuffix, "(none)"),
		valueOr(r.WarmupLeader, "(none)"),
		r.WarmupState,
		r.WarmupDuration.Round(time.Millisecond),
		r.PutErrors,
		r.TotalRequests,
		r.SuccessRequests,
		r.FailedRequests,
		r.GetErrors,
		r.ErrorRate*100,
		r.AvgLatency.Round(time.Microsecond),
		r.P50Latency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
	)

	if len(r.Measurements) > 0 {
		b.WriteString("\nREPORTED RESULTS\n----------------\n")
		for _, m := range r.Measurements {
			fmt.Fprintf(&b, "  %-16s count=%d min=%.0f mean=%.1f p50=%.0f p99=%.0f max=%.0f\n",
				m.Name+":", m.Count, m.Min, m.Mean, m.P50, m.P99, m.Max)
		}
	}

	if r.TotalAttacks > 0 {
		fmt.Fprintf(&b, "\nCHAOS STATISTICS\n----------------\n  Total Attacks:    %d\n  Total Restores:   %d\n",
			r.TotalAttacks, r.TotalRestores)
	}

	if len(r.FinalNodeStatus) > 0 {
		b.WriteString("\nFINAL NODE STATUS\n-----------------\n")
		ids := make([]string, 0, len(r.FinalNodeStatus))
		for id := range r.FinalNodeStatus {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "  %-20s %s\n", id+":", r.FinalNodeStatus[id])
		}
	}

	b.WriteString("\n" + line)
	return b.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ChaosStats はカオス統計を返す
func (e *Engine) ChaosStats() *chaos.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.monkey == nil {
		return nil
	}
	stats := e.monkey.Stats()
	return &stats
}

// Metrics はクライアントメトリクスを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil
	}
	snapshot := e.client.Metrics().Snapshot()
	return &snapshot
}

// Counters はエラーカウンタを返す
func (e *Engine) Counters() *metrics.ErrorCounters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.counters
}

// WarmupStatus はウォームアップの状態
type WarmupStatus struct {
	State    string        `json:"state"`
	Leader   string        `json:"leader,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Warmup は現在のウォームアップ状態を返す
func (e *Engine) Warmup() WarmupStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.coord == nil {
		return WarmupStatus{State: warmup.NotStarted.String()}
	}
	return WarmupStatus{
		State:    e.coord.State().String(),
		Leader:   e.coord.Leader(),
		Duration: e.coord.Duration(),
	}
}

// Cluster はmemoryバックエンドのクラスタを返す。他のバックエンドではnil
func (e *Engine) Cluster() *memory.Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cluster
}

// Collector は実行中のメトリクスを公開するPrometheusコレクタを返す
func (e *Engine) Collector() prometheus.Collector {
	return engineCollector{e}
}

type engineCollector struct {
	e *Engine
}

func (c engineCollector) Describe(desc chan<- *prometheus.Desc) {
	metrics.NewRunCollector(nil, nil, nil).Describe(desc)
}

func (c engineCollector) Collect(ch chan<- prometheus.Metric) {
	c.e.mu.RLock()
	cl, counters := c.e.client, c.e.counters
	c.e.mu.RUnlock()

	if cl == nil {
		metrics.NewRunCollector(nil, counters, nil).Collect(ch)
		return
	}
	metrics.NewRunCollector(cl.Metrics(), counters, cl.Unit()).Collect(ch)
}
