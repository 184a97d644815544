package chaos

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"cakery-bench/internal/events"
	"cakery-bench/internal/logger"
	"cakery-bench/internal/transport/memory"
)

// AttackType は障害の種類を表す
type AttackType int

const (
	AttackKill AttackType = iota
	AttackSuspend
	AttackDelay
)

func (a AttackType) String() string {
	switch a {
	case AttackKill:
		return "kill"
	case AttackSuspend:
		return "suspend"
	case AttackDelay:
		return "delay"
	default:
		return "unknown"
	}
}

func (a AttackType) event() events.AttackType {
	switch a {
	case AttackSuspend:
		return events.AttackTypeSuspend
	case AttackDelay:
		return events.AttackTypeDelay
	default:
		return events.AttackTypeKill
	}
}

// ParseAttackType は名前から攻撃タイプを返す
func ParseAttackType(s string) (AttackType, bool) {
	switch s {
	case "kill":
		return AttackKill, true
	case "suspend":
		return AttackSuspend, true
	case "delay":
		return AttackDelay, true
	default:
		return 0, false
	}
}

// Config はChaosMonkeyの設定
type Config struct {
	Interval      time.Duration // 攻撃間隔
	TargetCount   int           // 同時攻撃対象数
	AttackTypes   []AttackType  // 有効な攻撃タイプ
	DelayDuration time.Duration // Delay攻撃時の遅延時間
	RestoreAfter  time.Duration // 攻撃から自動復旧までの時間（0で停止時のみ復旧）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		TargetCount:   1,
		AttackTypes:   []AttackType{AttackKill, AttackSuspend, AttackDelay},
		DelayDuration: 100 * time.Millisecond,
		RestoreAfter:  3 * time.Second,
	}
}

// Stats はカオス攻撃の統計情報
type Stats struct {
	TotalAttacks  uint64            `json:"total_attacks"`
	TotalRestores uint64            `json:"total_restores"`
	ByType        map[string]uint64 `json:"attacks_by_type"`
}

// attack は復旧待ちの攻撃
type attack struct {
	kind AttackType
	at   time.Time
}

// Monkey はメモリバックエンドのノードに障害を注入する
type Monkey struct {
	config   Config
	cluster  *memory.Cluster
	eventBus *events.Bus

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	attackCount  uint64
	restoreCount uint64
	attackByType map[AttackType]uint64
	attacked     map[string]attack
}

// New は新しいChaosMonkeyを作成する
func New(c *memory.Cluster, config Config) *Monkey {
	return &Monkey{
		config:       config,
		cluster:      c,
		attacked:     make(map[string]attack),
		attackByType: make(map[AttackType]uint64),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// Start はカオス注入を開始する
func (m *Monkey) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.attackLoop()

	if m.config.RestoreAfter > 0 {
		m.wg.Add(1)
		go m.restoreLoop()
	}

	logger.Info("", "ChaosMonkey started (interval: %v, targets: %d, restore after: %v)",
		m.config.Interval, m.config.TargetCount, m.config.RestoreAfter)
}

// Stop はカオス注入を停止し、攻撃中のノードを全て復旧する
func (m *Monkey) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()
	m.restore(time.Time{})

	logger.Info("", "ChaosMonkey stopped (total attacks: %d)", m.AttackCount())
}

// attackLoop は定期的に攻撃を実行する
func (m *Monkey) attackLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.attack()
		}
	}
}

// restoreLoop は復旧時間を過ぎたノードを元に戻す
func (m *Monkey) restoreLoop() {
	defer m.wg.Done()

	tick := m.config.RestoreAfter / 4
	if tick > 500*time.Millisecond {
		tick = 500 * time.Millisecond
	}
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.restore(now.Add(-m.config.RestoreAfter))
		}
	}
}

// attack は攻撃を実行する
func (m *Monkey) attack() {
	targets := m.selectTargets()
	if len(targets) == 0 {
		return
	}

	attackType := m.selectAttackType()
	for _, n := range targets {
		m.executeAttack(n, attackType)
	}

	m.mu.Lock()
	m.attackCount++
	m.mu.Unlock()
}

// selectTargets は攻撃されていない稼働中のノードから対象を選ぶ
func (m *Monkey) selectTargets() []*memory.Node {
	m.mu.RLock()
	candidates := make([]*memory.Node, 0)
	for _, n := range m.cluster.Nodes() {
		if _, busy := m.attacked[n.ID()]; !busy && n.Status() == memory.StatusRunning {
			candidates = append(candidates, n)
		}
	}
	m.mu.RUnlock()

	if len(candidates) == 0 {
		return nil
	}

	count := m.config.TargetCount
	if count > len(candidates) {
		count = len(candidates)
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates[:count]
}

// selectAttackType は攻撃タイプをランダムに選択する
func (m *Monkey) selectAttackType() AttackType {
	if len(m.config.AttackTypes) == 0 {
		return AttackKill
	}
	return m.config.AttackTypes[rand.Intn(len(m.config.AttackTypes))]
}

// executeAttack は指定された攻撃を実行する
func (m *Monkey) executeAttack(n *memory.Node, attackType AttackType) {
	var err error
	switch attackType {
	case AttackKill:
		err = n.Stop()
	case AttackSuspend:
		err = n.Suspend()
	case AttackDelay:
		n.SetDelay(m.config.DelayDuration)
	}
	if err != nil {
		logger.Warn("", "ChaosMonkey: %s on node %s failed: %v", attackType, n.ID(), err)
		return
	}

	m.mu.Lock()
	m.attacked[n.ID()] = attack{kind: attackType, at: time.Now()}
	m.attackByType[attackType]++
	m.mu.Unlock()

	if attackType == AttackDelay {
		logger.Warn("", "ChaosMonkey: injected %v delay to node %s", m.config.DelayDuration, n.ID())
		m.eventBus.Publish(events.NewChaosAttackEventWithDelay(n.ID(), m.config.DelayDuration))
		return
	}
	logger.Warn("", "ChaosMonkey: %s node %s", attackType, n.ID())
	m.eventBus.Publish(events.NewChaosAttackEvent(n.ID(), attackType.event()))
}

// restore はcutoff以前に攻撃されたノードを復旧する。ゼロ値なら全て復旧する
func (m *Monkey) restore(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for nodeID, a := range m.attacked {
		if !cutoff.IsZero() && a.at.After(cutoff) {
			continue
		}
		delete(m.attacked, nodeID)

		n, exists := m.cluster.GetNode(nodeID)
		if !exists {
			continue
		}
		var err error
		switch a.kind {
		case AttackKill:
			err = n.Start()
		case AttackSuspend:
			err = n.Resume()
		case AttackDelay:
			n.SetDelay(0)
		}
		if err != nil {
			logger.Warn("", "ChaosMonkey: failed to restore node %s after %s: %v", nodeID, a.kind, err)
			continue
		}
		m.restoreCount++
		logger.Info("", "ChaosMonkey: restored node %s after %s", nodeID, a.kind)
		m.eventBus.Publish(events.NewChaosResumeEvent(nodeID, a.kind.event()))
	}
}

// IsRunning は実行中かどうかを返す
func (m *Monkey) IsRunning() bool {
	return m.running.Load()
}

// AttackCount は攻撃回数を返す
func (m *Monkey) AttackCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attackCount
}

// Attacked は現在攻撃中のノード数を返す
func (m *Monkey) Attacked() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.attacked)
}

// SetConfig は設定を更新する。Start前に呼ぶこと
func (m *Monkey) SetConfig(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// Stats は攻撃統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]uint64)
	for t, count := range m.attackByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalAttacks:  m.attackCount,
		TotalRestores: m.restoreCount,
		ByType:        byType,
	}
}
