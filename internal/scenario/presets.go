package scenario

import (
	"sort"
	"time"

	"cakery-bench/internal/chaos"
	"cakery-bench/internal/transport"
)

// MemoryScenario はインメモリバックエンドの基本シナリオを返す
// 外部サーバ不要、カオス注入なし
func MemoryScenario() Config {
	return DefaultConfig()
}

// BinaryScenario はRESPサーバ向けのシナリオを返す
func BinaryScenario() Config {
	c := DefaultConfig()
	c.Name = "binary"
	c.Description = "Binary protocol cache server on 127.0.0.1:6379"
	c.Backend.Kind = transport.KindBinary
	c.NodeCount = 0
	return c
}

// TextScenario はmemcachedテキストプロトコル向けのシナリオを返す
func TextScenario() Config {
	c := DefaultConfig()
	c.Name = "text"
	c.Description = "Text protocol cache server on 127.0.0.1:11211"
	c.Backend.Kind = transport.KindText
	c.NodeCount = 0
	return c
}

// RESTScenario はHTTP RESTエンドポイント向けのシナリオを返す
// 取得失敗はカウントのみで操作は失敗しない
func RESTScenario() Config {
	c := DefaultConfig()
	c.Name = "rest"
	c.Description = "HTTP REST cache endpoint, get failures counted only"
	c.Backend.Kind = transport.KindHTTP
	c.NodeCount = 0
	return c
}

// ODataScenario はODataエンドポイント向けのシナリオを返す
func ODataScenario() Config {
	c := RESTScenario()
	c.Name = "odata"
	c.Description = "OData cache service, get failures counted only"
	c.Backend.HTTP.URI = "http://127.0.0.1:8080/ODataCacheService.svc/"
	return c
}

// SearchScenario は外部スクリプトで検索クエリを実行するシナリオを返す
// ウォームアップなし、スクリプトが報告した時間を集計する
func SearchScenario() Config {
	c := DefaultConfig()
	c.Name = "search"
	c.Description = "External search script, reported operation time summarized"
	c.Backend.Kind = transport.KindScript
	c.NodeCount = 0
	c.Workers = 4
	c.Duration = 30 * time.Second
	return c
}

// ChaosScenario はノード障害を注入しながらインメモリバックエンドを測定する
func ChaosScenario() Config {
	c := DefaultConfig()
	c.Name = "chaos"
	c.Description = "In-memory backend with node kills, suspensions and delays"
	c.Duration = 15 * time.Second
	c.NodeCount = 5
	c.EnableChaos = true
	c.ChaosInterval = 2 * time.Second
	c.ChaosTargets = 1
	c.AttackTypes = []chaos.AttackType{chaos.AttackKill, chaos.AttackSuspend, chaos.AttackDelay}
	c.RestoreAfter = 1 * time.Second
	return c
}

var presets = map[string]func() Config{
	"memory": MemoryScenario,
	"binary": BinaryScenario,
	"text":   TextScenario,
	"rest":   RESTScenario,
	"odata":  ODataScenario,
	"search": SearchScenario,
	"chaos":  ChaosScenario,
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
