package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cakery-bench/internal/chaos"
	"cakery-bench/internal/scenario"
	"cakery-bench/internal/transport"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
	Backend  BackendConfig  `yaml:"backend" json:"backend"`
	Dataset  DatasetConfig  `yaml:"dataset" json:"dataset"`
	Client   ClientConfig   `yaml:"client" json:"client"`
	Chaos    ChaosConfig    `yaml:"chaos" json:"chaos"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Preset      string `yaml:"preset" json:"preset"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Duration    string `yaml:"duration" json:"duration"`
	Requests    uint64 `yaml:"requests" json:"requests"`
}

// BackendConfig はバックエンド設定
type BackendConfig struct {
	Kind   string       `yaml:"kind" json:"kind"`
	Binary BinaryConfig `yaml:"binary" json:"binary"`
	Text   TextConfig   `yaml:"text" json:"text"`
	HTTP   HTTPConfig   `yaml:"http" json:"http"`
	Script ScriptConfig `yaml:"script" json:"script"`
	Memory MemoryConfig `yaml:"memory" json:"memory"`
}

// BinaryConfig はRESPサーバの接続設定
type BinaryConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// TextConfig はmemcachedサーバの接続設定
type TextConfig struct {
	Addr    string `yaml:"addr" json:"addr"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// HTTPConfig はREST/ODataエンドポイントの設定
type HTTPConfig struct {
	URI     string `yaml:"uri" json:"uri"`
	Cache   string `yaml:"cache" json:"cache"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// ScriptConfig は外部スクリプトの設定
type ScriptConfig struct {
	Dir          string `yaml:"dir" json:"dir"`
	Name         string `yaml:"name" json:"name"`
	QuerySetSize int    `yaml:"query_set_size" json:"query_set_size"`
	EnvVars      string `yaml:"env_vars" json:"env_vars"`
}

// MemoryConfig はインメモリバックエンドの設定
type MemoryConfig struct {
	Nodes int `yaml:"nodes" json:"nodes"`
}

// DatasetConfig はデータセット設定
type DatasetConfig struct {
	Entries     int    `yaml:"entries" json:"entries"`
	PayloadSize int    `yaml:"payload_size" json:"payload_size"`
	KeySuffix   string `yaml:"key_suffix" json:"key_suffix"`
}

// ClientConfig はクライアント設定
type ClientConfig struct {
	Workers        int     `yaml:"workers" json:"workers"`
	MaxRPS         float64 `yaml:"max_rps" json:"max_rps"`
	RequestSleepMs int     `yaml:"request_sleep_ms" json:"request_sleep_ms"`
	Seed           int64   `yaml:"seed" json:"seed"`
}

// ChaosConfig はカオス設定
type ChaosConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	Interval     string   `yaml:"interval" json:"interval"`
	Targets      int      `yaml:"targets" json:"targets"`
	AttackTypes  []string `yaml:"attack_types" json:"attack_types"`
	DelayAmount  string   `yaml:"delay_amount" json:"delay_amount"`
	RestoreAfter string   `yaml:"restore_after" json:"restore_after"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
// 指定のない項目はプリセット（なければデフォルト）の値になる
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	config := scenario.DefaultConfig()
	if f.Scenario.Preset != "" {
		preset, ok := scenario.GetPreset(f.Scenario.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", f.Scenario.Preset)
		}
		config = preset
	}

	if err := f.applyScenario(&config); err != nil {
		return config, err
	}
	if err := f.applyBackend(&config); err != nil {
		return config, err
	}

	// Dataset設定
	if f.Dataset.Entries > 0 {
		config.Entries = f.Dataset.Entries
	}
	if f.Dataset.PayloadSize > 0 {
		config.PayloadSize = f.Dataset.PayloadSize
	}
	if f.Dataset.KeySuffix != "" {
		config.KeySuffix = f.Dataset.KeySuffix
	}

	// Client設定
	if f.Client.Workers > 0 {
		config.Workers = f.Client.Workers
	}
	if f.Client.MaxRPS > 0 {
		config.MaxRPS = f.Client.MaxRPS
	}
	if f.Client.RequestSleepMs > 0 {
		config.RequestSleep = time.Duration(f.Client.RequestSleepMs) * time.Millisecond
	}
	if f.Client.Seed != 0 {
		config.Seed = f.Client.Seed
	}

	if err := f.applyChaos(&config); err != nil {
		return config, err
	}
	return config, nil
}

func (f *FileConfig) applyScenario(config *scenario.Config) error {
	sc := f.Scenario
	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	if sc.Duration != "" {
		d, err := time.ParseDuration(sc.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		config.Duration = d
	}
	if sc.Requests > 0 {
		config.Requests = sc.Requests
	}
	return nil
}

func (f *FileConfig) applyBackend(config *scenario.Config) error {
	b := f.Backend
	if b.Kind != "" {
		kind, err := transport.ParseKind(b.Kind)
		if err != nil {
			return err
		}
		if kind != config.Backend.Kind && kind != transport.KindMemory {
			config.NodeCount = 0
		}
		config.Backend.Kind = kind
	}
	if b.Memory.Nodes > 0 {
		config.NodeCount = b.Memory.Nodes
	}
	if config.Backend.Kind == transport.KindMemory && config.NodeCount == 0 {
		config.NodeCount = scenario.DefaultConfig().NodeCount
	}

	if b.Binary.Addr != "" {
		config.Backend.Binary.Addr = b.Binary.Addr
	}
	if b.Binary.Password != "" {
		config.Backend.Binary.Password = b.Binary.Password
	}
	if b.Binary.DB > 0 {
		config.Backend.Binary.DB = b.Binary.DB
	}
	if b.Binary.Timeout != "" {
		d, err := time.ParseDuration(b.Binary.Timeout)
		if err != nil {
			return fmt.Errorf("invalid backend.binary.timeout: %w", err)
		}
		config.Backend.Binary.DialTimeout = d
		config.Backend.Binary.ReadTimeout = d
		config.Backend.Binary.WriteTimeout = d
	}

	if b.Text.Addr != "" {
		config.Backend.Text.Addr = b.Text.Addr
	}
	if b.Text.Timeout != "" {
		d, err := time.ParseDuration(b.Text.Timeout)
		if err != nil {
			return fmt.Errorf("invalid backend.text.timeout: %w", err)
		}
		config.Backend.Text.Timeout = d
	}

	if b.HTTP.URI != "" {
		config.Backend.HTTP.URI = b.HTTP.URI
	}
	if b.HTTP.Cache != "" {
		config.Backend.HTTP.Cache = b.HTTP.Cache
	}
	if b.HTTP.Timeout != "" {
		d, err := time.ParseDuration(b.HTTP.Timeout)
		if err != nil {
			return fmt.Errorf("invalid backend.http.timeout: %w", err)
		}
		config.Backend.HTTP.Timeout = d
	}

	if b.Script.Dir != "" {
		config.Backend.Script.Dir = b.Script.Dir
	}
	if b.Script.Name != "" {
		config.Backend.Script.Name = b.Script.Name
	}
	if b.Script.QuerySetSize > 0 {
		config.Backend.Script.QuerySetSize = b.Script.QuerySetSize
	}
	if b.Script.EnvVars != "" {
		config.Backend.Script.EnvVars = b.Script.EnvVars
	}
	return nil
}

func (f *FileConfig) applyChaos(config *scenario.Config) error {
	c := f.Chaos
	if c.Enabled {
		config.EnableChaos = true
	}
	if c.Interval != "" {
		d, err := time.ParseDuration(c.Interval)
		if err != nil {
			return fmt.Errorf("invalid chaos interval: %w", err)
		}
		config.ChaosInterval = d
	}
	if c.Targets > 0 {
		config.ChaosTargets = c.Targets
	}
	if len(c.AttackTypes) > 0 {
		attacks, err := parseAttackTypes(c.AttackTypes)
		if err != nil {
			return err
		}
		config.AttackTypes = attacks
	}
	if c.DelayAmount != "" {
		d, err := time.ParseDuration(c.DelayAmount)
		if err != nil {
			return fmt.Errorf("invalid chaos delay_amount: %w", err)
		}
		config.DelayAmount = d
	}
	if c.RestoreAfter != "" {
		d, err := time.ParseDuration(c.RestoreAfter)
		if err != nil {
			return fmt.Errorf("invalid chaos restore_after: %w", err)
		}
		config.RestoreAfter = d
	}
	return nil
}

// parseAttackTypes は文字列の攻撃タイプをパースする
func parseAttackTypes(types []string) ([]chaos.AttackType, error) {
	attacks := make([]chaos.AttackType, 0, len(types))
	for _, t := range types {
		a, ok := chaos.ParseAttackType(strings.ToLower(t))
		if !ok {
			return nil, fmt.Errorf("unknown attack type: %s", t)
		}
		attacks = append(attacks, a)
	}
	return attacks, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Scenario.Preset != "" {
		if _, ok := scenario.GetPreset(f.Scenario.Preset); !ok {
			return fmt.Errorf("unknown preset: %s", f.Scenario.Preset)
		}
	}
	if f.Backend.Kind != "" {
		if _, err := transport.ParseKind(f.Backend.Kind); err != nil {
			return err
		}
	}

	if f.Backend.Memory.Nodes < 0 {
		return fmt.Errorf("backend.memory.nodes must be non-negative")
	}
	if f.Backend.Script.QuerySetSize < 0 {
		return fmt.Errorf("backend.script.query_set_size must be non-negative")
	}
	if f.Dataset.Entries < 0 {
		return fmt.Errorf("dataset.entries must be non-negative")
	}
	if f.Dataset.PayloadSize < 0 {
		return fmt.Errorf("dataset.payload_size must be non-negative")
	}
	if f.Client.Workers < 0 {
		return fmt.Errorf("client.workers must be non-negative")
	}
	if f.Client.MaxRPS < 0 {
		return fmt.Errorf("client.max_rps must be non-negative")
	}
	if f.Client.RequestSleepMs < 0 {
		return fmt.Errorf("client.request_sleep_ms must be non-negative")
	}
	if f.Chaos.Targets < 0 {
		return fmt.Errorf("chaos.targets must be non-negative")
	}
	if f.Chaos.Enabled && f.Backend.Kind != "" {
		if kind, _ := transport.ParseKind(f.Backend.Kind); kind != transport.KindMemory {
			return fmt.Errorf("chaos requires the memory backend, got %s", f.Backend.Kind)
		}
	}

	return nil
}
