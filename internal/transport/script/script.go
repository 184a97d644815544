package script

import (
	"context"
	"math/rand"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"cakery-bench/internal/transport"
)

const (
	// DefaultName は既定の実行ファイル名
	DefaultName = "search-test.sh"
	// DefaultQuerySetSize は実行ファイルに渡すskipの上限
	DefaultQuerySetSize = 1000
	// MeasurementName は出力から読んだ値の名前
	MeasurementName = "Operation time"
)

var operationTime = regexp.MustCompile(`OperationTime: ([0-9]+)`)

// Config はスクリプトバックエンドの設定
type Config struct {
	Dir          string
	Name         string
	QuerySetSize int
	// EnvVars は';'区切りのNAME=VALUE。子プロセスの環境を置き換える
	EnvVars string
	Seed    int64
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Dir:          ".",
		Name:         DefaultName,
		QuerySetSize: DefaultQuerySetSize,
	}
}

// Invocation は実行ファイルの1回分の実行結果
type Invocation struct {
	Skip     int
	Output   string
	ExitCode int
}

// Transport は設定された実行ファイルを起動する。並行利用には安全でない
type Transport struct {
	cfg    Config
	env    []string
	rnd    *rand.Rand
	closed atomic.Bool
	last   Invocation
}

var (
	_ transport.Transport = (*Transport)(nil)
	_ transport.Invoker   = (*Transport)(nil)
)

// New はcfgを検証してトランスポートを作成する
func New(cfg Config) (*Transport, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.QuerySetSize <= 0 {
		return nil, transport.NewError(transport.Fatal, "dial", "", errors.Errorf("query set size must be positive, got %d", cfg.QuerySetSize))
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Transport{
		cfg: cfg,
		env: SplitEnv(cfg.EnvVars),
		rnd: rand.New(rand.NewSource(seed)),
	}, nil
}

// Factory はcfgのtransport.Factoryを返す。呼び出しごとに乱数源を持つ
func Factory(cfg Config) transport.Factory {
	return func(_ context.Context) (transport.Transport, error) {
		return New(cfg)
	}
}

// SplitEnv は';'区切りのリストを分割する。空要素は捨てる
func SplitEnv(s string) []string {
	var env []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			env = append(env, part)
		}
	}
	return env
}

// Kind はKindScriptを返す
func (t *Transport) Kind() transport.Kind {
	return transport.KindScript
}

// Put は常にErrNotSupportedをラップしたFatalを返す。ロードはできない
func (t *Transport) Put(_ context.Context, key string, _ []byte) error {
	return transport.NewError(transport.Fatal, "put", key, transport.ErrNotSupported)
}

// Get は1回実行して出力を返す。keyは使わない
func (t *Transport) Get(ctx context.Context, key string) ([]byte, error) {
	if _, _, err := t.Invoke(ctx); err != nil {
		return nil, err
	}
	return []byte(t.last.Output), nil
}

// Invoke は実行ファイルを1回起動する。終了コードが0以外でもログに残して出力を解析する
func (t *Transport) Invoke(ctx context.Context) (transport.Measurement, bool, error) {
	if t.closed.Load() {
		return transport.Measurement{}, false, transport.NewError(transport.Fatal, "invoke", "", errors.New("transport closed"))
	}
	skip := t.rnd.Intn(t.cfg.QuerySetSize)

	cmd := exec.CommandContext(ctx, "./"+t.cfg.Name, "command")
	cmd.Dir = t.cfg.Dir
	cmd.Env = append(append(make([]string, 0, len(t.env)+1), t.env...), "skip="+strconv.Itoa(skip))

	out, err := cmd.CombinedOutput()
	inv := Invocation{Skip: skip, Output: string(out)}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.last = inv
			if ctx.Err() != nil {
				return transport.Measurement{}, false, transport.NewError(transport.Transient, "invoke", "", ctx.Err())
			}
			return transport.Measurement{}, false, transport.NewError(transport.Fatal, "invoke", "",
				errors.Wrapf(err, "run %s", filepath.Join(t.cfg.Dir, t.cfg.Name)))
		}
		inv.ExitCode = exitErr.ExitCode()
		logrus.WithFields(logrus.Fields{"script": t.cfg.Name, "exit": inv.ExitCode}).Warn("script exited with non-zero status")
	}
	t.last = inv

	m, ok := ParseOperationTime(inv.Output)
	return m, ok, nil
}

// Last は直近の実行結果を返す
func (t *Transport) Last() Invocation {
	return t.last
}

// ParseOperationTime は出力から最初の"OperationTime: N"を取り出す
func ParseOperationTime(output string) (transport.Measurement, bool) {
	match := operationTime.FindStringSubmatch(output)
	if match == nil {
		return transport.Measurement{}, false
	}
	v, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return transport.Measurement{}, false
	}
	return transport.Measurement{Name: MeasurementName, Value: v}, true
}

// Close はトランスポートを閉じる
func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}
