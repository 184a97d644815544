package transport

import (
	"context"
	"fmt"
)

// Kind はバックエンドの種類
type Kind string

const (
	KindBinary Kind = "binary"
	KindText   Kind = "text"
	KindHTTP   Kind = "http"
	KindScript Kind = "script"
	KindMemory Kind = "memory"
)

// Kinds はサポートする全種類を返す
func Kinds() []Kind {
	return []Kind{KindBinary, KindText, KindHTTP, KindScript, KindMemory}
}

// ParseKind は種類名と旧設定の別名を解釈する
func ParseKind(s string) (Kind, error) {
	switch s {
	case "binary", "hotrod", "redis":
		return KindBinary, nil
	case "text", "memcached":
		return KindText, nil
	case "http", "rest", "odata":
		return KindHTTP, nil
	case "script", "search":
		return KindScript, nil
	case "memory", "":
		return KindMemory, nil
	default:
		return "", fmt.Errorf("unknown backend kind: %s", s)
	}
}

// Loadable はputを受け付ける、つまりウォームアップ対象かを返す
func (k Kind) Loadable() bool {
	return k != KindScript
}

// EscalatesGetFailures はgetの失敗や欠落で操作を失敗にするかを返す。HTTPは数えるだけ
func (k Kind) EscalatesGetFailures() bool {
	return k != KindHTTP
}

// Transport は1ドライバ専用のバックエンド接続。並行利用に対して安全である必要はない
type Transport interface {
	Kind() Kind
	// Put はkeyにvalueを書き込む
	Put(ctx context.Context, key string, value []byte) error
	// Get はkeyの値を返す。存在しなければErrAbsentをラップしたエラー
	Get(ctx context.Context, key string) ([]byte, error)
	// Close は接続資源を解放する。複数回呼んでもよい
	Close() error
}

// Factory は新しいTransportを作成する。ドライバごとに1回呼ばれる
type Factory func(ctx context.Context) (Transport, error)

// Measurement はバックエンド自身が1操作について報告した値
type Measurement struct {
	Name  string
	Value int64
}

// Invoker はキー指定のgetではなく、自身の計測値を報告する呼び出しを操作とするトランスポート
type Invoker interface {
	Invoke(ctx context.Context) (m Measurement, ok bool, err error)
}
