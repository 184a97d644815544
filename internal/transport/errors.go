package transport

import (
	"context"
	"io"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// FailureKind はトランスポート失敗の分類
type FailureKind int

const (
	// Transient はリセット・無応答・タイムアウト。ウォームアップ中は1回リトライする
	Transient FailureKind = iota
	// Protocol は不正なリクエストや応答。リトライしない
	Protocol
	// Fatal は設定誤りや起動時の接続拒否。ドライバの準備を中止する
	Fatal
)

func (k FailureKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Protocol:
		return "protocol"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrAbsent はキーが存在しないときGetがラップして返す
var ErrAbsent = errors.New("key absent")

// ErrNotSupported は種類が実装しない操作で返す
var ErrNotSupported = errors.New("operation not supported")

// Error は分類済みのトランスポート失敗
type Error struct {
	Kind FailureKind
	Op   string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return e.Op + " " + e.Key + ": " + e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError はerrをスタックトレース付きの分類済みエラーにする
func NewError(kind FailureKind, op, key string, err error) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Key: key, Err: err})
}

// Absent はキー欠落を表すエラーを返す
func Absent(op, key string) error {
	return errors.Wrapf(ErrAbsent, "%s %s", op, key)
}

// KindOf はerrの分類を返す。未分類ならネットワーク起因はTransient、それ以外はProtocol
func KindOf(err error) FailureKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if IsNetworkError(err) {
		return Transient
	}
	return Protocol
}

// IsTransient はerrがTransientかを返す
func IsTransient(err error) bool {
	return err != nil && !IsAbsent(err) && KindOf(err) == Transient
}

// IsAbsent はerrがキー欠落かを返す
func IsAbsent(err error) bool {
	return errors.Is(err, ErrAbsent)
}

// IsNetworkError は接続リセットやタイムアウトかを返す
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRefused は接続拒否かを返す。起動時ならFatal
func IsRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
