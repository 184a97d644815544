package httpcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"cakery-bench/internal/transport"
)

// ContentType はContent-TypeとAcceptの両方に使う
const ContentType = "application/json; charset=UTF-8"

var errClosed = errors.New("transport closed")

// Config はHTTPバックエンドの設定
type Config struct {
	// URI はサービスのルート。末尾のスラッシュは補う
	URI     string
	Cache   string
	Timeout time.Duration
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		URI:     "http://127.0.0.1:8080/rest/",
		Cache:   "default",
		Timeout: 10 * time.Second,
	}
}

// IsOData はuriがODataサービスかを返す
func IsOData(uri string) bool {
	return strings.Contains(uri, ".svc")
}

// Transport は専用のHTTPクライアントを持つ。接続の再利用はドライバ内に閉じる
type Transport struct {
	cfg    Config
	odata  bool
	client *http.Client
	closed atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// New はcfgを検証してトランスポートを作成する。リクエストは送らない
func New(cfg Config) (*Transport, error) {
	if cfg.URI == "" {
		return nil, transport.NewError(transport.Fatal, "dial", "", errors.New("uri is required"))
	}
	if _, err := url.Parse(cfg.URI); err != nil {
		return nil, transport.NewError(transport.Fatal, "dial", "", errors.Wrap(err, "parse uri"))
	}
	if !strings.HasSuffix(cfg.URI, "/") {
		cfg.URI += "/"
	}
	rt := http.DefaultTransport.(*http.Transport).Clone()
	rt.MaxIdleConnsPerHost = 1
	return &Transport{
		cfg:    cfg,
		odata:  IsOData(cfg.URI),
		client: &http.Client{Transport: rt, Timeout: cfg.Timeout},
	}, nil
}

// Factory はcfgのtransport.Factoryを返す
func Factory(cfg Config) transport.Factory {
	return func(_ context.Context) (transport.Transport, error) {
		return New(cfg)
	}
}

// Kind はKindHTTPを返す
func (t *Transport) Kind() transport.Kind {
	return transport.KindHTTP
}

// OData はOData形式のアドレスを使うかを返す
func (t *Transport) OData() bool {
	return t.odata
}

// PutURL はkeyのputの送信先を返す
func (t *Transport) PutURL(key string) string {
	if t.odata {
		return fmt.Sprintf("%s%s_put?IGNORE_RETURN_VALUES=%%27true%%27&key=%%27%s%%27",
			t.cfg.URI, t.cfg.Cache, url.QueryEscape(key))
	}
	return t.cfg.URI + t.cfg.Cache + "/" + url.PathEscape(key)
}

// GetURL はkeyのgetの送信先を返す
func (t *Transport) GetURL(key string) string {
	if t.odata {
		return fmt.Sprintf("%s%s_get?key=%%27%s%%27", t.cfg.URI, t.cfg.Cache, url.QueryEscape(key))
	}
	return t.cfg.URI + t.cfg.Cache + "/" + url.PathEscape(key)
}

// Put はvalueをPOSTする。2xx以外はTransient
func (t *Transport) Put(ctx context.Context, key string, value []byte) error {
	if t.closed.Load() {
		return transport.NewError(transport.Fatal, "put", key, errClosed)
	}
	req, err := t.newRequest(ctx, http.MethodPost, t.PutURL(key), bytes.NewReader(value))
	if err != nil {
		return transport.NewError(transport.Protocol, "put", key, err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return transport.NewError(transport.Transient, "put", key, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return transport.NewError(transport.Transient, "put", key, errors.Errorf("unexpected status %s", resp.Status))
	}
	return nil
}

// Get はkeyの値を取得する。404や空の本文は欠落として扱う
func (t *Transport) Get(ctx context.Context, key string) ([]byte, error) {
	if t.closed.Load() {
		return nil, transport.NewError(transport.Fatal, "get", key, errClosed)
	}
	req, err := t.newRequest(ctx, http.MethodGet, t.GetURL(key), nil)
	if err != nil {
		return nil, transport.NewError(transport.Protocol, "get", key, err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, transport.NewError(transport.Transient, "get", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transport.NewError(transport.Transient, "get", key, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, transport.Absent("get", key)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, transport.NewError(transport.Transient, "get", key, errors.Errorf("unexpected status %s", resp.Status))
	case len(body) == 0:
		return nil, transport.Absent("get", key)
	}
	return body, nil
}

// Close はアイドル接続を閉じる
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.client.CloseIdleConnections()
	return nil
}

func (t *Transport) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", ContentType)
	return req, nil
}
