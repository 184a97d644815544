package httpcache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cakery-bench/internal/transport"
)

type recorder struct {
	mu       sync.Mutex
	requests []string
	headers  []http.Header
	store    map[string]string
}

func newRecorder() *recorder {
	return &recorder{store: make(map[string]string)}
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req.Method+" "+req.URL.RequestURI())
	r.headers = append(r.headers, req.Header.Clone())

	key := req.URL.Path
	switch req.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(req.Body)
		r.store[key] = string(body)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		v, ok := r.store[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, v)
	}
}

func TestRESTPutGet(t *testing.T) {
	rec := newRecorder()
	srv := httptest.NewServer(rec)
	defer srv.Close()

	tr, err := New(Config{URI: srv.URL + "/rest", Cache: "default"})
	require.NoError(t, err)
	defer tr.Close()
	assert.False(t, tr.OData())
	assert.Equal(t, transport.KindHTTP, tr.Kind())

	ctx := context.Background()
	require.NoError(t, tr.Put(ctx, "person1", []byte(`{"id":"person1"}`)))

	v, err := tr.Get(ctx, "person1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"person1"}`, string(v))

	_, err = tr.Get(ctx, "person2")
	assert.True(t, transport.IsAbsent(err))

	assert.Equal(t, []string{
		"POST /rest/default/person1",
		"GET /rest/default/person1",
		"GET /rest/default/person2",
	}, rec.requests)
	for _, h := range rec.headers {
		assert.Equal(t, ContentType, h.Get("Accept"))
	}
	assert.Equal(t, ContentType, rec.headers[0].Get("Content-Type"))
}

func TestODataURLs(t *testing.T) {
	tr, err := New(Config{URI: "http://localhost:8887/ODataInfinispanEndpoint.svc/", Cache: "odataCache"})
	require.NoError(t, err)
	assert.True(t, tr.OData())

	assert.Equal(t,
		"http://localhost:8887/ODataInfinispanEndpoint.svc/odataCache_put?IGNORE_RETURN_VALUES=%27true%27&key=%27person7%27",
		tr.PutURL("person7"))
	assert.Equal(t,
		"http://localhost:8887/ODataInfinispanEndpoint.svc/odataCache_get?key=%27person7%27",
		tr.GetURL("person7"))
}

func TestODataRoundTrip(t *testing.T) {
	var mu sync.Mutex
	store := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		key := strings.Trim(req.URL.Query().Get("key"), "'")
		switch {
		case strings.HasSuffix(req.URL.Path, "_put"):
			assert.Equal(t, "'true'", req.URL.Query().Get("IGNORE_RETURN_VALUES"))
			body, _ := io.ReadAll(req.Body)
			store[key] = string(body)
		case strings.HasSuffix(req.URL.Path, "_get"):
			// an unknown key answers 200 with an empty body
			_, _ = io.WriteString(w, store[key])
		}
	}))
	defer srv.Close()

	tr, err := New(Config{URI: srv.URL + "/Endpoint.svc/", Cache: "c"})
	require.NoError(t, err)
	defer tr.Close()

	ctx := context.Background()
	require.NoError(t, tr.Put(ctx, "person1-host1", []byte("payload")))
	v, err := tr.Get(ctx, "person1-host1")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(v))

	_, err = tr.Get(ctx, "person9")
	assert.True(t, transport.IsAbsent(err))
}

func TestServerErrorsAreTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, err := New(Config{URI: srv.URL + "/", Cache: "c"})
	require.NoError(t, err)
	defer tr.Close()

	ctx := context.Background()
	assert.True(t, transport.IsTransient(tr.Put(ctx, "k", []byte("v"))))
	_, err = tr.Get(ctx, "k")
	assert.True(t, transport.IsTransient(err))
}

func TestUnreachableServerIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	uri := srv.URL + "/"
	srv.Close()

	tr, err := New(Config{URI: uri, Cache: "c"})
	require.NoError(t, err)
	assert.True(t, transport.IsTransient(tr.Put(context.Background(), "k", []byte("v"))))
}

func TestNewRequiresURI(t *testing.T) {
	_, err := New(Config{Cache: "c"})
	assert.Equal(t, transport.Fatal, transport.KindOf(err))
}

func TestClosedTransportIsFatal(t *testing.T) {
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err = tr.Get(context.Background(), "k")
	assert.Equal(t, transport.Fatal, transport.KindOf(err))
}
