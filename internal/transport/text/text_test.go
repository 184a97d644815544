package text

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cakery-bench/internal/transport"
)

// stubServer speaks the subset of the memcached text protocol the client uses.
type stubServer struct {
	ln   net.Listener
	mu   sync.Mutex
	data map[string][]byte
	wg   sync.WaitGroup
	live atomic.Int32
}

func startStub(t *testing.T) *stubServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &stubServer{ln: ln, data: make(map[string][]byte)}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *stubServer) Addr() string { return s.ln.Addr().String() }

func (s *stubServer) Close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

func (s *stubServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.live.Add(1)
		go s.handle(conn)
	}
}

func (s *stubServer) handle(conn net.Conn) {
	defer s.live.Add(-1)
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "version":
			fmt.Fprint(w, "VERSION 1.6.0\r\n")
		case "set":
			n, _ := strconv.Atoi(fields[4])
			buf := make([]byte, n+2)
			if _, err := io.ReadFull(r, buf); err != nil {
				return
			}
			s.mu.Lock()
			s.data[fields[1]] = buf[:n]
			s.mu.Unlock()
			fmt.Fprint(w, "STORED\r\n")
		case "get", "gets":
			for _, key := range fields[1:] {
				s.mu.Lock()
				v, ok := s.data[key]
				s.mu.Unlock()
				if ok {
					fmt.Fprintf(w, "VALUE %s 0 %d 1\r\n%s\r\n", key, len(v), v)
				}
			}
			fmt.Fprint(w, "END\r\n")
		case "quit":
			return
		default:
			fmt.Fprint(w, "ERROR\r\n")
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func TestPutGet(t *testing.T) {
	srv := startStub(t)
	cfg := DefaultConfig()
	cfg.Addr = srv.Addr()

	tr, err := Factory(cfg)(context.Background())
	require.NoError(t, err)
	defer tr.Close()

	ctx := context.Background()
	assert.Equal(t, transport.KindText, tr.Kind())
	require.NoError(t, tr.Put(ctx, "person1", []byte(`{"id":"person1"}`)))

	v, err := tr.Get(ctx, "person1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"person1"}`, string(v))

	_, err = tr.Get(ctx, "person2")
	assert.True(t, transport.IsAbsent(err))
}

func TestMalformedKeyIsProtocol(t *testing.T) {
	srv := startStub(t)
	cfg := DefaultConfig()
	cfg.Addr = srv.Addr()

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer tr.Close()

	err = tr.Put(context.Background(), "bad key", []byte("v"))
	require.Error(t, err)
	assert.Equal(t, transport.Protocol, transport.KindOf(err))
}

func TestDialRefusedIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := DefaultConfig()
	cfg.Addr = addr
	_, err = Dial(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, transport.Fatal, transport.KindOf(err))
}

func TestCanceledContextIsTransient(t *testing.T) {
	srv := startStub(t)
	cfg := DefaultConfig()
	cfg.Addr = srv.Addr()

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Get(ctx, "person1")
	assert.True(t, transport.IsTransient(err))
	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
}

func TestCloseReleasesSocket(t *testing.T) {
	srv := startStub(t)
	cfg := DefaultConfig()
	cfg.Addr = srv.Addr()

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Put(context.Background(), "person1", []byte("v")))
	assert.Equal(t, int32(1), srv.live.Load())

	require.NoError(t, tr.Close())
	require.Eventually(t, func() bool {
		return srv.live.Load() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOperationsAfterCloseAreFatal(t *testing.T) {
	srv := startStub(t)
	cfg := DefaultConfig()
	cfg.Addr = srv.Addr()

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	err = tr.Put(context.Background(), "person1", []byte("v"))
	assert.Equal(t, transport.Fatal, transport.KindOf(err))
	_, err = tr.Get(context.Background(), "person1")
	assert.Equal(t, transport.Fatal, transport.KindOf(err))
	assert.False(t, transport.IsAbsent(err))
}
