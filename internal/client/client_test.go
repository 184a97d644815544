package client

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cakery-bench/internal/metrics"
	"cakery-bench/internal/transport"
	"cakery-bench/internal/transport/memory"
	"cakery-bench/internal/warmup"
)

func newNode(t *testing.T) *memory.Node {
	n := memory.NewNode("memory-0")
	require.NoError(t, n.Start())
	return n
}

func testConfig(workers int) Config {
	config := DefaultConfig()
	config.NumWorkers = workers
	config.Driver.Entries = 100
	config.Driver.PayloadSize = 16
	config.Driver.Seed = 42
	return config
}

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultConfig()

	if config.NumWorkers != 0 {
		t.Errorf("expected NumWorkers 0, got %d", config.NumWorkers)
	}
	if config.Driver.Entries != 1000 {
		t.Errorf("expected 1000 entries, got %d", config.Driver.Entries)
	}
}

func TestNewClient(t *testing.T) {
	client := New(memory.Factory(newNode(t)), warmup.New(), nil, testConfig(2))

	if client.IsRunning() {
		t.Error("expected client to not be running initially")
	}
	if client.NumWorkers() != 2 {
		t.Errorf("expected 2 workers, got %d", client.NumWorkers())
	}
}

func TestClientStartStop(t *testing.T) {
	node := newNode(t)
	coord := warmup.New()
	client := New(memory.Factory(node), coord, nil, testConfig(4))
	ctx := context.Background()

	client.Start(ctx)
	if !client.IsRunning() {
		t.Error("expected client to be running after Start")
	}

	// Give it time to run some operations
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, client.Stop())
	if client.IsRunning() {
		t.Error("expected client to not be running after Stop")
	}
	require.NoError(t, client.Stop())

	if client.Metrics().TotalRequests() == 0 {
		t.Error("expected some operations to be recorded")
	}
	assert.True(t, coord.IsDone())
	assert.Equal(t, 100, node.Size())
	assert.Equal(t, uint64(100), node.Puts())
}

func TestClientRunFor(t *testing.T) {
	client := New(memory.Factory(newNode(t)), warmup.New(), nil, testConfig(2))

	snapshot, err := client.RunFor(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)

	if snapshot.TotalRequests == 0 {
		t.Error("expected some operations")
	}
	if snapshot.Elapsed < 100*time.Millisecond {
		t.Errorf("expected at least 100ms elapsed, got %v", snapshot.Elapsed)
	}
}

func TestClientRunRequestsIsExact(t *testing.T) {
	counters := metrics.NewErrorCounters()
	client := New(memory.Factory(newNode(t)), warmup.New(), counters, testConfig(8))

	snapshot, err := client.RunRequests(context.Background(), 1000)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), snapshot.TotalRequests)
	assert.Equal(t, uint64(1000), snapshot.SuccessRequests+snapshot.FailedRequests)
	// workers that race ahead of the warm-up count misses
	assert.Equal(t, snapshot.FailedRequests, counters.GetErrors())
}

func TestClientCountsFailedGets(t *testing.T) {
	node := newNode(t)
	coord := warmup.New()
	// another process group already owns the warm-up, so nothing is loaded here
	require.True(t, coord.TryBecomeLeader("elsewhere"))
	counters := metrics.NewErrorCounters()

	client := New(memory.Factory(node), coord, counters, testConfig(2))
	snapshot, err := client.RunRequests(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, uint64(50), snapshot.FailedRequests)
	assert.Equal(t, uint64(50), counters.GetErrors())
}

func TestClientMaxRPS(t *testing.T) {
	config := testConfig(4)
	config.MaxRPS = 100
	client := New(memory.Factory(newNode(t)), warmup.New(), nil, config)

	snapshot, err := client.RunFor(context.Background(), 200*time.Millisecond)
	require.NoError(t, err)

	// burst of 100 plus ~20 refills
	assert.LessOrEqual(t, snapshot.TotalRequests, uint64(140))
}

func TestClientSetupErrors(t *testing.T) {
	factory := func(context.Context) (transport.Transport, error) {
		return nil, errors.New("connection refused")
	}
	client := New(factory, warmup.New(), nil, testConfig(3))

	snapshot, err := client.RunFor(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snapshot.TotalRequests)
	// every worker failed, so the run ended well before the deadline
	assert.Less(t, snapshot.Elapsed, 5*time.Second)

	setupErr := client.SetupErrors()
	require.Error(t, setupErr)
	assert.Contains(t, setupErr.Error(), "3 errors occurred")
}

func TestClientCollectsScriptMeasurements(t *testing.T) {
	factory := func(context.Context) (transport.Transport, error) {
		return &fixedInvoker{value: 42}, nil
	}
	client := New(factory, warmup.New(), nil, testConfig(2))

	_, err := client.RunRequests(context.Background(), 20)
	require.NoError(t, err)

	results := client.Unit().Results("Operation time")
	assert.Len(t, results, 20)
	for _, v := range results {
		assert.Equal(t, int64(42), v)
	}
}

type fixedInvoker struct {
	value int64
}

func (f *fixedInvoker) Kind() transport.Kind { return transport.KindScript }

func (f *fixedInvoker) Put(_ context.Context, key string, _ []byte) error {
	return transport.NewError(transport.Fatal, "put", key, transport.ErrNotSupported)
}

func (f *fixedInvoker) Get(context.Context, string) ([]byte, error) { return nil, nil }

func (f *fixedInvoker) Close() error { return nil }

func (f *fixedInvoker) Invoke(context.Context) (transport.Measurement, bool, error) {
	return transport.Measurement{Name: "Operation time", Value: f.value}, true, nil
}
