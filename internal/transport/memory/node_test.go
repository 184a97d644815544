package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewNode(t *testing.T) {
	n := NewNode("test-node-1")

	if n.ID() != "test-node-1" {
		t.Errorf("expected ID 'test-node-1', got '%s'", n.ID())
	}

	if n.Status() != StatusStopped {
		t.Errorf("expected status Stopped, got %v", n.Status())
	}
}

func TestNodeStartStop(t *testing.T) {
	n := NewNode("test-node-1")

	if err := n.Start(); err != nil {
		t.Errorf("failed to start node: %v", err)
	}
	if n.Status() != StatusRunning {
		t.Errorf("expected status Running, got %v", n.Status())
	}

	// Double start should fail
	if err := n.Start(); err == nil {
		t.Error("expected error when starting already running node")
	}

	if err := n.Stop(); err != nil {
		t.Errorf("failed to stop node: %v", err)
	}
	if n.Status() != StatusStopped {
		t.Errorf("expected status Stopped, got %v", n.Status())
	}

	// Double stop should fail
	if err := n.Stop(); err == nil {
		t.Error("expected error when stopping already stopped node")
	}
}

func TestNodeGetSet(t *testing.T) {
	n := NewNode("test-node-1")
	ctx := context.Background()

	// Set before start should fail
	if err := n.Set(ctx, "key1", []byte("value1")); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
	if _, _, err := n.Get(ctx, "key1"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}

	_ = n.Start()

	if err := n.Set(ctx, "key1", []byte("value1")); err != nil {
		t.Errorf("failed to set: %v", err)
	}

	value, ok, err := n.Get(ctx, "key1")
	if err != nil || !ok {
		t.Fatalf("expected Get to succeed, got ok=%v err=%v", ok, err)
	}
	if string(value) != "value1" {
		t.Errorf("expected 'value1', got '%s'", string(value))
	}

	if _, ok, _ := n.Get(ctx, "nonexistent"); ok {
		t.Error("expected Get to return false for non-existent key")
	}

	if n.Puts() != 1 || n.Gets() != 2 {
		t.Errorf("expected 1 put and 2 gets, got %d and %d", n.Puts(), n.Gets())
	}
}

func TestNodeSetCopiesValue(t *testing.T) {
	n := NewNode("test-node-1")
	_ = n.Start()
	ctx := context.Background()

	buf := []byte("abc")
	_ = n.Set(ctx, "k", buf)
	buf[0] = 'z'

	value, _, _ := n.Get(ctx, "k")
	if string(value) != "abc" {
		t.Errorf("stored value changed with caller buffer: %s", value)
	}
}

func TestNodeKeysAndSize(t *testing.T) {
	n := NewNode("test-node-1")
	_ = n.Start()
	ctx := context.Background()

	if n.Size() != 0 {
		t.Errorf("expected size 0, got %d", n.Size())
	}

	_ = n.Set(ctx, "key1", []byte("value1"))
	_ = n.Set(ctx, "key2", []byte("value2"))
	_ = n.Set(ctx, "key3", []byte("value3"))

	if len(n.Keys()) != 3 {
		t.Errorf("expected 3 keys, got %d", len(n.Keys()))
	}
	if n.Size() != 3 {
		t.Errorf("expected size 3, got %d", n.Size())
	}
}

func TestNodeConcurrentAccess(t *testing.T) {
	n := NewNode("test-node-1")
	_ = n.Start()
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = n.Set(ctx, string(rune('a'+i%26)), []byte("value"))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _, _ = n.Get(ctx, string(rune('a'+i%26)))
		}(i)
	}

	wg.Wait()
}

func TestNodeSuspendResume(t *testing.T) {
	n := NewNode("test-node-1")
	ctx := context.Background()

	if err := n.Suspend(); err == nil {
		t.Error("expected error when suspending stopped node")
	}

	_ = n.Start()
	_ = n.Set(ctx, "key1", []byte("value1"))

	if err := n.Suspend(); err != nil {
		t.Errorf("failed to suspend: %v", err)
	}
	if _, _, err := n.Get(ctx, "key1"); !errors.Is(err, ErrNotRunning) {
		t.Error("expected suspended node to reject Get")
	}

	if err := n.Resume(); err != nil {
		t.Errorf("failed to resume: %v", err)
	}
	if err := n.Resume(); err == nil {
		t.Error("expected error when resuming running node")
	}
	if _, ok, _ := n.Get(ctx, "key1"); !ok {
		t.Error("expected data to survive suspension")
	}
}

func TestNodeDelay(t *testing.T) {
	n := NewNode("test-node-1")
	_ = n.Start()

	n.SetDelay(20 * time.Millisecond)
	if n.Delay() != 20*time.Millisecond {
		t.Errorf("expected delay 20ms, got %v", n.Delay())
	}

	start := time.Now()
	_ = n.Set(context.Background(), "k", []byte("v"))
	if time.Since(start) < 20*time.Millisecond {
		t.Error("expected Set to be delayed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled during delay, got %v", err)
	}

	n.SetDelay(0)
	if n.Delay() != 0 {
		t.Errorf("expected delay cleared, got %v", n.Delay())
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusStopped:   "stopped",
		StatusRunning:   "running",
		StatusSuspended: "suspended",
		Status(42):      "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %s, want %s", s, s.String(), want)
		}
	}
}
