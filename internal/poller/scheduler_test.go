package poller

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// targetFor converts an httptest server URL into a Target.
func targetFor(t *testing.T, rawURL string) Target {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", rawURL, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", u.Host, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("bad port %q: %v", portStr, err)
	}
	return Target{Host: host, Port: port}
}

// unusedTarget points at a closed listener so fetches fail fast.
func unusedTarget(t *testing.T) Target {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	target := targetFor(t, server.URL)
	server.Close()
	return target
}

// collector records results delivered to a scheduler handler.
type collector struct {
	mu      sync.Mutex
	results []Result
	ch      chan Result
}

func newCollector() *collector {
	return &collector{ch: make(chan Result, 100)}
}

func (c *collector) handle(_ context.Context, r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	select {
	case c.ch <- r:
	default:
	}
}

func (c *collector) next(t *testing.T, within time.Duration) Result {
	t.Helper()
	select {
	case r := <-c.ch:
		return r
	case <-time.After(within):
		t.Fatalf("no result within %v", within)
		return Result{}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	scheduler := NewScheduler(unusedTarget(t), time.Minute, time.Second, nil, testLogger())

	// this must not panic
	scheduler.Stop()
}

// TestScheduler_StopTwice verifies that Stop() is idempotent and can be
// called multiple times without panic or deadlock.
func TestScheduler_StopTwice(t *testing.T) {
	scheduler := NewScheduler(unusedTarget(t), time.Minute, time.Second, nil, testLogger())
	scheduler.Start(context.Background())

	scheduler.Stop()
	scheduler.Stop()
}

// TestScheduler_ConcurrentStartStop verifies that calling Start() and Stop()
// concurrently does not cause a race condition or panic.
// Run with: go test -race ./internal/poller/...
func TestScheduler_ConcurrentStartStop(t *testing.T) {
	target := unusedTarget(t)

	for i := 0; i < 100; i++ {
		scheduler := NewScheduler(target, time.Minute, time.Second, nil, testLogger())

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			scheduler.Start(context.Background())
		}()

		go func() {
			defer wg.Done()
			scheduler.Stop()
		}()

		wg.Wait()
		scheduler.Stop()
	}
}

// TestScheduler_StartTwice verifies that calling Start() multiple times
// is idempotent and only runs one loop.
func TestScheduler_StartTwice(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newCollector()
	scheduler := NewScheduler(targetFor(t, server.URL), time.Hour, time.Second, c.handle, testLogger())

	scheduler.Start(context.Background())
	scheduler.Start(context.Background())
	scheduler.Start(context.Background())

	c.next(t, 2*time.Second)
	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	if got := hits.Load(); got != 1 {
		t.Errorf("expected exactly 1 immediate poll, got %d", got)
	}
}

// TestScheduler_StopBeforeStartThenStart verifies that Start() is a no-op
// after Stop() has been called.
func TestScheduler_StopBeforeStartThenStart(t *testing.T) {
	c := newCollector()
	scheduler := NewScheduler(unusedTarget(t), 10*time.Millisecond, time.Second, c.handle, testLogger())

	scheduler.Stop()
	scheduler.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	if got := c.count(); got != 0 {
		t.Errorf("expected no results after Stop-then-Start, got %d", got)
	}
}

// TestScheduler_ContextCancellation verifies that cancelling the parent
// context stops the loop.
func TestScheduler_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(statusHandler(statusBody))
	defer server.Close()

	c := newCollector()
	scheduler := NewScheduler(targetFor(t, server.URL), 10*time.Millisecond, time.Second, c.handle, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)
	c.next(t, 2*time.Second)

	cancel()

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after context cancellation")
	}

	settled := c.count()
	time.Sleep(50 * time.Millisecond)
	if got := c.count(); got != settled {
		t.Errorf("results kept arriving after cancellation: %d -> %d", settled, got)
	}
}

// TestScheduler_ImmediatePollOnStart verifies the first cycle runs at start
// rather than after the first interval.
func TestScheduler_ImmediatePollOnStart(t *testing.T) {
	server := httptest.NewServer(statusHandler(statusBody))
	defer server.Close()

	c := newCollector()
	scheduler := NewScheduler(targetFor(t, server.URL), time.Hour, time.Second, c.handle, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	r := c.next(t, 2*time.Second)
	if r.Err != nil {
		t.Fatalf("first result error = %v", r.Err)
	}
	if r.Cycle != 1 {
		t.Errorf("Cycle = %d, want 1", r.Cycle)
	}
	if r.URL != scheduler.URL() {
		t.Errorf("URL = %q, want %q", r.URL, scheduler.URL())
	}
	if _, ok := r.Payload["left"]; !ok {
		t.Error("payload should contain the left side")
	}
	if r.CheckedAt.IsZero() {
		t.Error("CheckedAt should be set")
	}
}

// TestScheduler_FailuresKeepPolling verifies a failing endpoint is retried on
// the normal cadence and every failure is delivered.
func TestScheduler_FailuresKeepPolling(t *testing.T) {
	c := newCollector()
	scheduler := NewScheduler(unusedTarget(t), 10*time.Millisecond, time.Second, c.handle, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	for i := 0; i < 3; i++ {
		r := c.next(t, 2*time.Second)
		if r.Err == nil {
			t.Fatalf("cycle %d: expected error from closed endpoint", r.Cycle)
		}
		if got := Kind(r.Err); got != Unreachable {
			t.Errorf("cycle %d: Kind = %q, want %q", r.Cycle, got, Unreachable)
		}
		if r.Payload != nil {
			t.Errorf("cycle %d: Payload should be nil on failure", r.Cycle)
		}
	}
}

// TestScheduler_RecoversAfterFailure verifies the cycle after a failure
// succeeds again once the endpoint recovers.
func TestScheduler_RecoversAfterFailure(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(statusBody))
	}))
	defer server.Close()

	c := newCollector()
	scheduler := NewScheduler(targetFor(t, server.URL), 10*time.Millisecond, time.Second, c.handle, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	first := c.next(t, 2*time.Second)
	if Kind(first.Err) != BadResponse {
		t.Fatalf("first Kind = %q, want %q", Kind(first.Err), BadResponse)
	}

	healthy.Store(true)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case r := <-c.ch:
			if r.Err == nil {
				return
			}
		case <-deadline:
			t.Fatal("scheduler never recovered after the endpoint became healthy")
		}
	}
}

// TestScheduler_NoOverlappingCycles verifies that a slow handler holds off
// the next fetch.
func TestScheduler_NoOverlappingCycles(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := maxInFlight.Load()
			if n <= old || maxInFlight.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(statusBody))
	}))
	defer server.Close()

	done := make(chan struct{}, 10)
	handler := func(ctx context.Context, r Result) {
		time.Sleep(20 * time.Millisecond)
		select {
		case done <- struct{}{}:
		default:
		}
	}

	scheduler := NewScheduler(targetFor(t, server.URL), time.Millisecond, time.Second, handler, testLogger())
	scheduler.Start(context.Background())

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("cycles stalled")
		}
	}
	scheduler.Stop()

	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("max concurrent requests = %d, want 1", got)
	}
}

// TestScheduler_SetIntervalWhileIdle verifies that shortening the interval
// re-arms a pending wait instead of waiting out the old one.
func TestScheduler_SetIntervalWhileIdle(t *testing.T) {
	server := httptest.NewServer(statusHandler(statusBody))
	defer server.Close()

	c := newCollector()
	scheduler := NewScheduler(targetFor(t, server.URL), time.Hour, time.Second, c.handle, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	c.next(t, 2*time.Second)

	if err := scheduler.SetInterval(20 * time.Millisecond); err != nil {
		t.Fatalf("SetInterval() error = %v", err)
	}
	if got := scheduler.Interval(); got != 20*time.Millisecond {
		t.Errorf("Interval() = %v, want 20ms", got)
	}

	r := c.next(t, 2*time.Second)
	if r.Cycle != 2 {
		t.Errorf("Cycle = %d, want 2", r.Cycle)
	}
}

// TestScheduler_SetIntervalDuringCycle verifies a change made mid-cycle
// applies to the wait after that cycle.
func TestScheduler_SetIntervalDuringCycle(t *testing.T) {
	server := httptest.NewServer(statusHandler(statusBody))
	defer server.Close()

	var scheduler *Scheduler
	c := newCollector()
	handler := func(ctx context.Context, r Result) {
		if r.Cycle == 1 {
			_ = scheduler.SetInterval(time.Hour)
		}
		c.handle(ctx, r)
	}

	scheduler = NewScheduler(targetFor(t, server.URL), 10*time.Millisecond, time.Second, handler, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	c.next(t, 2*time.Second)
	time.Sleep(100 * time.Millisecond)

	if got := c.count(); got != 1 {
		t.Errorf("expected the new 1h interval to hold off further cycles, got %d results", got)
	}
}

// TestScheduler_SetIntervalRejectsNonPositive verifies invalid intervals are
// refused and the current one is kept.
func TestScheduler_SetIntervalRejectsNonPositive(t *testing.T) {
	scheduler := NewScheduler(unusedTarget(t), time.Minute, time.Second, nil, testLogger())

	for _, d := range []time.Duration{0, -time.Second} {
		if err := scheduler.SetInterval(d); err == nil {
			t.Errorf("SetInterval(%v) expected error", d)
		}
	}
	if got := scheduler.Interval(); got != time.Minute {
		t.Errorf("Interval() = %v, want 1m", got)
	}
}

// TestScheduler_StopDiscardsInFlightResult verifies that a fetch cancelled
// by Stop is not delivered to the handler.
func TestScheduler_StopDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newCollector()
	scheduler := NewScheduler(targetFor(t, server.URL), time.Hour, 5*time.Second, c.handle, testLogger())
	scheduler.Start(context.Background())

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never started")
	}

	scheduler.Stop()

	if got := c.count(); got != 0 {
		t.Errorf("expected cancelled fetch to be discarded, got %d results", got)
	}
}

// TestScheduler_HandlerPanicRecovery verifies that a panicking handler does
// not stop the loop.
func TestScheduler_HandlerPanicRecovery(t *testing.T) {
	server := httptest.NewServer(statusHandler(statusBody))
	defer server.Close()

	c := newCollector()
	handler := func(ctx context.Context, r Result) {
		if r.Cycle == 1 {
			panic("handler exploded")
		}
		c.handle(ctx, r)
	}

	scheduler := NewScheduler(targetFor(t, server.URL), 10*time.Millisecond, time.Second, handler, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	r := c.next(t, 2*time.Second)
	if r.Cycle < 2 {
		t.Errorf("Cycle = %d, want a cycle after the panic", r.Cycle)
	}
}

// TestScheduler_HandlerNilPanicRecovery verifies recovery from a nil map
// write inside the handler.
func TestScheduler_HandlerNilPanicRecovery(t *testing.T) {
	server := httptest.NewServer(statusHandler(statusBody))
	defer server.Close()

	var calls atomic.Int32
	handler := func(ctx context.Context, r Result) {
		calls.Add(1)
		var m map[string]int
		m["boom"] = 1
	}

	scheduler := NewScheduler(targetFor(t, server.URL), 10*time.Millisecond, time.Second, handler, testLogger())
	scheduler.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	scheduler.Stop()

	if got := calls.Load(); got < 3 {
		t.Errorf("handler called %d times, want at least 3", got)
	}
}
