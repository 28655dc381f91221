package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/podbridge/internal/pod"
)

// Result holds the outcome of one poll cycle.
type Result struct {
	// Cycle is the 1-based sequence number of the cycle.
	Cycle uint64

	// URL is the status URL that was polled.
	URL string

	// Payload is the decoded top-level object. nil when Err is set.
	Payload pod.RawPayload

	// Err is a [*FetchError] when the fetch failed.
	Err error

	// Latency is the time taken by the fetch.
	Latency time.Duration

	// CheckedAt is the timestamp when the fetch completed.
	CheckedAt time.Time
}

// Handler applies a poll result. It runs on the scheduler goroutine, so the
// next cycle never starts before it returns.
type Handler func(ctx context.Context, r Result)

// Scheduler polls a single status URL at a fixed, reschedulable interval.
//
// There is at most one outstanding request. The scheduler polls once
// immediately on start, then waits interval after each cycle's result has
// been handled, whether the fetch succeeded or not. Failures never stop the
// loop; only [Scheduler.Stop] or context cancellation do.
//
// All lifecycle methods (Start, Stop, SetInterval) are safe for concurrent use.
type Scheduler struct {
	url     string
	timeout time.Duration
	client  *Client
	handler Handler
	logger  *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// reschedule wakes an idle loop after SetInterval
	reschedule chan struct{}
	cycles     uint64
}

// NewScheduler creates a new polling [Scheduler].
//
// Parameters:
//   - target: status endpoint to poll
//   - interval: time between the end of one cycle and the start of the next
//   - timeout: upper bound for a single fetch
//   - handler: receives every result, in order
//   - logger: logger for scheduler events (panic recovery, rescheduling)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(target Target, interval, timeout time.Duration, handler Handler, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		url:        target.URL(),
		timeout:    timeout,
		client:     NewClient(),
		handler:    handler,
		logger:     logger,
		interval:   interval,
		reschedule: make(chan struct{}, 1),
	}
}

// URL returns the status URL the scheduler polls.
func (s *Scheduler) URL() string {
	return s.url
}

// Interval returns the interval that will be used for the next wait.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the poll interval.
//
// The change takes effect on the next scheduled cycle: an idle wait is
// cancelled and re-armed with d, while an in-flight fetch is allowed to
// complete and the wait that follows it uses d.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errors.New("poll interval must be positive")
	}

	s.mu.Lock()
	old := s.interval
	s.interval = d
	s.mu.Unlock()

	if old != d {
		s.logger.Info("poll interval changed", "from", old.String(), "to", d.String())
	}

	select {
	case s.reschedule <- struct{}{}:
	default:
		// a wake-up is already pending
	}
	return nil
}

// Start begins the polling loop in a background goroutine.
//
// Start is non-blocking and returns immediately. If ctx is nil,
// context.Background() is used. Start is idempotent; if Stop was called
// before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(pollCtx)
	}()
}

// Stop halts the scheduler and waits for the loop to exit.
//
// A fetch in progress is cancelled and its result discarded. The HTTP
// client's idle connections are released. Stop is idempotent and safe to
// call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// clean up client connections after the loop has exited
	if s.client != nil {
		s.client.Close()
	}
}

func (s *Scheduler) run(ctx context.Context) {
	s.pollOnce(ctx)
	s.drainReschedule()

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reschedule:
			timer.Reset(s.Interval())
		case <-timer.C:
			s.pollOnce(ctx)
			// the interval is re-read below, so wake-ups from this cycle are redundant
			s.drainReschedule()
			timer.Reset(s.Interval())
		}
	}
}

func (s *Scheduler) drainReschedule() {
	select {
	case <-s.reschedule:
	default:
	}
}

// pollOnce fetches the status document and hands the result to the handler.
func (s *Scheduler) pollOnce(ctx context.Context) {
	start := time.Now()
	payload, err := s.client.Fetch(ctx, s.url, s.timeout)

	// stopped mid-flight: the result would only report our own cancellation
	if ctx.Err() != nil {
		return
	}

	s.cycles++
	result := Result{
		Cycle:     s.cycles,
		URL:       s.url,
		Payload:   payload,
		Err:       err,
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
	}
	s.safeHandle(ctx, result)
}

// safeHandle calls the handler with panic recovery.
// If the handler panics, it logs the full stack trace with a correlation ID
// and the loop continues with the next cycle.
func (s *Scheduler) safeHandle(ctx context.Context, result Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("poll handler panic",
				"correlation_id", correlationID,
				"cycle", result.Cycle,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)
		}
	}()
	if s.handler != nil {
		s.handler(ctx, result)
	}
}
