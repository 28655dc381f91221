package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jpalmerr/podbridge/internal/coordinator"
	"github.com/jpalmerr/podbridge/internal/pod"
	"github.com/jpalmerr/podbridge/internal/poller"
)

const payload = `{
  "left": {"currentTemperatureF": 78, "targetTemperatureF": 72, "secondsRemaining": 1200, "isAlarmVibrating": false, "isOn": true},
  "right": {"currentTemperatureF": 83, "targetTemperatureF": 90, "secondsRemaining": 300, "isAlarmVibrating": true, "isOn": true},
  "isPriming": false,
  "waterLevel": "true",
  "sensorLabel": "abc"
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStatsd struct {
	mu     sync.Mutex
	gauges map[string]float64
	incrs  map[string]int
	closed bool
}

func newFakeStatsd() *fakeStatsd {
	return &fakeStatsd{gauges: make(map[string]float64), incrs: make(map[string]int)}
}

func (f *fakeStatsd) Gauge(name string, value float64, tags []string, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges[name+"|"+strings.Join(tags, ",")] = value
	return nil
}

func (f *fakeStatsd) Incr(name string, tags []string, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrs[name+"|"+strings.Join(tags, ",")]++
	return nil
}

func (f *fakeStatsd) Close() error {
	f.closed = true
	return nil
}

func setup(t *testing.T, sd StatsdClient) (*Collector, *coordinator.Coordinator) {
	t.Helper()
	col := New(sd, testLogger())
	coord := coordinator.New(poller.Target{Host: "pod", Port: 8080}, []coordinator.Publisher{col}, testLogger())
	if err := coord.Register(); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return col, coord
}

func okResult(t *testing.T) poller.Result {
	t.Helper()
	raw, err := pod.DecodePayload([]byte(payload))
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	return poller.Result{Payload: raw, Latency: 20 * time.Millisecond, CheckedAt: time.Now()}
}

func TestCollector_RegisterSeedsAvailability(t *testing.T) {
	col, coord := setup(t, nil)

	if got := testutil.CollectAndCount(col.entityAvailable); got != len(coord.Entities()) {
		t.Errorf("availability series = %d, want %d", got, len(coord.Entities()))
	}
	if got := testutil.ToFloat64(col.entityAvailable.WithLabelValues("eight_sleep_left_is_on", "left")); got != 0 {
		t.Errorf("initial availability = %v, want 0", got)
	}
}

func TestCollector_Values(t *testing.T) {
	col, coord := setup(t, nil)
	coord.Apply(context.Background(), okResult(t))

	tests := []struct {
		uid   string
		side  string
		field string
		want  float64
	}{
		{"eight_sleep_left_current_temp_f", "left", "currentTemperatureF", 78},
		{"eight_sleep_left_seconds_remaining", "left", "secondsRemaining", 1200},
		{"eight_sleep_left_is_on", "left", "isOn", 1},
		{"eight_sleep_left_is_alarm_vibrating", "left", "isAlarmVibrating", 0},
		{"eight_sleep_hub_water_level", "hub", "waterLevel", 1},
	}
	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			if got := testutil.ToFloat64(col.entityValue.WithLabelValues(tt.uid, tt.side, tt.field)); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
			if got := testutil.ToFloat64(col.entityAvailable.WithLabelValues(tt.uid, tt.side)); got != 1 {
				t.Errorf("available = %v, want 1", got)
			}
		})
	}

	// the sensor label is a string and has no gauge
	if got, want := testutil.CollectAndCount(col.entityValue), len(coord.Entities())-1; got != want {
		t.Errorf("value series = %d, want %d", got, want)
	}
}

func TestCollector_PollOutcomes(t *testing.T) {
	col, coord := setup(t, nil)

	coord.Apply(context.Background(), okResult(t))
	coord.Apply(context.Background(), poller.Result{Err: &poller.FetchError{Kind: poller.Timeout, Err: errors.New("slow")}})
	coord.Apply(context.Background(), poller.Result{Err: &poller.FetchError{Kind: poller.Timeout, Err: errors.New("slow")}})

	if got := testutil.ToFloat64(col.polls.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok polls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(col.polls.WithLabelValues("timeout")); got != 2 {
		t.Errorf("timeout polls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(col.entityAvailable.WithLabelValues("eight_sleep_right_is_on", "right")); got != 0 {
		t.Errorf("availability after failure = %v, want 0", got)
	}
	// last known value stays exported
	if got := testutil.ToFloat64(col.entityValue.WithLabelValues("eight_sleep_right_current_temp_f", "right", "currentTemperatureF")); got != 83 {
		t.Errorf("retained value = %v, want 83", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	col, coord := setup(t, nil)
	coord.Apply(context.Background(), okResult(t))

	rec := httptest.NewRecorder()
	col.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"podbridge_entity_value",
		"podbridge_entity_available",
		"podbridge_polls_total",
		"podbridge_poll_duration_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition missing %s", name)
		}
	}
	if !strings.Contains(body, `unique_id="eight_sleep_left_current_temp_f"`) {
		t.Error("exposition missing left temperature series")
	}
}

func TestCollector_Statsd(t *testing.T) {
	sd := newFakeStatsd()
	col, coord := setup(t, sd)

	coord.Apply(context.Background(), okResult(t))

	if got := sd.gauges["entity.current_temp_f|side:left,entity:current_temp_f"]; got != 78 {
		t.Errorf("statsd left temperature = %v, want 78", got)
	}
	if got := sd.incrs["polls|result:ok"]; got != 1 {
		t.Errorf("statsd ok polls = %d, want 1", got)
	}

	if err := col.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sd.closed {
		t.Error("statsd client not closed")
	}
}

func TestCollector_CloseWithoutStatsd(t *testing.T) {
	col := New(nil, testLogger())
	if err := col.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFormatTag(t *testing.T) {
	if got := FormatTag("side", "left"); got != "side:left" {
		t.Errorf("FormatTag() = %q", got)
	}
}
