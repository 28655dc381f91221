// Package mockpod simulates the local status API of a pod for local runs.
package mockpod

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type side struct {
	CurrentTemperatureF float64 `json:"currentTemperatureF"`
	TargetTemperatureF  float64 `json:"targetTemperatureF"`
	SecondsRemaining    int     `json:"secondsRemaining"`
	IsAlarmVibrating    bool    `json:"isAlarmVibrating"`
	IsOn                bool    `json:"isOn"`
}

type status struct {
	Left        side   `json:"left"`
	Right       side   `json:"right"`
	IsPriming   bool   `json:"isPriming"`
	WaterLevel  string `json:"waterLevel"`
	SensorLabel string `json:"sensorLabel"`
}

// Handler serves GET /api/deviceStatus. Temperatures drift towards their
// targets, and roughly one request in ten fails with HTTP 503.
func Handler(logger *slog.Logger) http.Handler {
	var mu sync.Mutex
	st := status{
		Left:        side{CurrentTemperatureF: 78, TargetTemperatureF: 72, SecondsRemaining: 3600, IsOn: true},
		Right:       side{CurrentTemperatureF: 83, TargetTemperatureF: 90, SecondsRemaining: 1800, IsOn: true},
		WaterLevel:  "true",
		SensorLabel: "mock-pod",
	}
	last := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/deviceStatus", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		if rand.Intn(10) == 0 {
			logger.Info("mock pod failing request")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		mu.Lock()
		elapsed := int(time.Since(last).Seconds())
		last = time.Now()
		for _, s := range []*side{&st.Left, &st.Right} {
			s.CurrentTemperatureF += (s.TargetTemperatureF - s.CurrentTemperatureF) / 10
			s.SecondsRemaining = max(0, s.SecondsRemaining-elapsed)
			s.IsOn = s.SecondsRemaining > 0
			s.IsAlarmVibrating = s.SecondsRemaining > 0 && s.SecondsRemaining < 60
		}
		body := st
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("failed to write response", "error", err)
		}
	})
	return mux
}

// ListenAndServe runs [Handler] on addr.
func ListenAndServe(addr string, logger *slog.Logger) error {
	logger.Info("mock pod listening", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: Handler(logger), ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}
