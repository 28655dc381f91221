package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/jpalmerr/podbridge/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxOptionsBody bounds PUT /api/options request bodies.
	maxOptionsBody = 4 << 10

	defaultTitle     = "podbridge"
	titlePlaceholder = "{{.Title}}"
)

// DeviceInfo describes one registered device for GET /api/devices.
type DeviceInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Side         string    `json:"side"`
	Manufacturer string    `json:"manufacturer"`
	Model        string    `json:"model"`
	Availability string    `json:"availability"`
	UpdatedAt    time.Time `json:"updated_at"`
	Entities     []string  `json:"entities"`
}

// DeviceSource lists the registered devices.
type DeviceSource interface {
	DeviceInfos() []DeviceInfo
}

// OptionsController is the options flow: read and change the poll interval.
type OptionsController interface {
	PollInterval() time.Duration
	SetPollInterval(d time.Duration) error
}

// OptionsBody is the JSON body of GET and PUT /api/options.
type OptionsBody struct {
	// PollInterval is in whole seconds.
	PollInterval *int64 `json:"poll_interval"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Config holds the dependencies of a [Server]. Devices, Options, Metrics and
// Assets are optional; their routes answer 404 when nil.
type Config struct {
	Port    int
	Store   store.Store
	Devices DeviceSource
	Options OptionsController
	Metrics http.Handler

	// Assets holds assets/index.html, served at "/" with {{.Title}} replaced.
	Assets fs.FS
	Title  string

	Logger *slog.Logger
}

// Server handles HTTP requests for the podbridge API.
//
// Routes:
//   - GET /api/devices: registered devices and their availability
//   - GET /api/entities: latest state of every entity
//   - GET /api/entities/:id: latest state of one entity
//   - GET /api/sse: Server-Sent Events stream of entity updates
//   - GET /api/options, PUT /api/options: the poll interval
//   - GET /metrics: Prometheus exposition, when configured
//   - GET /: the dashboard page, when assets are configured
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store   store.Store
	devices DeviceSource
	options OptionsController
	metrics http.Handler
	assets  fs.FS
	title   string
	port    int
	logger  *slog.Logger

	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   cfg.Store,
		devices: cfg.Devices,
		options: cfg.Options,
		metrics: cfg.Metrics,
		assets:  cfg.Assets,
		title:   cfg.Title,
		port:    cfg.Port,
		logger:  logger,
	}
}

// Handler returns the router serving every route.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.GET("/api/devices", s.handleDevices)
	router.GET("/api/entities", s.handleEntities)
	router.GET("/api/entities/:id", s.handleEntity)
	router.HandlerFunc(http.MethodGet, "/api/sse", s.handleSSE)
	router.GET("/api/options", s.handleGetOptions)
	router.PUT("/api/options", s.handlePutOptions)
	if s.metrics != nil {
		router.Handler(http.MethodGet, "/metrics", s.metrics)
	}
	if s.assets != nil {
		router.GET("/", s.handleDashboard)
	}

	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		s.logger.Error("http handler panic", "path", r.URL.Path, "panic", fmt.Sprintf("%v", v))
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
	return router
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}
	s.addr = ln.Addr()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", s.addr.String())
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// handleDashboard serves the dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.devices == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, s.devices.DeviceInfos())
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

func (s *Server) handleEntity(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	state, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown entity %q", id), "not_found")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.options == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, s.currentOptions())
}

// handlePutOptions applies a new poll interval. The interval must be a
// positive whole number of seconds.
func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.options == nil {
		http.NotFound(w, r)
		return
	}

	var body OptionsBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOptionsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid options body: %v", err), "invalid_body")
		return
	}
	if body.PollInterval == nil || *body.PollInterval <= 0 {
		writeError(w, http.StatusBadRequest, "poll_interval must be a positive integer", "invalid_interval")
		return
	}

	d := time.Duration(*body.PollInterval) * time.Second
	if err := s.options.SetPollInterval(d); err != nil {
		s.logger.Error("failed to apply options", "poll_interval", d.String(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	s.writeJSON(w, http.StatusOK, s.currentOptions())
}

func (s *Server) currentOptions() OptionsBody {
	secs := int64(s.options.PollInterval() / time.Second)
	return OptionsBody{PollInterval: &secs}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Code: code})
}

// handleSSE streams entity updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send the current snapshot first
	for _, state := range s.store.GetAll() {
		data, err := json.Marshal(state)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case state, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(state)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
