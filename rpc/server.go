package rpc

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tolelom/purgegame/metrics"
)

// Options configure the HTTP front of the node.
type Options struct {
	AuthToken string  // empty → no auth required
	RateLimit float64 // requests per second per client; 0 disables limiting
	Burst     int
	TLS       *tls.Config // nil → plain HTTP
}

// Server is a JSON-RPC 2.0 HTTP server.
type Server struct {
	handler *Handler
	metrics *metrics.Collector
	addr    string
	opts    Options
	limiter *RateLimiter // nil when limiting is off
	srv     *http.Server
	log     *logrus.Entry
}

// NewServer creates a Server on addr. If opts.AuthToken is non-empty, every
// RPC request must carry a matching "Authorization: Bearer <token>" header.
// m may be nil, in which case /metrics is not served.
func NewServer(addr string, handler *Handler, m *metrics.Collector, opts Options) *Server {
	s := &Server{
		handler: handler,
		metrics: m,
		addr:    addr,
		opts:    opts,
		log:     logrus.WithField("component", "rpc"),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = NewRateLimiter(opts.RateLimit, burst)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router builds the route table: POST / for RPC, GET /healthz and, when a
// collector is attached, GET /metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	var rpcHandler http.Handler = http.HandlerFunc(s.serveRPC)
	if s.limiter != nil {
		rpcHandler = s.limiter.Middleware(rpcHandler)
	}
	r.Handle("/", rpcHandler).Methods(http.MethodPost)
	r.Path("/healthz").Methods(http.MethodGet).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Path("/metrics").Methods(http.MethodGet).Handler(s.metrics.Handler())
	}
	return r
}

// Start binds the port synchronously (so callers know immediately if binding
// fails) then serves requests in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	if s.opts.TLS != nil {
		ln = tls.NewListener(ln, s.opts.TLS)
	}
	s.log.WithFields(logrus.Fields{
		"addr": ln.Addr().String(),
		"tls":  s.opts.TLS != nil,
	}).Info("listening")
	if s.limiter != nil {
		s.limiter.StartCleanup(time.Minute)
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting up to 5 seconds for
// in-flight requests to complete.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if s.opts.AuthToken != "" {
		got := []byte(r.Header.Get("Authorization"))
		want := []byte("Bearer " + s.opts.AuthToken)
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeJSONStatus(w, http.StatusUnauthorized, errResponse(nil, CodeUnauthorized, "unauthorized"))
			return
		}
	}

	// Limit request body to 1 MB to prevent memory exhaustion.
	r.Body = http.MaxBytesReader(w, r.Body, 1*1024*1024)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, errResponse(nil, CodeParseError, err.Error()))
		return
	}
	if req.JSONRPC != "2.0" {
		writeJSON(w, errResponse(req.ID, CodeInvalidRequest, "jsonrpc must be '2.0'"))
		return
	}

	start := time.Now()
	resp := s.handler.Dispatch(req)
	if s.metrics != nil {
		code := 0
		if resp.Error != nil {
			code = resp.Error.Code
		}
		s.metrics.ObserveRPC(req.Method, code, start)
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
