// Package api serves the feature generators over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/spatial-features/internal/feature"
	"github.com/sells-group/spatial-features/internal/model"
)

const maxBodyBytes = 64 << 20

// errTooManyPoints is returned when a request carries more points than
// Options.MaxPoints allows.
var errTooManyPoints = eris.New("too many points")

// Options configures a Server.
type Options struct {
	// RateLimit is the sustained request rate per second. Zero disables limiting.
	RateLimit   float64
	Burst       int
	CORSOrigins []string
	// MaxPoints caps targets plus references in one request. Zero means no cap.
	MaxPoints      int
	MaxCells       int
	FeatureOptions []feature.Option
}

// errorHandler writes a response for err and reports whether it did.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers for the feature endpoints.
type Server struct {
	opts          Options
	limiter       *rate.Limiter
	log           *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(opts Options) *Server {
	s := &Server{
		opts: opts,
		log:  zap.L().With(zap.String("component", "api")),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(errTooManyPoints, http.StatusRequestEntityTooLarge, "too_many_points"),
		sentinelHandler(model.ErrEmptyPointSet, http.StatusBadRequest, "empty_point_set"),
		sentinelHandler(model.ErrInsufficientReference, http.StatusBadRequest, "insufficient_reference"),
		sentinelHandler(model.ErrInvalidK, http.StatusBadRequest, "invalid_k"),
		sentinelHandler(model.ErrCRSMismatch, http.StatusBadRequest, "crs_mismatch"),
		sentinelHandler(model.ErrGeographicCRS, http.StatusBadRequest, "geographic_crs"),
		sentinelHandler(model.ErrInvalidCoordinate, http.StatusBadRequest, "invalid_coordinate"),
		sentinelHandler(model.ErrInvalidRadius, http.StatusBadRequest, "invalid_radius"),
		sentinelHandler(model.ErrInvalidCellSize, http.StatusBadRequest, "invalid_cell_size"),
		sentinelHandler(model.ErrGridTooLarge, http.StatusBadRequest, "grid_too_large"),
		sentinelHandler(model.ErrEmptyRegion, http.StatusBadRequest, "empty_region"),
	}
	return s
}

// Router returns the chi router with middleware and routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(s.requestLog)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/features/nn", s.nearestNeighbor)
		r.Post("/features/buffer", s.buffer)
		r.Post("/fishnet", s.fishnet)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rateLimit rejects requests with 429 once the token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer returns a JSON 500 instead of a plain text stack trace.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				s.log.Error("panic recovered",
					zap.Any("panic", rvr),
					zap.Stack("stacktrace"),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLog emits one log line per request and echoes X-Request-ID.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chiMiddleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("http_request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("response_bytes", ww.BytesWritten()),
		)
	})
}

// handleError maps input-validity errors to 4xx and everything else to 500.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.log.Debug("request rejected", zap.Error(err))
			return
		}
	}
	s.log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
