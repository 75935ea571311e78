// Package api serves the instituicoes resources over HTTP.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/metrics"
	"github.com/nonsonwune/censo_db/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the persistence the resources need. store.Instituicoes
// implements it.
type Store interface {
	List(ctx context.Context, uf string, page, perPage int) ([]models.Instituicao, models.Pagination, error)
	Get(ctx context.Context, id int64, ano int) (*models.Instituicao, error)
	Create(ctx context.Context, inst *models.Instituicao) error
	Update(ctx context.Context, id int64, ano int, patch models.InstituicaoPatch) (*models.Instituicao, error)
	Delete(ctx context.Context, id int64, ano int) error
	Ping(ctx context.Context) error
}

// Handler is the HTTP front of the service.
type Handler struct {
	Handler http.Handler

	logger *slog.Logger
	store  Store

	ln           net.Listener
	closeTimeout time.Duration
	server       *http.Server
}

type handlerOption func(h *Handler) error

// OptHandlerAllowedOrigins enables CORS for origins. "*" allows any origin.
func OptHandlerAllowedOrigins(origins []string) handlerOption {
	return func(h *Handler) error {
		h.Handler = handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
			handlers.ExposedHeaders([]string{"X-Request-ID"}),
		)(h.Handler)
		return nil
	}
}

func OptHandlerStore(s Store) handlerOption {
	return func(h *Handler) error {
		h.store = s
		return nil
	}
}

func OptHandlerLogger(logger *slog.Logger) handlerOption {
	return func(h *Handler) error {
		h.logger = logger
		return nil
	}
}

func OptHandlerListener(ln net.Listener) handlerOption {
	return func(h *Handler) error {
		h.ln = ln
		return nil
	}
}

func OptHandlerCloseTimeout(d time.Duration) handlerOption {
	return func(h *Handler) error {
		h.closeTimeout = d
		return nil
	}
}

// NewHandler builds the handler. OptHandlerStore is required; the listener
// is only needed by Serve.
func NewHandler(opts ...handlerOption) (*Handler, error) {
	handler := &Handler{
		logger:       slog.Default(),
		closeTimeout: 30 * time.Second,
	}
	handler.Handler = newRouter(handler)

	for _, opt := range opts {
		if err := opt(handler); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}

	if handler.store == nil {
		return nil, errors.New(errors.ErrUncoded, "must pass OptHandlerStore")
	}

	handler.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return handler, nil
}

// Serve accepts connections on the configured listener until Close.
func (h *Handler) Serve() error {
	if h.ln == nil {
		return errors.New(errors.ErrUncoded, "must pass OptHandlerListener")
	}
	h.logger.Info("http server listening", "addr", h.ln.Addr().String())
	err := h.server.Serve(h.ln)
	if err != nil && err != http.ErrServerClosed {
		h.logger.Error("http server terminated", "err", err)
		return errors.Wrap(err, "serve http")
	}
	return nil
}

// Close shuts the server down gracefully, and forcefully after the close
// timeout.
func (h *Handler) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.closeTimeout)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		return errors.Wrap(h.server.Close(), "shutdown/close http server")
	}
	return nil
}

func newRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/instituicoes", handler.handleListInstituicoes).Methods("GET").Name("ListInstituicoes")
	router.HandleFunc("/instituicoes", handler.handlePostInstituicao).Methods("POST").Name("PostInstituicao")
	router.HandleFunc("/instituicoes/{id:[0-9]+}/{ano:[0-9]+}", handler.handleGetInstituicao).Methods("GET").Name("GetInstituicao")
	router.HandleFunc("/instituicoes/{id:[0-9]+}/{ano:[0-9]+}", handler.handlePatchInstituicao).Methods("PUT", "PATCH").Name("PatchInstituicao")
	router.HandleFunc("/instituicoes/{id:[0-9]+}/{ano:[0-9]+}", handler.handleDeleteInstituicao).Methods("DELETE").Name("DeleteInstituicao")
	router.HandleFunc("/healthz", handler.handleHealthz).Methods("GET").Name("Healthz")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET").Name("Metrics")

	router.Use(handler.requestID)
	router.Use(handler.collectStats)
	return router
}

// ServeHTTP handles an HTTP request. Panics become a plain 500.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			h.logger.Error("panic serving request",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", err,
				"request_id", w.Header().Get(requestIDHeader))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Message: msgInternal})
		}
	}()

	h.Handler.ServeHTTP(w, r)
}

const requestIDHeader = "X-Request-ID"

type contextKey int

const contextKeyRequestID contextKey = iota

// requestID propagates the caller's X-Request-ID or assigns a new one.
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyRequestID, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *Handler) collectStats(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(t)

		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.CounterHTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HistogramHTTPRequestTime.WithLabelValues(route).Observe(dur.Seconds())

		h.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", dur,
			"request_id", requestIDFrom(r.Context()))
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
