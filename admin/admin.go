// Package admin is the gateway's read-only operations surface: liveness, Prometheus metrics
// and JSON snapshots of the service registry. It listens separately from the gateway.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"yoroi/metrics"
	"yoroi/middleware"
	"yoroi/registry"
)

// Registry is what the admin surface reads.
type Registry interface {
	registry.Lister
	registry.Resolver
}

// Service is the JSON shape of a registry entry.
type Service struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Endpoints []string `json:"endpoints"`
}

type health struct {
	Status string `json:"status"`
	State  string `json:"state,omitempty"`
}

// Options wires the router to the running gateway. Metrics and State may be nil.
type Options struct {
	Registry Registry
	Metrics  *metrics.Metrics
	State    func() string
	Logger   *zap.Logger
}

// NewRouter builds the admin routes.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("admin")

	r := chi.NewMux()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		h := health{Status: "ok"}
		if opts.State != nil {
			h.State = opts.State()
		}
		writeJSON(w, http.StatusOK, h)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Route("/services", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			all := opts.Registry.GetAll()
			list := make([]Service, 0, len(all))
			for _, svc := range all {
				list = append(list, toService(svc))
			}
			sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
			writeJSON(w, http.StatusOK, list)
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			svc, ok := opts.Registry.Get(chi.URLParam(req, "id"))
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "service not found"})
				return
			}
			writeJSON(w, http.StatusOK, toService(svc))
		})
		r.Get("/{id}/resolve", func(w http.ResponseWriter, req *http.Request) {
			ep, err := registry.Lookup(opts.Registry, chi.URLParam(req, "id"))
			if errors.Is(err, registry.ErrNoRoute) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"endpoint": ep})
		})
	})
	return r
}

func toService(m registry.MicroService) Service {
	return Service{ID: m.ID, Name: m.Name, Endpoints: m.EndpointList()}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve listens on addr and serves h until ctx ends.
func Serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, h, logger)
}

// ServeListener is Serve over a bound listener.
func ServeListener(ctx context.Context, ln net.Listener, h http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("admin")),
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Info("admin listening", zap.String("address", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
