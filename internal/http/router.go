package httpapi

import (
	"net/http"
	"time"

	"emmo-data/internal/metrics"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux     *http.ServeMux
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewRouter(m *metrics.Collector, logger *zap.Logger) *Router {
	return &Router{
		mux:     http.NewServeMux(),
		metrics: m,
		logger:  logger,
	}
}

// Handle registers h under pattern; the pattern is the route label of its metrics.
func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, r.instrument(pattern, h))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handlers bundles everything the API serves. Nil handlers are not registered.
type Handlers struct {
	Drives      *DrivesHandler
	Parts       *PartsHandler
	Inspections *InspectionsHandler
	Maintenance *MaintenanceHandler
	Dashboard   *DashboardHandler
}

// RegisterRoutes 注册全部路由
func (r *Router) RegisterRoutes(h Handlers) {
	r.mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
	r.mux.Handle("/metrics", r.metrics.Handler())

	if h.Drives != nil {
		r.Handle(drivesPath, h.Drives)
		r.Handle(drivesPath+"/", h.Drives)
	}
	if h.Parts != nil {
		r.Handle(partsPath, h.Parts)
		r.Handle(partsPath+"/", h.Parts)
	}
	if h.Inspections != nil {
		r.Handle(inspectionsPath, h.Inspections)
		r.Handle(inspectionsPath+"/", h.Inspections)
	}
	if h.Maintenance != nil {
		r.Handle(recordsPath, h.Maintenance)
		r.Handle(recordsPath+"/", h.Maintenance)
	}
	if h.Dashboard != nil {
		r.Handle(dashboardPath, h.Dashboard)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) instrument(route string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, req)
		elapsed := time.Since(start)
		r.metrics.ObserveHTTP(route, req.Method, rec.status, elapsed)
		r.logger.Debug("HTTP request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
		)
	})
}
