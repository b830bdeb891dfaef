package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"staytoken/internal/config"
	"staytoken/internal/controller"
	"staytoken/internal/domain"
	"staytoken/internal/export"
	"staytoken/internal/factory"
	"staytoken/internal/metrics"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the operator query API: booking, event, listing and
// royalty lookups plus the Excel export. State changes go through the
// controller's Go API, never through HTTP.
type HTTPServer struct {
	cfg        config.APIConfig
	controller *controller.Controller
	cache      domain.CacheRepository
	store      domain.Store
	registries *factory.Factory
	exporter   *export.Exporter
	logger     *zerolog.Logger
	server     *http.Server
	auth       *HTTPAuth
}

func NewHTTPServer(cfg config.APIConfig, ctrl *controller.Controller, store domain.Store, cache domain.CacheRepository, registries *factory.Factory, exporter *export.Exporter, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:        cfg,
		controller: ctrl,
		cache:      cache,
		store:      store,
		registries: registries,
		exporter:   exporter,
		logger:     logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/bookings/", srv.handleBooking)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookingList)
	mux.HandleFunc("/api/v1/events/", srv.handleEvent)
	mux.HandleFunc("/api/v1/listings/", srv.handleListing)
	mux.HandleFunc("/api/v1/royalties/", srv.handleRoyalty)
	mux.HandleFunc("/api/v1/tradeable/", srv.handleTradeable)
	mux.HandleFunc("/api/v1/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("booking")

	id, ok := pathID(w, r, "/api/v1/bookings/")
	if !ok {
		return
	}

	if s.cache != nil {
		if b, err := s.cache.GetBooking(r.Context(), id); err == nil && b != nil {
			writeJSON(w, http.StatusOK, b)
			return
		}
	}

	b, err := s.controller.GetBookingDetails(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if s.cache != nil {
		_ = s.cache.SetBooking(r.Context(), b)
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleBookingList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("booking_list")

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	bookings, err := s.store.ListBookings(r.Context(), status, from, to)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("event")

	id, ok := pathID(w, r, "/api/v1/events/")
	if !ok {
		return
	}

	event, err := s.controller.GetEventDetails(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *HTTPServer) handleListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("listing")

	unitID, ok := pathID(w, r, "/api/v1/listings/")
	if !ok {
		return
	}

	if s.cache != nil {
		if l, err := s.cache.GetListing(r.Context(), unitID); err == nil && l != nil {
			writeJSON(w, http.StatusOK, l)
			return
		}
	}

	l, err := s.controller.GetListingDetails(r.Context(), unitID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if s.cache != nil {
		_ = s.cache.SetListing(r.Context(), l)
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *HTTPServer) handleRoyalty(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("royalty")

	unitID, ok := pathID(w, r, "/api/v1/royalties/")
	if !ok {
		return
	}

	info, err := s.controller.GetRoyaltyInfo(r.Context(), unitID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *HTTPServer) handleTradeable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("tradeable")

	unitID, ok := pathID(w, r, "/api/v1/tradeable/")
	if !ok {
		return
	}

	tradeable, err := s.isTradeable(r.Context(), unitID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unit_id": unitID, "tradeable": tradeable})
}

// isTradeable resolves the unit's registry through the factory when wired so
// event registries answer with their own rule set.
func (s *HTTPServer) isTradeable(ctx context.Context, unitID int64) (bool, error) {
	if s.registries == nil {
		return s.controller.IsTradeable(ctx, unitID)
	}

	u, err := s.store.FindActiveUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.registries.PostStay().IsTradeable(ctx, unitID)
		}
		return false, err
	}

	reg, err := s.registries.Registry(ctx, u.RegistryID)
	if err != nil {
		return false, err
	}
	return reg.IsTradeable(ctx, unitID)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("export")

	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	path, err := s.exporter.BookingsToExcel(r.Context(), status, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func pathID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusBadRequest, "id is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var from, to time.Time
	var err error

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
			return from, to, false
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		to, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
			return from, to, false
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return from, to, false
	}
	return from, to, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrNotListed):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
