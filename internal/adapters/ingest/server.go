package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
	"github.com/vigil-run/vigil/internal/core/services"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP front of the engine.
type Server struct {
	alerts    *services.AlertService
	schedules *services.ScheduleService
	noise     *services.NoiseService
	parsers   *ParserRegistry
	logger    ports.Logger
	metrics   http.Handler
	httpSrv   *http.Server
}

// NewServer wires the HTTP server. metricsHandler serves /metrics and may be
// nil.
func NewServer(
	addr string,
	alerts *services.AlertService,
	schedules *services.ScheduleService,
	noise *services.NoiseService,
	parsers *ParserRegistry,
	logger ports.Logger,
	metricsHandler http.Handler,
) *Server {
	s := &Server{
		alerts:    alerts,
		schedules: schedules,
		noise:     noise,
		parsers:   parsers,
		logger:    logger,
		metrics:   metricsHandler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/alerts/{source}", s.handleIngest)
	mux.HandleFunc("POST /v1/alerts/{id}/ack", s.handleAcknowledge)
	mux.HandleFunc("POST /v1/alerts/{id}/resolve", s.handleResolve)
	mux.HandleFunc("GET /v1/alerts", s.handleList)
	mux.HandleFunc("GET /v1/oncall/{schedule_id}", s.handleOnCall)
	mux.HandleFunc("GET /v1/noise", s.handleNoise)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the mux, used by tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	raws, err := s.parsers.For(source).Parse(body, headers)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	now := time.Now().UTC()
	ids := make([]string, 0, len(raws))
	for _, raw := range raws {
		id, err := s.alerts.Receive(r.Context(), raw, now)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		ids = append(ids, id.String())
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"alert_ids": ids})
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	alertID, err := domain.ParseAlertID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	userID, err := domain.ParseUserID(req.UserID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.alerts.Acknowledge(r.Context(), alertID, userID, time.Now().UTC()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	alertID, err := domain.ParseAlertID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		ResolvedBy string `json:"resolved_by"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ResolvedBy == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: resolved_by", ports.ErrMissingField))
		return
	}

	if err := s.alerts.Resolve(r.Context(), alertID, req.ResolvedBy, time.Now().UTC()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ports.AlertFilter{
		Status:   domain.Status(q.Get("status")),
		Severity: domain.Severity(q.Get("severity")),
		Source:   q.Get("source"),
		Search:   q.Get("search"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	alerts, err := s.alerts.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleOnCall(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := domain.ParseScheduleID(r.PathValue("schedule_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	at := time.Now().UTC()
	if v := r.URL.Query().Get("at"); v != "" {
		at, err = time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	userID, err := s.schedules.WhoIsOnCall(r.Context(), scheduleID, at)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"schedule_id": scheduleID.String(),
		"user_id":     userID.String(),
		"at":          at.Format(time.RFC3339),
	})
}

func (s *Server) handleNoise(w http.ResponseWriter, r *http.Request) {
	minFires, _ := strconv.ParseInt(r.URL.Query().Get("min_fires"), 10, 64)
	scores, err := s.noise.Noisiest(r.Context(), minFires)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
}

// writeDomainError maps error classes to transport status codes: not-found to
// 404, lifecycle conflicts to 409, validation to 400, the rest to 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrAlertAlreadyResolved):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidOverridePeriod),
		errors.Is(err, domain.ErrInvalidPhoneFormat):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}
