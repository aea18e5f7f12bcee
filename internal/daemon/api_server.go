package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketscout/internal/api"
	"marketscout/internal/config"
	"marketscout/internal/dailyrun"
	"marketscout/internal/logging"
	"marketscout/internal/queue"
	"marketscout/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	service *api.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger,
		daemon:  d,
		service: d.service,
	}
	srv.server = &http.Server{
		Handler:           authMiddleware(strings.TrimSpace(cfg.Paths.APIToken), srv.routes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("POST /api/jobs", s.handleEnqueue)
	mux.HandleFunc("DELETE /api/jobs", s.handleClearJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/jobs/{id}/reset", s.handleResetJob)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{date}", s.handleRunStatus)
	mux.HandleFunc("POST /api/runs/trigger", s.handleTrigger)
	mux.HandleFunc("GET /api/opportunities", s.handleOpportunities)
	mux.HandleFunc("GET /api/opportunities/history", s.handleHistory)
	mux.HandleFunc("POST /api/opportunities/{id}/blueprint", s.handleBlueprint)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		QueueDBPath:   status.QueueDBPath,
		LockFilePath:  status.LockFilePath,
		Workflow:      api.FromStatusSummary(status.Workflow),
		DailyEnabled:  status.DailyEnabled,
		DailySchedule: status.DailySchedule,
		NextDailyRun:  api.FormatTime(status.NextDailyRun),
	}
	if run, err := s.service.LatestDailyRun(r.Context()); err == nil {
		payload.LatestRun = run
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.service.ListJobs(r.Context(), queryInt(r, "limit"), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	jobType, err := queue.ParseJobType(req.Type)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	result, err := s.service.EnqueueJob(r.Context(), jobType, req.Params, req.Priority)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, result)
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleResetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.ResetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListDailyRuns(r.Context(), queryInt(r, "limit"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: runs})
}

func (s *apiServer) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if date == "today" {
		date = ""
	}
	run, err := s.service.GetDailyRunStatus(r.Context(), date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleTrigger starts the run asynchronously; a completed date is returned
// directly since triggering it again is a no-op.
func (s *apiServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req api.TriggerRequest
	if r.ContentLength != 0 && !s.decodeBody(w, r, &req) {
		return
	}
	if !req.Force {
		if run, err := s.service.GetDailyRunStatus(r.Context(), req.Date); err == nil && run.Status == string(queue.RunCompleted) {
			run.Reused = true
			s.writeJSON(w, http.StatusOK, run)
			return
		}
	}
	date, err := s.daemon.TriggerDaily(req)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.TriggerAccepted{RunDate: date, Status: "accepted"})
}

func (s *apiServer) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	opps, err := s.service.ListOpportunities(r.Context(), queryInt(r, "limit"), r.URL.Query().Get("category"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.OpportunityListResponse{Opportunities: opps})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	history, err := s.service.ScoreHistory(r.Context(), query.Get("keyword"), query.Get("category"), query.Get("country"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ScoreHistoryResponse{History: history})
}

func (s *apiServer) handleClearJobs(w http.ResponseWriter, r *http.Request) {
	removed, err := s.service.ClearJobs(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (s *apiServer) handleBlueprint(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid opportunity id")
		return
	}
	opp, err := s.service.MarkBlueprintGenerated(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, opp)
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return value
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, dailyrun.ErrRunInProgress), errors.Is(err, dailyrun.ErrRunSuperseded):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log().Warn("api request failed", logging.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
