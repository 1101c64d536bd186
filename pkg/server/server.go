package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/logger"
	"github.com/user/leadscope/pkg/pipeline"
	"github.com/user/leadscope/pkg/report"
)

const maxBodyBytes = 64 << 10

// Runner executes one audit. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Server exposes the audit pipeline over HTTP.
type Server struct {
	runner Runner
}

func New(runner Runner) *Server {
	return &Server{runner: runner}
}

// Routes returns the chi router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/audits", s.createAudit)
	})
	return r
}

type auditResponse struct {
	ScanID     string             `json:"scan_id"`
	Identity   engine.Identity    `json:"identity"`
	Unverified bool               `json:"website_unverified,omitempty"`
	Score      *int               `json:"score,omitempty"`
	Tier       engine.Tier        `json:"tier,omitempty"`
	Deductions []engine.Deduction `json:"deductions,omitempty"`
	Findings   []engine.Finding   `json:"findings,omitempty"`
	Facts      *engine.FactBundle `json:"facts,omitempty"`
	Narrative  string             `json:"narrative,omitempty"`
	SEOFixes   string             `json:"seo_fixes,omitempty"`
	Strategy   string             `json:"strategy,omitempty"`
	Report     string             `json:"report,omitempty"`
	Mirror     string             `json:"report_mirror,omitempty"`
	Warnings   []string           `json:"warnings"`
	Error      string             `json:"error,omitempty"`
}

func newAuditResponse(res *pipeline.Result) auditResponse {
	out := auditResponse{
		ScanID:     res.ScanID,
		Identity:   res.Identity,
		Unverified: res.LookupFailed,
		Narrative:  res.Narrative,
		SEOFixes:   res.SEOFixes,
		Strategy:   res.Strategy,
		Report:     res.ReportPath,
		Mirror:     res.MirrorURL,
		Warnings:   res.Warnings,
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	if !res.NoWebsite {
		score := res.Score.Score
		facts := res.Facts
		out.Score = &score
		out.Tier = res.Score.Tier
		out.Deductions = res.Score.Deductions
		out.Findings = res.Findings
		out.Facts = &facts
	}
	return out
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createAudit(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.NoReport = r.URL.Query().Get("report") == "false"

	res, err := s.runner.Run(r.Context(), req)
	var renderErr *report.RenderError
	switch {
	case err == nil:
	case errors.As(err, &renderErr) && res != nil:
		out := newAuditResponse(res)
		out.Error = renderErr.Error()
		writeJSON(w, http.StatusInternalServerError, out)
		return
	case errors.Is(err, pipeline.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		logger.Warnf("audit failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	status := http.StatusOK
	if res.NoWebsite && !res.LookupFailed {
		status = http.StatusNotFound
	}
	writeJSON(w, status, newAuditResponse(res))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Infof("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Infof("listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
