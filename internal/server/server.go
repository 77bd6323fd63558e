// Package server exposes batch processing over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/channel"
	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/export"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/monitoring"
	"github.com/sells-group/salesops-cli/internal/runner"
	"github.com/sells-group/salesops-cli/internal/store"
)

// Server serves the batch API.
type Server struct {
	runner    *runner.Runner
	ledger    store.Ledger
	profiles  func() []string
	cfg       config.ServerConfig
	maxUpload int64
}

// New returns a Server. ledger may be nil, in which case /v1/runs is empty.
func New(cfg config.ServerConfig, r *runner.Runner, ledger store.Ledger, profiles func() []string) *Server {
	maxUpload := int64(cfg.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	if ledger == nil {
		ledger = store.Nop{}
	}
	return &Server{runner: r, ledger: ledger, profiles: profiles, cfg: cfg, maxUpload: maxUpload}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Filename"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/profiles", s.listProfiles)
		r.Post("/batches/{profile}", s.postBatch)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Get("/stats", s.stats)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) listProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"profiles": s.profiles()})
}

type rejection struct {
	Status     string   `json:"status"`
	RunID      string   `json:"run_id"`
	Count      int      `json:"unresolved_transactions"`
	Unresolved []string `json:"unresolved_branches"`
}

// postBatch processes the request body as one export. The filename (query
// "filename" or header X-Filename) selects the parser; the "format" query
// selects the response encoding (json by default).
func (s *Server) postBatch(w http.ResponseWriter, r *http.Request) {
	profile := chi.URLParam(r, "profile")

	name := r.URL.Query().Get("filename")
	if name == "" {
		name = r.Header.Get("X-Filename")
	}
	if name == "" {
		name = "upload.csv"
	}

	format := export.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := export.ParseFormat(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = parsed
	}

	body := http.MaxBytesReader(w, r.Body, s.maxUpload)
	res, err := s.runner.ProcessReader(r.Context(), profile, name, body)

	var ue *channel.UnresolvedError
	var tooLarge *http.MaxBytesError
	var loadErr *runner.LoadError
	switch {
	case errors.As(err, &ue):
		writeJSON(w, http.StatusUnprocessableEntity, rejection{
			Status:     string(model.RunStatusRejected),
			RunID:      res.Run.ID,
			Count:      ue.Count,
			Unresolved: ue.Branches,
		})
		return
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	case errors.Is(err, config.ErrUnknownProfile):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.As(err, &loadErr):
		zap.L().Error("server: load dataset", zap.String("run_id", res.Run.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "load failed")
		return
	case err != nil && res == nil:
		zap.L().Error("server: prepare engine", zap.String("profile", profile), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("X-Run-ID", res.Run.ID)
	switch format {
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	case export.FormatXLSX:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, format, res.Dataset, export.Options{}); err != nil {
		zap.L().Error("server: write dataset", zap.String("run_id", res.Run.ID), zap.Error(err))
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:  model.RunStatus(q.Get("status")),
		Profile: q.Get("profile"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.ledger.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.ledger.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil || run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// stats summarizes the ledger; "hours" bounds the window (default 24, 0 = all).
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "hours must be a non-negative integer")
			return
		}
		hours = n
	}
	snap, err := monitoring.NewCollector(s.ledger).Collect(r.Context(), r.URL.Query().Get("profile"), hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
