// Command domainscout runs the domain research HTTP service: submit
// keyword research tasks, poll their progress, download the results.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"domainscout/research"
)

func main() {
	port := env("PORT", "8080")
	configPath := env("CONFIG", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Config.
	var cfg *research.Config
	if configPath != "" {
		var err error
		cfg, err = research.LoadConfig(configPath)
		if err != nil {
			slog.Error("load config", "path", configPath, "error", err)
			os.Exit(1)
		}
	}

	svc := research.New(cfg, logger, research.WithRegisterer(prometheus.DefaultRegisterer))
	svc.Start(ctx)

	// Router.
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		active, total := svc.Counts()
		writeJSON(w, 200, map[string]any{
			"status":       "healthy",
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
			"active_tasks": active,
			"total_tasks":  total,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/research", func(w http.ResponseWriter, req *http.Request) {
		var body researchRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, 400, err)
			return
		}
		id, err := svc.Submit(body.criteria())
		if err != nil {
			writeError(w, 400, err)
			return
		}
		writeJSON(w, 202, map[string]string{"task_id": id})
	})

	r.Get("/api/status/{taskID}", func(w http.ResponseWriter, req *http.Request) {
		st, err := svc.Status(chi.URLParam(req, "taskID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, st)
	})

	r.Get("/api/results/{taskID}", func(w http.ResponseWriter, req *http.Request) {
		views, err := svc.Results(chi.URLParam(req, "taskID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"results": views})
	})

	r.Post("/api/cancel/{taskID}", func(w http.ResponseWriter, req *http.Request) {
		if err := svc.Cancel(chi.URLParam(req, "taskID")); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "cancelling"})
	})

	r.Post("/api/filter", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			TaskID string `json:"task_id"`
			research.FilterOptions
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, 400, err)
			return
		}
		views, err := svc.Filter(body.TaskID, body.FilterOptions)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"filtered_results": views})
	})

	r.Get("/api/export/{taskID}", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		var opts *research.FilterOptions
		if q.Get("filtered") == "true" {
			opts = &research.FilterOptions{
				MinAgeDays:    queryInt(q, "min_age_days"),
				MaxAgeDays:    queryInt(q, "max_age_days"),
				MinPerKeyword: queryInt(q, "min_per_keyword"),
			}
		}
		data, contentType, filename, err := svc.Export(chi.URLParam(req, "taskID"), q.Get("format"), opts)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		w.WriteHeader(200)
		w.Write(data)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		srv.Shutdown(shutCtx)
	}()

	slog.Info("domainscout listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server", "error", err)
		os.Exit(1)
	}
}

// researchRequest is the submit payload. Age bounds come in days, with
// *_years accepted as sugar (365 days per year, as the age math rounds).
type researchRequest struct {
	Keywords      []string `json:"keywords"`
	MinAgeDays    int      `json:"min_age_days"`
	MaxAgeDays    int      `json:"max_age_days"`
	MinAgeYears   int      `json:"min_age_years"`
	MaxAgeYears   int      `json:"max_age_years"`
	Limit         int      `json:"limit"`
	MaxPerKeyword int      `json:"max_domains_per_keyword"`
}

func (r researchRequest) criteria() research.Criteria {
	minAge := r.MinAgeDays
	if minAge == 0 && r.MinAgeYears > 0 {
		minAge = r.MinAgeYears * 365
	}
	maxAge := r.MaxAgeDays
	if maxAge == 0 && r.MaxAgeYears > 0 {
		maxAge = r.MaxAgeYears * 365
	}
	return research.Criteria{
		Keywords:      r.Keywords,
		MinAgeDays:    minAge,
		MaxAgeDays:    maxAge,
		Limit:         r.Limit,
		MaxPerKeyword: r.MaxPerKeyword,
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, research.ErrNotFound):
		writeError(w, 404, err)
	case errors.Is(err, research.ErrNotReady):
		writeError(w, 409, err)
	default:
		writeError(w, 400, err)
	}
}

func queryInt(q url.Values, key string) int {
	n, _ := strconv.Atoi(q.Get(key))
	return n
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
