package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/project-radar/backend/internal/classifier"
	"github.com/project-radar/backend/internal/config"
	"github.com/project-radar/backend/internal/dedupe"
	"github.com/project-radar/backend/internal/elasticsearch"
	"github.com/project-radar/backend/internal/extractor"
	"github.com/project-radar/backend/internal/logger"
	"github.com/project-radar/backend/internal/notify"
	"github.com/project-radar/backend/internal/pipeline"
)

func main() {
	log := logger.New("agent")
	cfg, err := config.LoadAgent()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	dedupeStore := dedupe.New(cfg.RedisAddr, cfg.ProcessedSetKey)
	defer dedupeStore.Close()

	notifier := notify.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer notifier.Close()

	ext := extractor.New(cfg.SearchURL, cfg.UserAgent, nil)

	srv := &server{
		log: log,
		newRun: func(runLog *slog.Logger) runner {
			// Each run gets a fresh model session; earlier listings in the
			// batch shape later judgments, and the context dies with the run.
			session := classifier.NewSession(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiAPIKey, nil)
			return pipeline.New(pipeline.Deps{
				Extractor:  ext,
				Dedupe:     dedupeStore,
				Classifier: session,
				Results:    esClient,
				Notifier:   notifier,
				BaseURL:    cfg.BaseURL,
				Log:        runLog,
			})
		},
		health: func(ctx context.Context) error {
			if err := dedupeStore.Ping(ctx); err != nil {
				return err
			}
			return esClient.Health(ctx)
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Post("/run", srv.handleRun)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("agent server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

type server struct {
	log    *slog.Logger
	newRun func(runLog *slog.Logger) runner
	health func(ctx context.Context) error
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	runLog := s.log.With(slog.String("run_id", uuid.NewString()))
	runLog.Info("starting agent run")

	report, err := s.newRun(runLog).Run(r.Context())
	if err != nil {
		runLog.Error("run failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: report.Message()})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
