package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dash-audio-server/internal/catalog"
	"dash-audio-server/internal/dash"
	"dash-audio-server/internal/platform/config"
	"dash-audio-server/internal/platform/logger"
	"dash-audio-server/internal/platform/metrics"
	"dash-audio-server/internal/scanner"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.EnsureDirectories(); err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	cfg.CheckTools(log)

	store, err := catalog.OpenSQLite(cfg.CatalogDB)
	if err != nil {
		log.Error("open catalog", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	met := metrics.New()
	statuses := dash.NewInMemoryStatusStore()
	encoder := dash.NewFFmpegEncoder(cfg.FFmpegPath, cfg.DashDir, cfg.AudioBitrate, cfg.SegmentDuration, logger.Component(log, "encoder"))
	svc := dash.NewService(store, statuses, encoder, cfg.DashDir, logger.Component(log, "orchestrator"), met)

	pool := dash.NewWorkerPool(cfg.MaxWorkers, cfg.QueueSize, cfg.Attempts, cfg.RetryDelay,
		svc.ExecuteConversion, logger.Component(log, "workers"))
	svc.SetSubmitter(pool)

	prober := scanner.NewFFprobeProber(cfg.FFprobePath)
	scan := scanner.New(store, prober, cfg.MusicDir, cfg.AllowedExts, logger.Component(log, "scanner"))

	sweeper := dash.NewSweeper(svc, cfg.SweepInterval, cfg.StuckAfter, logger.Component(log, "sweeper"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	go sweeper.Run(ctx)

	h := dash.NewHandler(svc, scan, cfg.DashDir, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(logger.CORS())
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() { met.SetProcessingTracks(svc.ProcessingCount()) }).ServeHTTP(w, req)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"music_dir", cfg.MusicDir,
		"dash_dir", cfg.DashDir,
		"workers", cfg.MaxWorkers,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	cancel()
	pool.Stop()

	log.Info("server stopped")
}
