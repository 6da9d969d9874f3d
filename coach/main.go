package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"essaycoach/coach/agents/configs"
	"essaycoach/coach/agents/core"
	"essaycoach/coach/config"
	"essaycoach/coach/controllers"
	"essaycoach/coach/routes"
	"essaycoach/coach/services/export"
	"essaycoach/coach/services/llm"
	"essaycoach/coach/session"
	"essaycoach/coach/sources/psql"
	"essaycoach/coach/sources/psql/dao"
	"essaycoach/coach/sources/storage"
	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/logging"
	"essaycoach/coach/utils/telemetry"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)
	defer logging.Sync()

	if cfg.JWTSecret == "" {
		logging.ErrorLogger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	// base outlives requests; it bounds every session's keep-alive task
	base, stop := context.WithCancel(context.Background())
	defer stop()

	ctx, cancel := context.WithTimeout(base, 10*time.Second)
	defer cancel()

	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.Init(ctx, cfg.LogDir)
		if err != nil {
			logging.ErrorLogger.Error("telemetry init error", zap.Error(err))
			os.Exit(1)
		}
		defer shutdown()
	}

	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	userDAO := dao.NewUserDAO(db.DB)
	exportDAO := dao.NewChatExportDAO(db.DB)

	minioClient, err := storage.NewMinIOClient(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("minio connection error", zap.Error(err))
		os.Exit(1)
	}

	client, err := llm.New(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("llm backend error", zap.Error(err))
		os.Exit(1)
	}
	profile, err := configs.LoadProfile(cfg.TutorProfile)
	if err != nil {
		logging.ErrorLogger.Error("tutor profile error", zap.Error(err))
		os.Exit(1)
	}
	annotator, err := transcript.NewAnnotator(cfg.Timezone, nil)
	if err != nil {
		logging.ErrorLogger.Error("timezone error", zap.String("zone", cfg.Timezone), zap.Error(err))
		os.Exit(1)
	}

	sessions := session.NewManager(base, cfg.KeepAliveInterval)
	// a session nobody has used for a token lifetime can never be reached again
	go sessions.RunReaper(base, time.Minute, cfg.TokenTTL)
	exporter := export.New(minioClient, annotator, cfg.ExportDir, cfg.ExportKeepLocal)
	tutor := core.NewTutor(client, exporter, profile, annotator, sessions).
		WithRecorder(core.NewDBRecorder(userDAO, exportDAO))

	handler := routes.NewRouter(routes.Deps{
		Auth:     controllers.NewAuthController(userDAO, tutor, cfg),
		Chat:     controllers.NewChatController(tutor, userDAO, exportDAO),
		User:     controllers.NewUserController(userDAO, exportDAO),
		Health:   controllers.NewHealthController(sessions),
		Secret:   cfg.JWTSecret,
		Sessions: sessions,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.AppLogger.Info("server listening", zap.String("addr", srv.Addr), zap.String("provider", cfg.LLMProvider))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
		}
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	sessions.Shutdown(shutdownCtx)
	logging.AppLogger.Info("server shutdown complete")
}
