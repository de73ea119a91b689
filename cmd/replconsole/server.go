package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/replconsole/internal/config"
	"github.com/xxxsen/replconsole/internal/db"
	"github.com/xxxsen/replconsole/internal/evaluator"
	"github.com/xxxsen/replconsole/internal/handler"
	"github.com/xxxsen/replconsole/internal/job"
	"github.com/xxxsen/replconsole/internal/middleware"
	"github.com/xxxsen/replconsole/internal/repo"
	"github.com/xxxsen/replconsole/internal/schedule"
	"github.com/xxxsen/replconsole/internal/service"
	"github.com/xxxsen/replconsole/internal/session"
	"github.com/xxxsen/replconsole/web"
)

func runServer(cfg *config.Config) error {
	logger := logutil.GetLogger(context.Background())
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("evaluator", cfg.Evaluator.Name),
		zap.String("result_mode", cfg.Session.ResultMode),
		zap.Bool("transcript", cfg.Transcript.Enabled),
	)

	resultHandler, err := session.ResultHandlerFor(cfg.Session.ResultMode)
	if err != nil {
		return err
	}
	// Build one boundary up front so a bad evaluator block fails at startup
	// instead of on every page load.
	if _, err := evaluator.New(cfg.Evaluator.Name, cfg.Evaluator.Data, evaluator.Streams{}); err != nil {
		return fmt.Errorf("init evaluator: %w", err)
	}

	var sessionRepo *repo.SessionRepo
	var transcriptRepo *repo.TranscriptRepo
	scheduler := schedule.NewCronScheduler()
	if cfg.Transcript.Enabled {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer conn.Close()
		if err := db.ApplyMigrations(conn); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		sessionRepo = repo.NewSessionRepo(conn)
		transcriptRepo = repo.NewTranscriptRepo(conn)
		cleanup := job.NewTranscriptCleanupJob(sessionRepo, transcriptRepo, time.Duration(cfg.Transcript.RetentionHours)*time.Hour)
		if err := scheduler.AddJob(cleanup, cfg.Transcript.CleanupSpec); err != nil {
			return fmt.Errorf("schedule transcript cleanup: %w", err)
		}
	}

	console := service.NewConsoleService(service.ConsoleOptions{
		Evaluator:     cfg.Evaluator.Name,
		EvaluatorArgs: cfg.Evaluator.Data,
		Echo:          cfg.Session.EchoEnabled(),
		ResultHandler: resultHandler,
		QueueSize:     cfg.Session.QueueSize,
		OutputLimit:   cfg.Session.OutputLimit,
		MaxSessions:   cfg.Session.MaxSessions,
		IdleTTL:       time.Duration(cfg.Session.IdleTTLSeconds) * time.Second,
	}, sessionRepo, transcriptRepo)

	page, err := handler.NewPageHandler(web.Static())
	if err != nil {
		return err
	}
	deps := handler.RouterDeps{
		Console:    handler.NewConsoleHandler(console, time.Duration(cfg.Session.SubmitTimeout)*time.Second),
		Properties: handler.NewPropertiesHandler(cfg.Properties, cfg.Evaluator.Name),
		Page:       page,
		OpenWindow: time.Duration(cfg.RateLimitMs) * time.Millisecond,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := engine.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	<-gctx.Done()
	logger.Info("server stopping...")
	scheduler.Stop()
	console.Shutdown()
	if ctx.Err() == nil {
		return g.Wait()
	}
	return nil
}
