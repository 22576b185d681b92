package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/coauthor/internal/config"
	"github.com/xxxsen/coauthor/internal/handler"
	"github.com/xxxsen/coauthor/internal/job"
	"github.com/xxxsen/coauthor/internal/metrics"
	"github.com/xxxsen/coauthor/internal/middleware"
	"github.com/xxxsen/coauthor/internal/notify"
	"github.com/xxxsen/coauthor/internal/schedule"
	"github.com/xxxsen/coauthor/internal/service"
)

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.String("audit_spec", cfg.Audit.Spec),
	)

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	publisher, err := newPublisher(cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	versions := service.NewVersionStore(st.articles, st.users)
	collaboration := service.NewCollaborationService(st.articles, st.collaborators, st.users, publisher, collector)
	articles := service.NewArticleService(versions, collaboration, st.users, publisher, collector)

	deps := handler.RouterDeps{
		Articles:       handler.NewArticleHandler(articles),
		Versions:       handler.NewVersionHandler(articles),
		Collaborators:  handler.NewCollaboratorHandler(collaboration),
		JWTSecret:      []byte(cfg.JWTSecret),
		WriteRateLimit: time.Duration(cfg.WriteRateLimitMS) * time.Millisecond,
		Metrics:        metrics.Handler(registry),
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
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

	if cfg.Audit.Spec != "" {
		scheduler := schedule.NewCronScheduler()
		if err := scheduler.AddJob(job.NewConsistencyAuditJob(st.checker, collector), cfg.Audit.Spec); err != nil {
			return fmt.Errorf("schedule consistency audit: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func newPublisher(cfg config.RedisConfig) (notify.Publisher, error) {
	if cfg.Addr == "" {
		return notify.NewNoopPublisher(), nil
	}
	publisher, err := notify.NewRedisPublisher(notify.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Channel:  cfg.Channel,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis publisher: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("publishing events to redis",
		zap.String("addr", cfg.Addr),
		zap.String("channel", publisher.Channel()),
	)
	return publisher, nil
}
