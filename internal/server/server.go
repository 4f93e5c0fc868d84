package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/delinquency/internal/config"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/smallbiznis/delinquency/internal/erpsync"
	"github.com/smallbiznis/delinquency/internal/observability"
	obsmiddleware "github.com/smallbiznis/delinquency/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/delinquency/internal/observability/metrics"
	obstracing "github.com/smallbiznis/delinquency/internal/observability/tracing"
	snapshotdomain "github.com/smallbiznis/delinquency/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(
		func(s *erpsync.Service) SyncTrigger { return s },
		func(r snapshotdomain.Repository) SyncRunLister { return r },
	),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// SyncTrigger starts manual snapshot refreshes.
type SyncTrigger interface {
	Trigger(ctx context.Context, raw string) (erpsync.Services, error)
}

type SyncRunLister interface {
	ListSyncRuns(ctx context.Context, limit int) ([]snapshotdomain.SyncRun, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	delinquencySvc domain.Service
	syncTrigger    SyncTrigger
	syncRuns       SyncRunLister
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	DelinquencySvc domain.Service
	SyncTrigger    SyncTrigger   `optional:"true"`
	SyncRuns       SyncRunLister `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		delinquencySvc: p.DelinquencySvc,
		syncTrigger:    p.SyncTrigger,
		syncRuns:       p.SyncRuns,
	}

	svc.registerFinancialRoutes()
	svc.registerSyncRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerFinancialRoutes() {
	financial := s.engine.Group("/financial")

	financial.GET("/inadiplencia", s.GetDelinquency)
	financial.GET("/detalhes", s.GetDetails)
	financial.GET("/report", s.GetReport)
	financial.GET("/report/export", s.ExportReport)
}

func (s *Server) registerSyncRoutes() {
	s.engine.POST("/sync", s.TriggerSync)
	s.engine.GET("/sync/runs", s.ListSyncRuns)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
