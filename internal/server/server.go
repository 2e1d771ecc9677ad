package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rfidtrack/internal/audit"
	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	"github.com/smallbiznis/rfidtrack/internal/catalog"
	catalogdomain "github.com/smallbiznis/rfidtrack/internal/catalog/domain"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/smallbiznis/rfidtrack/internal/export"
	"github.com/smallbiznis/rfidtrack/internal/labelprint"
	"github.com/smallbiznis/rfidtrack/internal/observability"
	obsmiddleware "github.com/smallbiznis/rfidtrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rfidtrack/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rfidtrack/internal/observability/tracing"
	"github.com/smallbiznis/rfidtrack/internal/ratelimit"
	"github.com/smallbiznis/rfidtrack/internal/tag"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"github.com/smallbiznis/rfidtrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	labelprint.Module,
	tag.Module,
	audit.Module,
	catalog.Module,
	ratelimit.Module,
	export.Module,
	fx.Invoke(NewServer),
	fx.Invoke(serveHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

const shutdownGrace = 10 * time.Second

// serveHTTP binds the listener during start so a taken port fails the app
// instead of a background goroutine.
func serveHTTP(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	tagSvc     tagdomain.Service
	auditSvc   auditdomain.Service
	catalogSvc catalogdomain.Service
	exportSvc  *export.Service
	limiter    *ratelimit.WriteLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	TagSvc     tagdomain.Service
	AuditSvc   auditdomain.Service
	CatalogSvc catalogdomain.Service
	ExportSvc  *export.Service         `optional:"true"`
	Limiter    *ratelimit.WriteLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		tagSvc:     p.TagSvc,
		auditSvc:   p.AuditSvc,
		catalogSvc: p.CatalogSvc,
		exportSvc:  p.ExportSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerHealthRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", s.Health)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.APIKeyRequired())

	// -------- Tags --------
	api.GET("/tags/by-tid", s.GetTagByTagID)
	api.GET("/tags/by-label", s.GetTagByLabel)
	api.GET("/tags/by-epc", s.GetTagByEPC)
	api.GET("/tags/changes", s.ListChangedTags)
	api.GET("/tags/changes/export", s.ExportChangedTags)
	api.POST("/tags/changes/archive", s.WriteRateLimit(), s.ArchiveChangedTags)
	api.GET("/tags/:tag_id/history", s.GetTagHistory)

	api.POST("/tags/register", s.WriteRateLimit(), s.RegisterTag)
	api.POST("/tags/verify", s.WriteRateLimit(), s.VerifyTag)
	api.PATCH("/tags/:tag_id", s.WriteRateLimit(), s.UpdateTag)
	api.POST("/tags/:tag_id/audited", s.WriteRateLimit(), s.MarkTagAudited)
	api.POST("/tags/:tag_id/deregister", s.WriteRateLimit(), s.DeregisterTag)
	api.POST("/tags/:tag_id/reuse", s.WriteRateLimit(), s.ReuseTag)

	// -------- Audits --------
	api.GET("/audits", s.ListAudits)
	api.GET("/audits/:id", s.GetAuditByID)
	api.GET("/audits/:id/label.pdf", s.RenderAuditLabel)
	api.POST("/audits/:id/printed", s.WriteRateLimit(), s.MarkAuditPrinted)

	// -------- BOM --------
	api.GET("/bom/items", s.SuggestBOMItems)
	api.GET("/bom/all-items-lite", s.ListBOMItems)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// Health reports ok only when the store answers a ping.
func (s *Server) Health(c *gin.Context) {
	if err := db.Ping(c.Request.Context(), s.db, s.cfg.Timeouts.Connect); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "db": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "db": "ok"})
}
