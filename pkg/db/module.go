package db

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/rfidtrack/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(NewConfig),
	fx.Provide(New),
)

// New opens the pool, installs tracing and pool metrics plugins and closes
// the pool when the app stops.
func New(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	gormLogCfg := obslogger.DefaultGormLoggerConfig()
	gormLogCfg.Base = log.Named("gorm")
	if cfg.SlowQuery > 0 {
		gormLogCfg.SlowThreshold = cfg.SlowQuery
	}
	// Lock waits are bounded by the write timeout, warn at half of it.
	if cfg.WriteTimeout > 0 {
		gormLogCfg.LockSlowThreshold = cfg.WriteTimeout / 2
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: obslogger.NewGormLogger(gormLogCfg),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Name))); err != nil {
		return nil, err
	}

	promCfg := gormprometheus.Config{
		DBName:          cfg.Name,
		RefreshInterval: 15,
	}
	if cfg.Type == "mysql" {
		promCfg.MetricsCollector = []gormprometheus.MetricsCollector{
			&gormprometheus.MySQL{VariableNames: []string{"Threads_running", "Innodb_row_lock_waits"}},
		}
	}
	if err := conn.Use(gormprometheus.New(promCfg)); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := Ping(ctx, conn, cfg.ConnectTimeout); err != nil {
				log.Warn("database not reachable at startup", zap.String("type", cfg.Type), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sqlDB.Close()
		},
	})

	return conn, nil
}
