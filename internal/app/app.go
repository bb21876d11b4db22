// Package app 组装两个二进制共用的依赖：DB、缓存、JWT、服务。
package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"team-visualizer/internal/core/auth"
	"team-visualizer/internal/core/cache"
	"team-visualizer/internal/core/config"
	"team-visualizer/internal/core/database"
	"team-visualizer/internal/repo"
	"team-visualizer/internal/service"
)

type App struct {
	Cfg    *config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	Cache  *cache.Cache
	JWT    *auth.JWTer
	Users  *service.UserService
	Ledger *service.LedgerService
}

// Build 打开数据库（可选自动迁移）、连接缓存并构建服务
func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is empty")
	}
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db); err != nil {
		return nil, err
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := repo.Migrate(db); err != nil {
			return nil, err
		}
		l.Info("automigrate done")
	}

	c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := c.Ping(ctx); err != nil {
		// 缓存不可用不阻止启动，直接回源
		l.Warn("redis unavailable, cache disabled", zap.Error(err))
		_ = c.Close()
		c = nil
	}

	users := repo.NewUserRepo(db)
	a := &App{
		Cfg:   cfg,
		Log:   l,
		DB:    db,
		Cache: c,
		JWT: &auth.JWTer{
			Secret: []byte(cfg.JWT.Secret),
			Issuer: cfg.JWT.Issuer,
			TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
		},
		Users: service.NewUserService(users, c,
			time.Duration(cfg.Ledger.TeamCacheTTLSec)*time.Second, cfg.Auth.BootstrapAdmins, l),
		Ledger: service.NewLedgerService(db, users, repo.NewHourRepo(db),
			service.WithLedgerCache(c, time.Duration(cfg.Ledger.HistoryCacheTTLSec)*time.Second),
			service.WithLedgerLogger(l)),
	}
	return a, nil
}

// Ready 健康检查
func (a *App) Ready(ctx context.Context) error {
	if err := database.Ping(ctx, a.DB); err != nil {
		return err
	}
	return a.Cache.Ping(ctx)
}

func (a *App) Close() {
	_ = a.Cache.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
