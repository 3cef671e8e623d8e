// Точка входа fileshare — сервиса загрузки и раздачи файлов
// по коротким публичным адресам.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gofileshare/internal/api/handlers"
	"github.com/bigkaa/gofileshare/internal/api/middleware"
	"github.com/bigkaa/gofileshare/internal/config"
	"github.com/bigkaa/gofileshare/internal/database"
	"github.com/bigkaa/gofileshare/internal/drive"
	"github.com/bigkaa/gofileshare/internal/repository"
	"github.com/bigkaa/gofileshare/internal/server"
	"github.com/bigkaa/gofileshare/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("fileshare запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	ctx := context.Background()

	// 3. Миграции и подключение к PostgreSQL
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4. Клиент удалённого объектного хранилища
	driveClient, err := drive.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Репозиторий, кэш и координатор файлов
	fileRepo := repository.NewFileRepository(pool)
	cache := service.NewCacheService(
		cfg.CacheLookupSize, cfg.CacheLookupTTL,
		cfg.CacheListSize, cfg.CacheListTTL,
	)
	fileService := service.NewFileService(fileRepo, driveClient, cache, cfg.ServerURL, logger)

	// 6. topologymetrics — мониторинг зависимостей.
	// PostgreSQL проверяется через существующий pgxpool (адаптер stdlib).
	sqlDB := stdlib.OpenDBFromPool(pool)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"fileshare",
		cfg.DephealthGroup,
		sqlDB,
		cfg.DatabaseDSN(),
		driveClient.HealthURL(),
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 7. Handlers
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		drive.NewReadinessChecker(driveClient),
	)
	apiHandler := handlers.NewAPIHandler(
		fileService,
		healthHandler,
		cfg.UploadMaxSize,
		cfg.DownloadBuffered,
		logger,
	)

	// 8. JWT middleware (bearer-токены внешнего сервиса авторизации)
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWKSURL,
		cfg.JWKSCACertPath,
		cfg.JWTIssuer,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка инициализации JWT аутентификации", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSURL))

	// 9. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler,
		jwtAuth.Middleware(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Остановка фоновых процессов ---
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("fileshare остановлен")
}
