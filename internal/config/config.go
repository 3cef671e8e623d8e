// Пакет config — загрузка и валидация конфигурации fileshare
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации fileshare.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Публичный базовый URL сервера для генерации ссылок на файлы.
	// Пустая строка — поле url в ответах не заполняется.
	ServerURL string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 120s — streaming download)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// --- Удалённое объектное хранилище (S3-совместимое) ---

	// Endpoint хранилища (host:port, без схемы)
	StoreEndpoint string
	// Access key / secret key
	StoreAccessKey string
	StoreSecretKey string
	// Bucket для загружаемых файлов
	StoreBucket string
	// Регион (пустая строка — определяется SDK)
	StoreRegion string
	// TLS при обращении к хранилищу
	StoreUseSSL bool

	// --- Аутентификация (внешний сервис авторизации) ---

	// URL JWKS endpoint внешнего сервиса авторизации
	JWKSURL string
	// Ожидаемый issuer JWT (пустая строка — не проверяется)
	JWTIssuer string
	// Путь к CA-сертификату для TLS к JWKS (опционально)
	JWKSCACertPath string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Scope, требуемый для удаления файлов (пустая строка — достаточно
	// валидного токена)
	DeleteScope string

	// --- Кэш метаданных ---

	// Максимальное количество записей в кэше точечных запросов
	CacheLookupSize int
	// TTL кэша точечных запросов (по умолчанию 5m)
	CacheLookupTTL time.Duration
	// Максимальное количество записей в кэше списков
	CacheListSize int
	// TTL кэша списков (по умолчанию 30s)
	CacheListTTL time.Duration

	// --- Загрузка и скачивание ---

	// Максимальный размер одного загружаемого запроса в байтах (0 — без лимита)
	UploadMaxSize int64
	// Буферизовать скачивание во временный файл (Content-Length в ответе)
	DownloadBuffered bool

	// --- Мониторинг зависимостей ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FS_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("FS_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("FS_PORT: %w", err)
	}

	// FS_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("FS_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("FS_LOG_LEVEL: %w", err)
	}

	// FS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FS_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// FS_SERVER_URL — публичный базовый URL (опционально)
	cfg.ServerURL = os.Getenv("FS_SERVER_URL")

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("FS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("FS_HTTP_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("FS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("FS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("FS_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("FS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FS_DB_PORT: %w", err)
	}
	cfg.DBUser, err = getEnvRequired("FS_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("FS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBName, err = getEnvRequired("FS_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("FS_DB_SSLMODE", "disable")

	// --- Удалённое объектное хранилище ---

	cfg.StoreEndpoint, err = getEnvRequired("FS_STORE_ENDPOINT")
	if err != nil {
		return nil, err
	}
	cfg.StoreAccessKey, err = getEnvRequired("FS_STORE_ACCESS_KEY")
	if err != nil {
		return nil, err
	}
	cfg.StoreSecretKey, err = getEnvRequired("FS_STORE_SECRET_KEY")
	if err != nil {
		return nil, err
	}
	cfg.StoreBucket = getEnvDefault("FS_STORE_BUCKET", "fileshare")
	cfg.StoreRegion = os.Getenv("FS_STORE_REGION")
	cfg.StoreUseSSL, err = getEnvBool("FS_STORE_USE_SSL", false)
	if err != nil {
		return nil, fmt.Errorf("FS_STORE_USE_SSL: %w", err)
	}

	// --- Аутентификация ---

	cfg.JWKSURL, err = getEnvRequired("FS_AUTH_JWKS_URL")
	if err != nil {
		return nil, err
	}
	cfg.JWTIssuer = os.Getenv("FS_AUTH_ISSUER")
	cfg.JWKSCACertPath = os.Getenv("FS_AUTH_CA_CERT_PATH")
	cfg.JWKSClientTimeout, err = getEnvDuration("FS_AUTH_JWKS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_AUTH_JWKS_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("FS_AUTH_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FS_AUTH_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("FS_AUTH_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_AUTH_JWT_LEEWAY: %w", err)
	}
	cfg.DeleteScope = os.Getenv("FS_AUTH_DELETE_SCOPE")

	// --- Кэш метаданных ---
	// Два namespace с разными TTL: точечные запросы живут дольше,
	// списки инвалидируются чаще.

	cfg.CacheLookupSize, err = getEnvInt("FS_CACHE_LOOKUP_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("FS_CACHE_LOOKUP_SIZE: %w", err)
	}
	cfg.CacheLookupTTL, err = getEnvDuration("FS_CACHE_LOOKUP_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FS_CACHE_LOOKUP_TTL: %w", err)
	}
	cfg.CacheListSize, err = getEnvInt("FS_CACHE_LIST_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FS_CACHE_LIST_SIZE: %w", err)
	}
	cfg.CacheListTTL, err = getEnvDuration("FS_CACHE_LIST_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_CACHE_LIST_TTL: %w", err)
	}

	// --- Загрузка и скачивание ---

	cfg.UploadMaxSize, err = getEnvInt64("FS_UPLOAD_MAX_SIZE", 0)
	if err != nil {
		return nil, fmt.Errorf("FS_UPLOAD_MAX_SIZE: %w", err)
	}
	cfg.DownloadBuffered, err = getEnvBool("FS_DOWNLOAD_BUFFERED", true)
	if err != nil {
		return nil, fmt.Errorf("FS_DOWNLOAD_BUFFERED: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("FS_DEPHEALTH_GROUP", "fileshare")
	cfg.DephealthCheckInterval, err = getEnvDuration("FS_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает DSN подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 из переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
