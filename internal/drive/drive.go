// Пакет drive — привязка к удалённому объектному хранилищу (S3-совместимый API).
// Три операции: загрузка содержимого, streaming-чтение, удаление.
// Все ошибки провайдера переводятся в *StoreError с статусом и сообщением.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bigkaa/gofileshare/internal/config"
)

// StoreError — единая ошибка удалённого хранилища.
// StatusCode и Message — статус и текст ответа провайдера;
// транспортные сбои получают StatusCode = 0.
type StoreError struct {
	// StatusCode — HTTP-статус ответа провайдера (0 — транспортная ошибка)
	StatusCode int
	// Code — S3-код ошибки (NoSuchKey, AccessDenied, ...)
	Code string
	// Message — человекочитаемое описание
	Message string
	// Err — исходная ошибка провайдера
	Err error
}

// Error реализует интерфейс error.
func (e *StoreError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("удалённое хранилище: статус %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("удалённое хранилище: %s", e.Message)
}

// Unwrap возвращает исходную ошибку провайдера.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound сообщает, означает ли ошибка отсутствие объекта в хранилище.
func IsNotFound(err error) bool {
	var se *StoreError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusNotFound ||
		se.Code == "NoSuchKey" || se.Code == "NoSuchBucket"
}

// Client — клиент удалённого объектного хранилища.
// Безопасен для конкурентного использования.
type Client struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New создаёт клиент хранилища и убеждается, что bucket существует
// (создаёт при отсутствии).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(cfg.StoreEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.StoreAccessKey, cfg.StoreSecretKey, ""),
		Secure: cfg.StoreUseSSL,
		Region: cfg.StoreRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("создание клиента хранилища: %w", err)
	}

	c := &Client{
		client: mc,
		bucket: cfg.StoreBucket,
		logger: logger.With(slog.String("component", "drive")),
	}

	exists, err := mc.BucketExists(ctx, cfg.StoreBucket)
	if err != nil {
		return nil, mapError(err, "проверка bucket")
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.StoreBucket, minio.MakeBucketOptions{Region: cfg.StoreRegion}); err != nil {
			return nil, mapError(err, "создание bucket")
		}
		c.logger.Info("Bucket создан", slog.String("bucket", cfg.StoreBucket))
	}

	return c, nil
}

// HealthURL возвращает URL liveness-проверки хранилища (для dephealth).
func (c *Client) HealthURL() string {
	return c.client.EndpointURL().String() + "/minio/health/live"
}

// Create загружает содержимое в хранилище и возвращает идентификатор объекта.
// Входной поток вычитывается полностью. Имя объекта генерируется хранилищем
// (UUID), оригинальное имя и MIME-тип сохраняются в метаданных объекта.
func (c *Client) Create(ctx context.Context, r io.Reader, size int64, mimeType, name string) (string, error) {
	remoteID := uuid.NewString()

	_, err := c.client.PutObject(ctx, c.bucket, remoteID, r, size, minio.PutObjectOptions{
		ContentType: mimeType,
		UserMetadata: map[string]string{
			"original-name": name,
		},
	})
	if err != nil {
		return "", mapError(err, "загрузка объекта")
	}

	c.logger.Debug("Объект загружен",
		slog.String("remote_id", remoteID),
		slog.Int64("size", size),
		slog.String("mime_type", mimeType),
	)

	return remoteID, nil
}

// ReadStream открывает streaming-чтение объекта по идентификатору.
// Возвращаемый поток одноразовый (не перематывается); закрыть его
// обязан вызывающий код. Отсутствие объекта обнаруживается сразу,
// а не при первом чтении.
func (c *Client) ReadStream(ctx context.Context, remoteID string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, remoteID, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "открытие объекта")
	}

	// GetObject ленивый: сам запрос уходит при первом Read.
	// Stat заставляет провайдера ответить сейчас, чтобы отсутствие
	// объекта стало ошибкой открытия, а не ошибкой чтения.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(err, "чтение метаданных объекта")
	}

	return obj, nil
}

// Delete удаляет объект из хранилища.
// Удаление уже отсутствующего объекта у S3-провайдеров проходит без ошибки;
// если провайдер всё же вернул "не найдено", вызывающий код может
// распознать это через IsNotFound и считать операцию успешной.
func (c *Client) Delete(ctx context.Context, remoteID string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, remoteID, minio.RemoveObjectOptions{}); err != nil {
		return mapError(err, "удаление объекта")
	}
	return nil
}

// ReadinessChecker — проверка готовности хранилища для health endpoint.
type ReadinessChecker struct {
	client *Client
}

// NewReadinessChecker создаёт проверку готовности хранилища.
func NewReadinessChecker(client *Client) *ReadinessChecker {
	return &ReadinessChecker{client: client}
}

// CheckReady проверяет доступность bucket.
// Возвращает статус ("ok", "fail") и сообщение.
func (rc *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	exists, err := rc.client.client.BucketExists(ctx, rc.client.bucket)
	if err != nil {
		return "fail", fmt.Sprintf("хранилище недоступно: %v", err)
	}
	if !exists {
		return "fail", fmt.Sprintf("bucket %q не существует", rc.client.bucket)
	}
	return "ok", "bucket доступен"
}

// mapError переводит ошибку minio SDK в *StoreError.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return &StoreError{
			StatusCode: resp.StatusCode,
			Code:       resp.Code,
			Message:    fmt.Sprintf("%s: %s", msg, resp.Message),
			Err:        err,
		}
	}

	// Транспортная ошибка или отмена контекста
	return &StoreError{
		Message: fmt.Sprintf("%s: %v", msg, err),
		Err:     err,
	}
}
