// files.go — FileService, координирующее ядро fileshare.
// Композиция трёх внешних слоёв: удалённое объектное хранилище (байты),
// PostgreSQL (метаданные) и TTL-кэш. Пайплайны: загрузка, lookup по
// публичному адресу, streaming download, фильтрованные списки,
// удаление по id — с поддержанием консистентности кэша на всех путях записи.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofileshare/internal/domain/model"
	"github.com/bigkaa/gofileshare/internal/drive"
	"github.com/bigkaa/gofileshare/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrValidation — некорректные данные загрузки.
	ErrValidation = errors.New("некорректные данные загрузки")
)

// Prometheus-метрики FileService.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_uploads_total",
		Help: "Общее количество загрузок файлов (по статусу).",
	}, []string{"status"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_upload_bytes_total",
		Help: "Общее количество загруженных байт.",
	})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_deletes_total",
		Help: "Общее количество удалений файлов (по статусу).",
	}, []string{"status"})

	prefixCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_prefix_collisions_total",
		Help: "Количество перегенераций публичного префикса из-за коллизии адреса.",
	})

	lazyCleanupTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_lazy_cleanup_total",
		Help: "Количество обнаружений записи без объекта в удалённом хранилище.",
	})
)

// Константы генерации публичного префикса.
const (
	prefixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	prefixLength   = 6
	// prefixMaxAttempts — попытки генерации при коллизии адреса.
	prefixMaxAttempts = 5
)

// Префиксы ключей кэша по namespace.
const (
	lookupKeyPrefix = "lookup:"
	listKeyPrefix   = "list:"
)

// RemoteStore — операции удалённого объектного хранилища,
// используемые координатором. Реализуется *drive.Client.
type RemoteStore interface {
	// Create загружает содержимое и возвращает идентификатор объекта.
	Create(ctx context.Context, r io.Reader, size int64, mimeType, name string) (string, error)
	// ReadStream открывает одноразовый поток чтения объекта.
	ReadStream(ctx context.Context, remoteID string) (io.ReadCloser, error)
	// Delete удаляет объект.
	Delete(ctx context.Context, remoteID string) error
}

// UploadInput — входные данные одной загрузки.
// Явная структурная форма file handle: источник байт, размер,
// оригинальное имя, MIME-тип.
type UploadInput struct {
	// Reader — источник байт; вычитывается полностью ровно один раз.
	Reader io.Reader
	// Size — размер содержимого в байтах.
	Size int64
	// Name — оригинальное имя файла.
	Name string
	// MimeType — MIME-тип; пустая строка — application/octet-stream.
	MimeType string
}

// FileService — координирующее ядро: загрузка, lookup, download,
// списки и удаление файлов с поддержанием консистентности кэша.
// Конкурентные вызовы независимы; разделяемое состояние — только кэш.
type FileService struct {
	repo      repository.FileRepository
	store     RemoteStore
	cache     *CacheService
	serverURL string
	logger    *slog.Logger
}

// NewFileService создаёт координатор файлов.
// serverURL — публичный базовый URL для производных ссылок
// (пустая строка — поле url в записях не заполняется).
func NewFileService(
	repo repository.FileRepository,
	store RemoteStore,
	cache *CacheService,
	serverURL string,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		repo:      repo,
		store:     store,
		cache:     cache,
		serverURL: serverURL,
		logger:    logger.With(slog.String("component", "file_service")),
	}
}

// Upload выполняет полный пайплайн загрузки одного файла.
//
// Пайплайн:
//  1. Валидация входных данных
//  2. Загрузка содержимого в удалённое хранилище (SHA-256 считается на лету)
//  3. Генерация публичного префикса (с повтором при коллизии адреса)
//  4. Сохранение записи метаданных в PostgreSQL
//  5. Инвалидация кэша: негативная запись нового адреса + все списки
//
// Запись в БД не создаётся, если удалённая загрузка не удалась.
// Если не удалась запись в БД — удалённый объект удаляется best-effort;
// ошибка компенсации логируется как рассинхронизация.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (*model.FileRecord, error) {
	if err := validateUpload(in); err != nil {
		uploadsTotal.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	// SHA-256 содержимого считается по мере передачи в хранилище
	hasher := sha256.New()
	tee := io.TeeReader(in.Reader, hasher)

	remoteID, err := s.store.Create(ctx, tee, in.Size, mimeType, in.Name)
	if err != nil {
		uploadsTotal.WithLabelValues("store_error").Inc()
		// Ошибка провайдера уходит наверх без преобразования
		return nil, err
	}

	prefix, err := s.generatePrefix(ctx, in.Name)
	if err != nil {
		s.compensateRemote(ctx, remoteID)
		uploadsTotal.WithLabelValues("db_error").Inc()
		return nil, err
	}

	record := &model.FileRecord{
		ID:        uuid.NewString(),
		RemoteID:  remoteID,
		Prefix:    prefix,
		Name:      in.Name,
		Size:      in.Size,
		MimeType:  mimeType,
		Checksum:  hex.EncodeToString(hasher.Sum(nil)),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.compensateRemote(ctx, remoteID)
		uploadsTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("сохранение записи файла: %w", err)
	}

	// Свежесозданный адрес мог быть закэширован как отсутствующий —
	// негативная запись не должна маскировать новый файл.
	s.cache.DeleteLookup(lookupKey(record.Prefix, record.Name))
	// Новый файл может попадать под любые фильтры списков
	s.cache.InvalidateLists(listKeyPrefix)

	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytesTotal.Add(float64(in.Size))

	s.logger.Info("Файл загружен",
		slog.String("id", record.ID),
		slog.String("address", record.Address()),
		slog.Int64("size", record.Size),
		slog.String("mime_type", record.MimeType),
	)

	return record.WithURL(s.serverURL), nil
}

// GetByAddress возвращает запись файла по публичному адресу (prefix, name).
// Порядок: позитивный кэш → негативный кэш → PostgreSQL.
// Промах БД записывается в негативный кэш, попадание — в позитивный.
func (s *FileService) GetByAddress(ctx context.Context, prefix, name string) (*model.FileRecord, error) {
	key := lookupKey(prefix, name)

	if record, negative, ok := s.cache.GetLookup(key); ok {
		if negative {
			// Подтверждённое отсутствие: в БД не ходим
			return nil, ErrNotFound
		}
		return record, nil
	}

	record, err := s.repo.GetByAddress(ctx, prefix, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.cache.SetNegative(key)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла по адресу: %w", err)
	}

	s.cache.SetLookup(key, record)
	return record, nil
}

// OpenDownload резолвит запись по публичному адресу и открывает
// streaming-чтение содержимого из удалённого хранилища.
// Возвращённый поток одноразовый; закрыть его обязан вызывающий код.
// Запись содержит заявленные size и mimeType для заголовков ответа.
//
// Если объект отсутствует в хранилище при живой записи метаданных
// (рассинхронизация после частичного удаления), точечный кэш
// инвалидируется и возвращается ErrNotFound.
func (s *FileService) OpenDownload(ctx context.Context, prefix, name string) (io.ReadCloser, *model.FileRecord, error) {
	record, err := s.GetByAddress(ctx, prefix, name)
	if err != nil {
		return nil, nil, err
	}

	stream, err := s.store.ReadStream(ctx, record.RemoteID)
	if err != nil {
		if drive.IsNotFound(err) {
			lazyCleanupTotal.Inc()
			s.cache.DeleteLookup(lookupKey(prefix, name))
			s.logger.Warn("Запись метаданных без объекта в хранилище",
				slog.String("id", record.ID),
				slog.String("remote_id", record.RemoteID),
				slog.String("address", record.Address()),
			)
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	return stream, record, nil
}

// List возвращает записи по фильтрам через кэш списков.
// Ключ кэша — детерминированная сериализация фильтра (revalidate не входит).
// revalidate удаляет кэшированную запись до read-through.
func (s *FileService) List(ctx context.Context, params repository.ListParams, revalidate bool) ([]*model.FileRecord, error) {
	key := listKey(params)

	if revalidate {
		s.cache.DeleteList(key)
	}

	if files, ok := s.cache.GetList(key); ok {
		return s.withURLs(files), nil
	}

	files, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("список файлов: %w", err)
	}

	s.cache.SetList(key, files)
	return s.withURLs(files), nil
}

// DeleteByID удаляет файл: объект в хранилище, запись в БД, записи кэша.
//
// Порядок:
//  1. Запись по id (ErrNotFound, если нет — без побочных эффектов)
//  2. Удаление объекта из хранилища ("не найдено" — не фатально,
//     прочие ошибки провайдера прерывают операцию до удаления записи)
//  3. Удаление записи из БД
//  4. Инвалидация точечного кэша адреса и всех кэшей списков
//
// Возвращает последние известные значения удалённой записи.
func (s *FileService) DeleteByID(ctx context.Context, id string) (*model.FileRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			deletesTotal.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		deletesTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("получение записи файла: %w", err)
	}

	if err := s.store.Delete(ctx, record.RemoteID); err != nil {
		if !drive.IsNotFound(err) {
			deletesTotal.WithLabelValues("store_error").Inc()
			return nil, err
		}
		// Объекта уже нет — удаление идемпотентно с точки зрения вызывающего
		s.logger.Debug("Объект уже отсутствует в хранилище",
			slog.String("id", record.ID),
			slog.String("remote_id", record.RemoteID),
		)
	}

	if err := s.repo.DeleteByID(ctx, record.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		// Объект в хранилище уже удалён, запись осталась — рассинхронизация
		s.logger.Error("Запись файла не удалена после удаления объекта",
			slog.String("id", record.ID),
			slog.String("remote_id", record.RemoteID),
			slog.String("error", err.Error()),
		)
		deletesTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("удаление записи файла: %w", err)
	}

	s.cache.DeleteLookup(lookupKey(record.Prefix, record.Name))
	s.cache.InvalidateLists(listKeyPrefix)

	deletesTotal.WithLabelValues("success").Inc()

	s.logger.Info("Файл удалён",
		slog.String("id", record.ID),
		slog.String("address", record.Address()),
	)

	return record.WithURL(s.serverURL), nil
}

// --- Вспомогательные функции ---

// validateUpload проверяет структурную корректность входных данных загрузки.
func validateUpload(in UploadInput) error {
	if in.Reader == nil {
		return fmt.Errorf("%w: отсутствует источник байт", ErrValidation)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: отсутствует имя файла", ErrValidation)
	}
	if strings.Contains(in.Name, "/") {
		return fmt.Errorf("%w: имя файла не может содержать '/'", ErrValidation)
	}
	if in.Size < 0 {
		return fmt.Errorf("%w: отрицательный размер", ErrValidation)
	}
	return nil
}

// generatePrefix генерирует публичный префикс [a-zA-Z]{6}.
// Коллизия адреса (prefix, name) приводит к перегенерации,
// до prefixMaxAttempts попыток; при исчерпании используется
// последний сгенерированный (контракт для неколлидирующего
// случая не меняется, вероятность исчезающе мала).
func (s *FileService) generatePrefix(ctx context.Context, name string) (string, error) {
	var prefix string
	for attempt := 0; attempt < prefixMaxAttempts; attempt++ {
		p, err := randomPrefix()
		if err != nil {
			return "", fmt.Errorf("генерация префикса: %w", err)
		}
		prefix = p

		exists, err := s.repo.ExistsByAddress(ctx, prefix, name)
		if err != nil {
			return "", fmt.Errorf("проверка коллизии адреса: %w", err)
		}
		if !exists {
			return prefix, nil
		}

		prefixCollisionsTotal.Inc()
		s.logger.Warn("Коллизия публичного адреса, перегенерация префикса",
			slog.String("prefix", prefix),
			slog.String("name", name),
			slog.Int("attempt", attempt+1),
		)
	}
	return prefix, nil
}

// randomPrefix возвращает prefixLength случайных латинских букв (crypto/rand).
func randomPrefix() (string, error) {
	b := make([]byte, prefixLength)
	max := big.NewInt(int64(len(prefixAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = prefixAlphabet[n.Int64()]
	}
	return string(b), nil
}

// compensateRemote удаляет удалённый объект после неудачного сохранения
// метаданных. Best-effort: ошибка компенсации только логируется —
// осиротевший объект остаётся в хранилище.
func (s *FileService) compensateRemote(ctx context.Context, remoteID string) {
	if err := s.store.Delete(ctx, remoteID); err != nil && !drive.IsNotFound(err) {
		s.logger.Error("Компенсационное удаление объекта не удалось, объект осиротел",
			slog.String("remote_id", remoteID),
			slog.String("error", err.Error()),
		)
	}
}

// withURLs возвращает копии записей с заполненным полем URL.
// Кэш хранит записи без URL: базовый URL — конфигурация процесса,
// а не свойство данных.
func (s *FileService) withURLs(files []*model.FileRecord) []*model.FileRecord {
	out := make([]*model.FileRecord, len(files))
	for i, f := range files {
		out[i] = f.WithURL(s.serverURL)
	}
	return out
}

// lookupKey — ключ точечного кэша для публичного адреса.
func lookupKey(prefix, name string) string {
	return lookupKeyPrefix + prefix + "/" + name
}

// listKey — детерминированная сериализация фильтра списка.
// Кодирование инъективно: значения фильтров проходят URL-encoding,
// поэтому пользовательский ввод с разделителями не может схлопнуть
// разные фильтры в один ключ. Незаданный фильтр (nil) в ключ не входит
// и отличим от заданного пустого или нулевого значения.
// Поле revalidate в ключ не входит.
func listKey(p repository.ListParams) string {
	v := url.Values{}
	if p.Prefix != nil {
		v.Set("prefix", *p.Prefix)
	}
	if p.Name != nil {
		v.Set("name", *p.Name)
	}
	if p.MinSize != nil {
		v.Set("min_size", strconv.FormatInt(*p.MinSize, 10))
	}
	if p.MaxSize != nil {
		v.Set("max_size", strconv.FormatInt(*p.MaxSize, 10))
	}
	if p.MimeType != nil {
		v.Set("mime_type", *p.MimeType)
	}
	if p.CreatedFrom != nil {
		v.Set("created_from", p.CreatedFrom.UTC().Format(time.RFC3339Nano))
	}
	if p.CreatedTo != nil {
		v.Set("created_to", p.CreatedTo.UTC().Format(time.RFC3339Nano))
	}
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("offset", strconv.Itoa(p.Offset))
	// Encode сортирует ключи — сериализация детерминирована
	return listKeyPrefix + v.Encode()
}
