package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gofileshare/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, remote_id, prefix, name, size, mime_type, checksum, created_at`

// ListParams — параметры фильтрованного списка файлов.
// Все фильтры — указатели, nil = фильтр не применяется.
type ListParams struct {
	// Prefix — фильтр по началу публичного префикса
	Prefix *string
	// Name — фильтр по началу имени файла
	Name *string
	// MinSize — минимальный размер файла, байт (включительно)
	MinSize *int64
	// MaxSize — максимальный размер файла, байт (включительно)
	MaxSize *int64
	// MimeType — точное совпадение MIME-типа
	MimeType *string
	// CreatedFrom — записи, созданные не раньше указанного времени
	CreatedFrom *time.Time
	// CreatedTo — записи, созданные не позже указанного времени
	CreatedTo *time.Time
	// Limit — количество результатов
	Limit int
	// Offset — смещение
	Offset int
}

// FileRepository — интерфейс доступа к записям файлов в таблице files.
type FileRepository interface {
	// Create сохраняет новую запись файла.
	Create(ctx context.Context, record *model.FileRecord) error
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// GetByAddress возвращает первую запись с указанным публичным адресом.
	// Уникальность (prefix, name) не гарантируется схемой — берётся
	// детерминированное первое совпадение.
	GetByAddress(ctx context.Context, prefix, name string) (*model.FileRecord, error)
	// ExistsByAddress проверяет наличие хотя бы одной записи с адресом.
	ExistsByAddress(ctx context.Context, prefix, name string) (bool, error)
	// List возвращает записи по фильтрам с пагинацией.
	// Отсутствие совпадений — пустой срез, не ошибка.
	List(ctx context.Context, params ListParams) ([]*model.FileRecord, error)
	// DeleteByID удаляет запись по UUID. ErrNotFound, если записи нет.
	DeleteByID(ctx context.Context, id string) error
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// Create сохраняет новую запись файла.
func (r *fileRepo) Create(ctx context.Context, record *model.FileRecord) error {
	query := `
		INSERT INTO files (id, remote_id, prefix, name, size, mime_type, checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.RemoteID, record.Prefix, record.Name,
		record.Size, record.MimeType, record.Checksum, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

// GetByID возвращает запись по UUID или ErrNotFound.
func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.RemoteID, &f.Prefix, &f.Name,
		&f.Size, &f.MimeType, &f.Checksum, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// GetByAddress возвращает первую запись с адресом (prefix, name) или ErrNotFound.
// LIMIT 1 с сортировкой по created_at: при дубликатах адреса выбор детерминирован.
func (r *fileRepo) GetByAddress(ctx context.Context, prefix, name string) (*model.FileRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM files WHERE prefix = $1 AND name = $2 ORDER BY created_at, id LIMIT 1`,
		fileColumns,
	)

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, prefix, name).Scan(
		&f.ID, &f.RemoteID, &f.Prefix, &f.Name,
		&f.Size, &f.MimeType, &f.Checksum, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла по адресу: %w", err)
	}
	return f, nil
}

// ExistsByAddress проверяет наличие записи с адресом (prefix, name).
func (r *fileRepo) ExistsByAddress(ctx context.Context, prefix, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM files WHERE prefix = $1 AND name = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, prefix, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки адреса: %w", err)
	}
	return exists, nil
}

// List возвращает записи по фильтрам с пагинацией.
// Сортировка фиксированная: created_at DESC, id — детерминированный порядок
// для корректного сравнения кэшированных и живых результатов.
func (r *fileRepo) List(ctx context.Context, params ListParams) ([]*model.FileRecord, error) {
	where, args := buildListWhere(params, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(
		`SELECT %s FROM files %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		fileColumns, where, argNum, argNum+1,
	)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка списка файлов: %w", err)
	}
	defer rows.Close()

	result := []*model.FileRecord{}
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.RemoteID, &f.Prefix, &f.Name,
			&f.Size, &f.MimeType, &f.Checksum, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}

// DeleteByID удаляет запись по UUID.
func (r *fileRepo) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// buildListWhere строит WHERE-условие и аргументы для списка файлов.
// startArg — номер первого $-параметра (для корректной нумерации).
func buildListWhere(params ListParams, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Фильтр по началу префикса
	if params.Prefix != nil && *params.Prefix != "" {
		conditions = append(conditions, fmt.Sprintf("prefix LIKE $%d", argNum))
		args = append(args, escapeLike(*params.Prefix)+"%")
		argNum++
	}

	// Фильтр по началу имени файла
	if params.Name != nil && *params.Name != "" {
		conditions = append(conditions, fmt.Sprintf("name LIKE $%d", argNum))
		args = append(args, escapeLike(*params.Name)+"%")
		argNum++
	}

	// Фильтр по минимальному размеру
	if params.MinSize != nil {
		conditions = append(conditions, fmt.Sprintf("size >= $%d", argNum))
		args = append(args, *params.MinSize)
		argNum++
	}

	// Фильтр по максимальному размеру
	if params.MaxSize != nil {
		conditions = append(conditions, fmt.Sprintf("size <= $%d", argNum))
		args = append(args, *params.MaxSize)
		argNum++
	}

	// Фильтр по MIME-типу (exact match)
	if params.MimeType != nil && *params.MimeType != "" {
		conditions = append(conditions, fmt.Sprintf("mime_type = $%d", argNum))
		args = append(args, *params.MimeType)
		argNum++
	}

	// Фильтр по времени создания (не раньше)
	if params.CreatedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *params.CreatedFrom)
		argNum++
	}

	// Фильтр по времени создания (не позже)
	if params.CreatedTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argNum))
		args = append(args, *params.CreatedTo)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// escapeLike экранирует спецсимволы LIKE в пользовательском вводе,
// чтобы фильтр работал как prefix-match, а не как шаблон.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
