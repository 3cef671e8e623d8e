// list.go — обработчик GET /api/v1/list.
// Парсинг query-параметров фильтра, валидация, вызов сервисного слоя
// (через кэш списков), сериализация ответа.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apierrors "github.com/bigkaa/gofileshare/internal/api/errors"
	"github.com/bigkaa/gofileshare/internal/domain/model"
	"github.com/bigkaa/gofileshare/internal/repository"
)

// listResponse — ответ GET /api/v1/list.
type listResponse struct {
	Files  []*model.FileRecord `json:"files"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// HandleList — реализация GET /api/v1/list.
//
// Query-параметры:
//   - prefix, name, mime_type — строковые фильтры (частичное совпадение)
//   - min_size, max_size — границы размера в байтах
//   - created_from, created_to — границы даты создания (RFC3339)
//   - limit, offset — пагинация
//   - revalidate — при true кэшированный результат этого фильтра
//     сбрасывается до чтения из БД
func (h *APIHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	params, revalidate, err := parseListQuery(r.URL.Query())
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	files, err := h.files.List(r.Context(), params, revalidate)
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении списка файлов")
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Files:  files,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}

// parseListQuery разбирает и валидирует query-параметры списка.
func parseListQuery(q url.Values) (repository.ListParams, bool, error) {
	var params repository.ListParams

	params.Prefix = strParam(q, "prefix")
	params.Name = strParam(q, "name")
	params.MimeType = strParam(q, "mime_type")

	var err error
	if params.MinSize, err = int64Param(q, "min_size"); err != nil {
		return params, false, err
	}
	if params.MaxSize, err = int64Param(q, "max_size"); err != nil {
		return params, false, err
	}
	if params.CreatedFrom, err = timeParam(q, "created_from"); err != nil {
		return params, false, err
	}
	if params.CreatedTo, err = timeParam(q, "created_to"); err != nil {
		return params, false, err
	}

	limit, err := intParam(q, "limit")
	if err != nil {
		return params, false, err
	}
	offset, err := intParam(q, "offset")
	if err != nil {
		return params, false, err
	}
	params.Limit, params.Offset = paginationDefaults(limit, offset)

	if err := validateListParams(params); err != nil {
		return params, false, err
	}

	revalidate := false
	if v := q.Get("revalidate"); v != "" {
		revalidate, err = strconv.ParseBool(v)
		if err != nil {
			return params, false, errors.New("revalidate должен быть булевым значением")
		}
	}

	return params, revalidate, nil
}

// validateListParams проверяет согласованность фильтров.
func validateListParams(p repository.ListParams) error {
	if p.MinSize != nil && *p.MinSize < 0 {
		return errors.New("min_size не может быть отрицательным")
	}
	if p.MaxSize != nil && *p.MaxSize < 0 {
		return errors.New("max_size не может быть отрицательным")
	}
	if p.MinSize != nil && p.MaxSize != nil && *p.MinSize > *p.MaxSize {
		return errors.New("min_size не может быть больше max_size")
	}
	if p.CreatedFrom != nil && p.CreatedTo != nil && p.CreatedFrom.After(*p.CreatedTo) {
		return errors.New("created_from не может быть позже created_to")
	}
	return nil
}

// --- Парсинг отдельных query-параметров ---

func strParam(q url.Values, name string) *string {
	if !q.Has(name) {
		return nil
	}
	v := q.Get(name)
	if v == "" {
		return nil
	}
	return &v
}

func intParam(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(name + " должен быть целым числом")
	}
	return &n, nil
}

func int64Param(q url.Values, name string) (*int64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, errors.New(name + " должен быть целым числом")
	}
	return &n, nil
}

func timeParam(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.New(name + " должен быть датой в формате RFC3339")
	}
	return &t, nil
}
