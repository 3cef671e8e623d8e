package handlers

import (
	"net/url"
	"testing"
)

// --- Тесты parseListQuery ---

// TestParseListQuery_Empty проверяет значения по умолчанию.
func TestParseListQuery_Empty(t *testing.T) {
	params, revalidate, err := parseListQuery(url.Values{})
	if err != nil {
		t.Fatalf("parseListQuery ошибка: %v", err)
	}

	if params.Prefix != nil || params.Name != nil || params.MimeType != nil {
		t.Error("строковые фильтры должны быть nil при пустом запросе")
	}
	if params.MinSize != nil || params.MaxSize != nil {
		t.Error("фильтры размера должны быть nil при пустом запросе")
	}
	if params.Limit != 100 {
		t.Errorf("Limit = %d, ожидался 100", params.Limit)
	}
	if params.Offset != 0 {
		t.Errorf("Offset = %d, ожидался 0", params.Offset)
	}
	if revalidate {
		t.Error("revalidate = true, ожидался false по умолчанию")
	}
}

// TestParseListQuery_AllFilters проверяет разбор всех фильтров.
func TestParseListQuery_AllFilters(t *testing.T) {
	q := url.Values{}
	q.Set("prefix", "Ab")
	q.Set("name", "report")
	q.Set("mime_type", "text/plain")
	q.Set("min_size", "100")
	q.Set("max_size", "2000")
	q.Set("created_from", "2025-06-01T00:00:00Z")
	q.Set("created_to", "2025-07-01T00:00:00Z")
	q.Set("limit", "50")
	q.Set("offset", "10")
	q.Set("revalidate", "true")

	params, revalidate, err := parseListQuery(q)
	if err != nil {
		t.Fatalf("parseListQuery ошибка: %v", err)
	}

	if params.Prefix == nil || *params.Prefix != "Ab" {
		t.Errorf("Prefix = %v, ожидался 'Ab'", params.Prefix)
	}
	if params.Name == nil || *params.Name != "report" {
		t.Errorf("Name = %v, ожидался 'report'", params.Name)
	}
	if params.MimeType == nil || *params.MimeType != "text/plain" {
		t.Errorf("MimeType = %v, ожидался 'text/plain'", params.MimeType)
	}
	if params.MinSize == nil || *params.MinSize != 100 {
		t.Errorf("MinSize = %v, ожидался 100", params.MinSize)
	}
	if params.MaxSize == nil || *params.MaxSize != 2000 {
		t.Errorf("MaxSize = %v, ожидался 2000", params.MaxSize)
	}
	if params.CreatedFrom == nil || params.CreatedFrom.UTC().Format("2006-01-02") != "2025-06-01" {
		t.Errorf("CreatedFrom = %v, ожидался 2025-06-01", params.CreatedFrom)
	}
	if params.Limit != 50 {
		t.Errorf("Limit = %d, ожидался 50", params.Limit)
	}
	if params.Offset != 10 {
		t.Errorf("Offset = %d, ожидался 10", params.Offset)
	}
	if !revalidate {
		t.Error("revalidate = false, ожидался true")
	}
}

// TestParseListQuery_Invalid проверяет отказ на некорректных параметрах.
func TestParseListQuery_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"нечисловой min_size", "min_size", "abc"},
		{"нечисловой limit", "limit", "ten"},
		{"некорректная дата", "created_from", "01.06.2025"},
		{"некорректный revalidate", "revalidate", "yes-please"},
	}

	for _, tc := range cases {
		q := url.Values{}
		q.Set(tc.key, tc.value)
		if _, _, err := parseListQuery(q); err == nil {
			t.Errorf("%s: ожидалась ошибка", tc.name)
		}
	}
}

// TestParseListQuery_Inconsistent проверяет согласованность фильтров.
func TestParseListQuery_Inconsistent(t *testing.T) {
	q := url.Values{}
	q.Set("min_size", "2000")
	q.Set("max_size", "100")
	if _, _, err := parseListQuery(q); err == nil {
		t.Error("ожидалась ошибка: min_size > max_size")
	}

	q = url.Values{}
	q.Set("min_size", "-1")
	if _, _, err := parseListQuery(q); err == nil {
		t.Error("ожидалась ошибка: отрицательный min_size")
	}

	q = url.Values{}
	q.Set("created_from", "2025-07-01T00:00:00Z")
	q.Set("created_to", "2025-06-01T00:00:00Z")
	if _, _, err := parseListQuery(q); err == nil {
		t.Error("ожидалась ошибка: created_from позже created_to")
	}
}

// TestPaginationDefaults проверяет нормализацию пагинации.
func TestPaginationDefaults(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	cases := []struct {
		name       string
		limit      *int
		offset     *int
		wantLimit  int
		wantOffset int
	}{
		{"nil значения", nil, nil, 100, 0},
		{"в пределах", intPtr(50), intPtr(10), 50, 10},
		{"limit ниже минимума", intPtr(0), nil, 1, 0},
		{"limit выше максимума", intPtr(5000), nil, 1000, 0},
		{"отрицательный offset", nil, intPtr(-5), 100, 0},
	}

	for _, tc := range cases {
		l, o := paginationDefaults(tc.limit, tc.offset)
		if l != tc.wantLimit || o != tc.wantOffset {
			t.Errorf("%s: (%d, %d), ожидалось (%d, %d)", tc.name, l, o, tc.wantLimit, tc.wantOffset)
		}
	}
}
