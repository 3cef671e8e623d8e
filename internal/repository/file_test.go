package repository

import (
	"strings"
	"testing"
	"time"
)

// --- Тесты buildListWhere ---

// TestBuildListWhere_Empty проверяет пустые фильтры.
func TestBuildListWhere_Empty(t *testing.T) {
	params := ListParams{}
	where, args := buildListWhere(params, 1)

	if where != "" {
		t.Errorf("where = %q, ожидалась пустая строка", where)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildListWhere_NamePrefixMatch проверяет фильтр по началу имени.
func TestBuildListWhere_NamePrefixMatch(t *testing.T) {
	name := "report"
	params := ListParams{Name: &name}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "name LIKE $1") {
		t.Errorf("where = %q, ожидалось содержание 'name LIKE $1'", where)
	}
	if len(args) != 1 {
		t.Fatalf("args count = %d, ожидался 1", len(args))
	}
	// Prefix-match: % только в конце
	if args[0] != "report%" {
		t.Errorf("args[0] = %v, ожидался 'report%%'", args[0])
	}
}

// TestBuildListWhere_LikeEscaping проверяет экранирование спецсимволов LIKE.
func TestBuildListWhere_LikeEscaping(t *testing.T) {
	name := `100%_done\x`
	params := ListParams{Name: &name}
	_, args := buildListWhere(params, 1)

	if len(args) != 1 {
		t.Fatalf("args count = %d, ожидался 1", len(args))
	}
	want := `100\%\_done\\x%`
	if args[0] != want {
		t.Errorf("args[0] = %v, ожидался %q", args[0], want)
	}
}

// TestBuildListWhere_SizeRange проверяет фильтр по диапазону размера.
func TestBuildListWhere_SizeRange(t *testing.T) {
	minSize := int64(100)
	maxSize := int64(2000)
	params := ListParams{MinSize: &minSize, MaxSize: &maxSize}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "size >= $1") {
		t.Errorf("where = %q, ожидалось 'size >= $1'", where)
	}
	if !strings.Contains(where, "size <= $2") {
		t.Errorf("where = %q, ожидалось 'size <= $2'", where)
	}
	if len(args) != 2 {
		t.Fatalf("args count = %d, ожидался 2", len(args))
	}
	if args[0] != minSize || args[1] != maxSize {
		t.Errorf("args = %v, ожидались [100 2000]", args)
	}
}

// TestBuildListWhere_CreatedRange проверяет фильтр по дате создания.
func TestBuildListWhere_CreatedRange(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	params := ListParams{CreatedFrom: &from, CreatedTo: &to}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "created_at >= $1") {
		t.Errorf("where = %q, ожидалось 'created_at >= $1'", where)
	}
	if !strings.Contains(where, "created_at <= $2") {
		t.Errorf("where = %q, ожидалось 'created_at <= $2'", where)
	}
	if len(args) != 2 {
		t.Errorf("args count = %d, ожидался 2", len(args))
	}
}

// TestBuildListWhere_AllFilters проверяет сквозную нумерацию параметров
// при всех включённых фильтрах.
func TestBuildListWhere_AllFilters(t *testing.T) {
	prefix := "Ab"
	name := "report"
	minSize := int64(1)
	maxSize := int64(100)
	mimeType := "text/plain"
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	params := ListParams{
		Prefix:      &prefix,
		Name:        &name,
		MinSize:     &minSize,
		MaxSize:     &maxSize,
		MimeType:    &mimeType,
		CreatedFrom: &from,
		CreatedTo:   &to,
	}
	where, args := buildListWhere(params, 1)

	if len(args) != 7 {
		t.Fatalf("args count = %d, ожидался 7", len(args))
	}
	if !strings.HasPrefix(where, "WHERE ") {
		t.Errorf("where = %q, ожидалось начало с 'WHERE '", where)
	}
	for i := 1; i <= 7; i++ {
		placeholder := "$" + string(rune('0'+i))
		if !strings.Contains(where, placeholder) {
			t.Errorf("where = %q, отсутствует параметр %s", where, placeholder)
		}
	}
	// mime_type — точное совпадение, не LIKE
	if !strings.Contains(where, "mime_type = $5") {
		t.Errorf("where = %q, ожидалось 'mime_type = $5'", where)
	}
}

// TestBuildListWhere_EmptyStringsIgnored проверяет, что пустые строки
// в фильтрах не попадают в условие.
func TestBuildListWhere_EmptyStringsIgnored(t *testing.T) {
	empty := ""
	params := ListParams{Prefix: &empty, Name: &empty, MimeType: &empty}
	where, args := buildListWhere(params, 1)

	if where != "" {
		t.Errorf("where = %q, ожидалась пустая строка", where)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildListWhere_StartArg проверяет нумерацию с произвольного параметра.
func TestBuildListWhere_StartArg(t *testing.T) {
	name := "a"
	params := ListParams{Name: &name}
	where, _ := buildListWhere(params, 3)

	if !strings.Contains(where, "name LIKE $3") {
		t.Errorf("where = %q, ожидалось 'name LIKE $3'", where)
	}
}

// --- Тесты escapeLike ---

// TestEscapeLike проверяет экранирование спецсимволов шаблона LIKE.
func TestEscapeLike(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
	}

	for _, tc := range cases {
		if got := escapeLike(tc.in); got != tc.want {
			t.Errorf("escapeLike(%q) = %q, ожидалось %q", tc.in, got, tc.want)
		}
	}
}
