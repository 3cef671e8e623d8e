package model

import "testing"

// TestFileRecord_Address проверяет формирование публичного адреса.
func TestFileRecord_Address(t *testing.T) {
	f := &FileRecord{Prefix: "AbCdEf", Name: "report.txt"}
	if got := f.Address(); got != "AbCdEf/report.txt" {
		t.Errorf("Address = %q, ожидалось %q", got, "AbCdEf/report.txt")
	}
}

// TestFileRecord_WithURL проверяет формирование производной ссылки.
func TestFileRecord_WithURL(t *testing.T) {
	f := &FileRecord{Prefix: "AbCdEf", Name: "report.txt"}

	got := f.WithURL("https://files.example.com")
	if got.URL != "https://files.example.com/AbCdEf/report.txt" {
		t.Errorf("URL = %q", got.URL)
	}

	// Исходная запись не меняется
	if f.URL != "" {
		t.Errorf("исходная запись изменена: URL = %q", f.URL)
	}

	// Завершающий слэш базового URL не дублируется
	got = f.WithURL("https://files.example.com/")
	if got.URL != "https://files.example.com/AbCdEf/report.txt" {
		t.Errorf("URL = %q, слэш продублирован", got.URL)
	}
}

// TestFileRecord_WithURL_Empty проверяет, что без базового URL
// поле url не заполняется.
func TestFileRecord_WithURL_Empty(t *testing.T) {
	f := &FileRecord{Prefix: "AbCdEf", Name: "report.txt"}
	if got := f.WithURL(""); got.URL != "" {
		t.Errorf("URL = %q, ожидалась пустая строка", got.URL)
	}
}

// TestFileRecord_WithURL_Escaping проверяет экранирование имени файла в ссылке.
func TestFileRecord_WithURL_Escaping(t *testing.T) {
	f := &FileRecord{Prefix: "AbCdEf", Name: "annual report 2025.pdf"}
	got := f.WithURL("https://files.example.com")
	want := "https://files.example.com/AbCdEf/annual%20report%202025.pdf"
	if got.URL != want {
		t.Errorf("URL = %q, ожидалось %q", got.URL, want)
	}
}
