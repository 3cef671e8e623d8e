// Пакет model — доменные модели fileshare.
// FileRecord — маппинг таблицы files (метаданные загруженного файла).
package model

import (
	"net/url"
	"strings"
	"time"
)

// FileRecord — запись файла в таблице files.
// Все поля неизменяемы после создания: записи создаются при загрузке
// и удаляются целиком, обновлений нет.
type FileRecord struct {
	// ID — UUID записи, генерируется при загрузке. Адресация удаления.
	ID string `json:"id"`
	// RemoteID — идентификатор объекта в удалённом хранилище.
	RemoteID string `json:"remoteId"`
	// Prefix — 6 случайных латинских букв. Вместе с Name образует
	// публичный адрес файла {prefix}/{name}.
	Prefix string `json:"prefix"`
	// Name — оригинальное имя файла, как его прислал загрузивший.
	Name string `json:"name"`
	// Size — размер файла в байтах.
	Size int64 `json:"size"`
	// MimeType — MIME-тип содержимого.
	MimeType string `json:"mimeType"`
	// Checksum — SHA-256 контрольная сумма содержимого (hex).
	Checksum string `json:"checksum"`
	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"createdAt"`
	// URL — производный публичный URL. Заполняется только если задан
	// базовый URL сервера, в БД не хранится.
	URL string `json:"url,omitempty"`
}

// Address возвращает публичный адрес файла в форме prefix/name.
func (f *FileRecord) Address() string {
	return f.Prefix + "/" + f.Name
}

// WithURL возвращает копию записи с заполненным полем URL.
// baseURL — базовый URL сервера; пустая строка — URL не заполняется.
// Имя файла кодируется по правилам path-сегмента URL.
func (f *FileRecord) WithURL(baseURL string) *FileRecord {
	out := *f
	if baseURL != "" {
		out.URL = strings.TrimRight(baseURL, "/") + "/" + f.Prefix + "/" + url.PathEscape(f.Name)
	}
	return &out
}
