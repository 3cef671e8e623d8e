package drive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bigkaa/gofileshare/internal/config"
)

// fakeS3 — минимальный S3-совместимый сервер для unit-тестов:
// HEAD bucket, PUT/GET/DELETE объектов, XML-ошибка NoSuchKey.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		// /{bucket}/{object}
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)

		switch {
		case r.Method == http.MethodGet && r.URL.Query().Has("location"):
			// GetBucketLocation — minio-go запрашивает регион перед
			// первой операцией с bucket.
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></LocationConstraint>`)

		case r.Method == http.MethodHead && (len(parts) == 1 || parts[1] == ""):
			// BucketExists
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodHead && len(parts) == 2:
			// StatObject
			data, ok := f.objects[parts[1]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
			w.Header().Set("ETag", `"fake-etag"`)
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodPut && len(parts) == 2:
			var body []byte
			if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
				body, _ = decodeAWSChunked(r.Body)
			} else {
				body, _ = io.ReadAll(r.Body)
			}
			f.objects[parts[1]] = body
			w.Header().Set("ETag", `"fake-etag"`)
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodGet && len(parts) == 2:
			data, ok := f.objects[parts[1]]
			if !ok {
				writeNoSuchKey(w, parts[1])
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
			w.Header().Set("ETag", `"fake-etag"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)

		case r.Method == http.MethodDelete && len(parts) == 2:
			delete(f.objects, parts[1])
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	})
}

// decodeAWSChunked снимает aws-chunked обёртку потоковой подписи V4:
// каждый чанк — "<hex-размер>;chunk-signature=...\r\n<данные>\r\n",
// завершается чанком нулевого размера.
func decodeAWSChunked(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var out []byte
	for {
		header, err := br.ReadString('\n')
		if err != nil {
			return out, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(header, "\r\n"), ";")
		size, err := strconv.ParseUint(sizeHex, 16, 63)
		if err != nil {
			return out, err
		}
		if size == 0 {
			return out, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return out, err
		}
		out = append(out, chunk...)
		if _, err := br.Discard(2); err != nil { // завершающий \r\n чанка
			return out, err
		}
	}
}

// writeNoSuchKey возвращает S3 XML-ошибку отсутствия объекта.
func writeNoSuchKey(w http.ResponseWriter, key string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w,
		`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key><RequestId>req-1</RequestId></Error>`,
		key,
	)
}

// newTestClient поднимает fakeS3 и создаёт клиент хранилища поверх него.
func newTestClient(t *testing.T) (*Client, *fakeS3) {
	t.Helper()

	fake := newFakeS3()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("парсинг URL тестового сервера: %v", err)
	}

	cfg := &config.Config{
		StoreEndpoint:  u.Host,
		StoreAccessKey: "test-access",
		StoreSecretKey: "test-secret",
		StoreBucket:    "fileshare-test",
		StoreUseSSL:    false,
	}

	client, err := New(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("создание клиента хранилища: %v", err)
	}
	return client, fake
}

// TestClient_CreateReadDelete проверяет полный цикл: загрузка,
// чтение, удаление объекта.
func TestClient_CreateReadDelete(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	content := "содержимое файла"
	remoteID, err := client.Create(ctx, strings.NewReader(content), int64(len(content)), "text/plain", "a.txt")
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	if remoteID == "" {
		t.Fatal("пустой идентификатор объекта")
	}

	fake.mu.Lock()
	stored, ok := fake.objects[remoteID]
	fake.mu.Unlock()
	if !ok {
		t.Fatalf("объект %q не сохранён на сервере", remoteID)
	}
	if string(stored) != content {
		t.Errorf("сохранено %q, ожидалось %q", stored, content)
	}

	stream, err := client.ReadStream(ctx, remoteID)
	if err != nil {
		t.Fatalf("ReadStream ошибка: %v", err)
	}
	data, err := io.ReadAll(stream)
	stream.Close()
	if err != nil {
		t.Fatalf("чтение потока: %v", err)
	}
	if string(data) != content {
		t.Errorf("прочитано %q, ожидалось %q", data, content)
	}

	if err := client.Delete(ctx, remoteID); err != nil {
		t.Fatalf("Delete ошибка: %v", err)
	}

	fake.mu.Lock()
	_, ok = fake.objects[remoteID]
	fake.mu.Unlock()
	if ok {
		t.Error("объект не удалён с сервера")
	}
}

// TestClient_ReadStream_NotFound проверяет, что отсутствие объекта
// обнаруживается при открытии потока, а не при чтении.
func TestClient_ReadStream_NotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.ReadStream(context.Background(), "missing-object")
	if err == nil {
		t.Fatal("ожидалась ошибка для отсутствующего объекта")
	}

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("err = %v, ожидался *StoreError", err)
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false для %v", err)
	}
	if storeErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, ожидался 404", storeErr.StatusCode)
	}
	if storeErr.Code != "NoSuchKey" {
		t.Errorf("Code = %q, ожидался NoSuchKey", storeErr.Code)
	}
}

// TestIsNotFound проверяет классификацию ошибок хранилища.
func TestIsNotFound(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"обычная ошибка", errors.New("boom"), false},
		{"404", &StoreError{StatusCode: http.StatusNotFound}, true},
		{"NoSuchKey", &StoreError{Code: "NoSuchKey"}, true},
		{"NoSuchBucket", &StoreError{Code: "NoSuchBucket"}, true},
		{"503", &StoreError{StatusCode: http.StatusServiceUnavailable}, false},
		{"транспортная", &StoreError{Message: "connection refused"}, false},
		{"обёрнутая 404", fmt.Errorf("чтение: %w", &StoreError{StatusCode: 404}), true},
	}

	for _, tc := range cases {
		if got := IsNotFound(tc.err); got != tc.want {
			t.Errorf("%s: IsNotFound = %v, ожидалось %v", tc.name, got, tc.want)
		}
	}
}

// TestStoreError_Error проверяет форматирование сообщения об ошибке.
func TestStoreError_Error(t *testing.T) {
	withStatus := &StoreError{StatusCode: 404, Code: "NoSuchKey", Message: "нет объекта"}
	if !strings.Contains(withStatus.Error(), "404") {
		t.Errorf("сообщение %q не содержит статус", withStatus.Error())
	}

	transport := &StoreError{Message: "connection refused"}
	if !strings.Contains(transport.Error(), "connection refused") {
		t.Errorf("сообщение %q не содержит причину", transport.Error())
	}
}
