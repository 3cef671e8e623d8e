// Пакет service — бизнес-логика fileshare.
// CacheService — TTL-кэш метаданных файлов в двух namespace:
// точечные запросы по адресу (включая негативные записи — подтверждённое
// отсутствие) и результаты списков. Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofileshare/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_cache_hits_total",
		Help: "Общее количество попаданий в кэш метаданных.",
	}, []string{"cache"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_cache_misses_total",
		Help: "Общее количество промахов кэша метаданных.",
	}, []string{"cache"})
	cacheListInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_cache_list_invalidations_total",
		Help: "Количество массовых инвалидаций кэша списков.",
	})
)

// Имена namespace в метриках.
const (
	cacheNameLookup = "lookup"
	cacheNameList   = "list"
)

// lookupEntry — запись точечного кэша: найденная запись
// или маркер подтверждённого отсутствия (negative).
type lookupEntry struct {
	record   *model.FileRecord
	negative bool
}

// CacheService — in-memory TTL-кэш метаданных.
// Кэш не авторитетен: источник истины — PostgreSQL. Каждый экземпляр
// сервиса имеет собственный кэш (per-instance, без распределённости).
// TTL у namespace разные: точечные записи живут дольше, списки короче.
type CacheService struct {
	lookup *expirable.LRU[string, lookupEntry]
	list   *expirable.LRU[string, []*model.FileRecord]
}

// NewCacheService создаёт кэш с указанными размерами и TTL по namespace.
func NewCacheService(lookupSize int, lookupTTL time.Duration, listSize int, listTTL time.Duration) *CacheService {
	return &CacheService{
		lookup: expirable.NewLRU[string, lookupEntry](lookupSize, nil, lookupTTL),
		list:   expirable.NewLRU[string, []*model.FileRecord](listSize, nil, listTTL),
	}
}

// GetLookup возвращает запись точечного кэша по ключу.
// Возвращает (запись, negative, ok): при ok и negative запись отсутствует
// в хранилище (подтверждённый miss, в БД ходить не нужно).
func (c *CacheService) GetLookup(key string) (record *model.FileRecord, negative, ok bool) {
	entry, ok := c.lookup.Get(key)
	if !ok {
		cacheMissesTotal.WithLabelValues(cacheNameLookup).Inc()
		return nil, false, false
	}
	cacheHitsTotal.WithLabelValues(cacheNameLookup).Inc()
	return entry.record, entry.negative, true
}

// SetLookup добавляет или обновляет позитивную запись точечного кэша.
func (c *CacheService) SetLookup(key string, record *model.FileRecord) {
	c.lookup.Add(key, lookupEntry{record: record})
}

// SetNegative записывает маркер подтверждённого отсутствия.
func (c *CacheService) SetNegative(key string) {
	c.lookup.Add(key, lookupEntry{negative: true})
}

// DeleteLookup удаляет запись точечного кэша (инвалидация).
func (c *CacheService) DeleteLookup(key string) {
	c.lookup.Remove(key)
}

// GetList возвращает кэшированный результат списка по ключу.
func (c *CacheService) GetList(key string) ([]*model.FileRecord, bool) {
	files, ok := c.list.Get(key)
	if !ok {
		cacheMissesTotal.WithLabelValues(cacheNameList).Inc()
		return nil, false
	}
	cacheHitsTotal.WithLabelValues(cacheNameList).Inc()
	return files, true
}

// SetList кэширует результат списка.
func (c *CacheService) SetList(key string, files []*model.FileRecord) {
	c.list.Add(key, files)
}

// DeleteList удаляет одну запись кэша списков (revalidate).
func (c *CacheService) DeleteList(key string) {
	c.list.Remove(key)
}

// InvalidateLists удаляет все записи кэша списков, чей ключ начинается
// с указанного префикса. Линейный проход по всем ключам namespace —
// O(количества записей), приемлемо при ожидаемых размерах кэша.
// Возвращает количество удалённых записей.
func (c *CacheService) InvalidateLists(keyPrefix string) int {
	removed := 0
	for _, key := range c.list.Keys() {
		if strings.HasPrefix(key, keyPrefix) {
			c.list.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		cacheListInvalidations.Inc()
	}
	return removed
}
