package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"facturacion-service/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CatalogoKey es la clave del catálogo completo de productos.
const CatalogoKey = "productos"

const redisPrefix = "facturacion:catalogo:"

var ErrCacheMiss = errors.New("catálogo no encontrado en caché")

// CacheStats estadísticas del caché
type CacheStats struct {
	Hits          int64
	Misses        int64
	TotalRequests int64
	TotalKeys     int
	L2Enabled     bool
}

// HitRate devuelve la proporción de hits, 0 si no hubo consultas.
func (s CacheStats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalRequests)
}

type entradaL1 struct {
	snapshot *models.CatalogoSnapshot
	expira   time.Time
}

// CatalogCache implementa caché multi-nivel para el catálogo de productos
type CatalogCache struct {
	// L1 Cache: memoria local
	l1Cache map[string]entradaL1
	l1Mutex sync.RWMutex

	// L2 Cache: Redis, opcional
	redisClient *redis.Client

	maxL1Size int
	ttl       time.Duration
	now       func() time.Time

	logger *zap.Logger

	statsMutex sync.RWMutex
	hits       int64
	misses     int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCatalogCache crea el caché. Con redisClient nil funciona sólo en memoria.
func NewCatalogCache(redisClient *redis.Client, maxL1Size int, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if maxL1Size <= 0 {
		maxL1Size = 1
	}
	cc := &CatalogCache{
		l1Cache:     make(map[string]entradaL1),
		redisClient: redisClient,
		maxL1Size:   maxL1Size,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger,
		stop:        make(chan struct{}),
	}

	go cc.cleanupL1Cache()

	return cc
}

// Close detiene la limpieza periódica del L1.
func (cc *CatalogCache) Close() {
	cc.stopOnce.Do(func() { close(cc.stop) })
}

// GetStats retorna estadísticas del caché
func (cc *CatalogCache) GetStats() CacheStats {
	cc.statsMutex.RLock()
	defer cc.statsMutex.RUnlock()

	cc.l1Mutex.RLock()
	totalKeys := len(cc.l1Cache)
	cc.l1Mutex.RUnlock()

	return CacheStats{
		Hits:          cc.hits,
		Misses:        cc.misses,
		TotalRequests: cc.hits + cc.misses,
		TotalKeys:     totalKeys,
		L2Enabled:     cc.redisClient != nil,
	}
}

// Get busca el catálogo en L1 y después en Redis.
func (cc *CatalogCache) Get(ctx context.Context, key string) (*models.CatalogoSnapshot, error) {
	start := time.Now()

	if snap := cc.getFromL1(key); snap != nil {
		cc.recordHit()
		cc.logger.Debug("L1 cache hit",
			zap.String("key", key),
			zap.Duration("latency", time.Since(start)))
		return snap, nil
	}

	if snap, err := cc.getFromL2(ctx, key); err == nil && snap != nil {
		cc.setToL1(key, snap)
		cc.recordHit()
		cc.logger.Debug("L2 cache hit",
			zap.String("key", key),
			zap.Duration("latency", time.Since(start)))
		return snap, nil
	} else if err != nil && !errors.Is(err, redis.Nil) && !errors.Is(err, ErrCacheMiss) {
		cc.logger.Warn("Error leyendo catálogo de Redis", zap.String("key", key), zap.Error(err))
	}

	cc.recordMiss()
	cc.logger.Debug("Cache miss",
		zap.String("key", key),
		zap.Duration("latency", time.Since(start)))

	return nil, ErrCacheMiss
}

// Set almacena el catálogo en ambos niveles
func (cc *CatalogCache) Set(ctx context.Context, key string, snap *models.CatalogoSnapshot) error {
	cc.setToL1(key, snap)
	return cc.setToL2(ctx, key, snap)
}

// Invalidate borra el catálogo de ambos niveles. Se llama cuando cambia el
// stock, por ejemplo al crear o anular una factura.
func (cc *CatalogCache) Invalidate(ctx context.Context, key string) error {
	cc.l1Mutex.Lock()
	delete(cc.l1Cache, key)
	cc.l1Mutex.Unlock()

	if cc.redisClient == nil {
		return nil
	}
	if err := cc.redisClient.Del(ctx, redisPrefix+key).Err(); err != nil {
		return fmt.Errorf("invalidar catálogo en Redis: %w", err)
	}
	return nil
}

func (cc *CatalogCache) recordHit() {
	cc.statsMutex.Lock()
	cc.hits++
	cc.statsMutex.Unlock()
}

func (cc *CatalogCache) recordMiss() {
	cc.statsMutex.Lock()
	cc.misses++
	cc.statsMutex.Unlock()
}

func (cc *CatalogCache) getFromL1(key string) *models.CatalogoSnapshot {
	cc.l1Mutex.RLock()
	defer cc.l1Mutex.RUnlock()

	e, ok := cc.l1Cache[key]
	if !ok || (cc.ttl > 0 && !cc.now().Before(e.expira)) {
		return nil
	}
	return e.snapshot
}

func (cc *CatalogCache) setToL1(key string, snap *models.CatalogoSnapshot) {
	cc.l1Mutex.Lock()
	defer cc.l1Mutex.Unlock()

	if _, ok := cc.l1Cache[key]; !ok && len(cc.l1Cache) >= cc.maxL1Size {
		cc.evictOldest()
	}

	cc.l1Cache[key] = entradaL1{snapshot: snap, expira: cc.now().Add(cc.ttl)}
}

// evictOldest elimina la entrada que vence primero. Requiere l1Mutex tomado.
func (cc *CatalogCache) evictOldest() {
	var (
		victima string
		primera time.Time
	)
	for key, e := range cc.l1Cache {
		if victima == "" || e.expira.Before(primera) {
			victima, primera = key, e.expira
		}
	}
	delete(cc.l1Cache, victima)
}

func (cc *CatalogCache) getFromL2(ctx context.Context, key string) (*models.CatalogoSnapshot, error) {
	if cc.redisClient == nil {
		return nil, ErrCacheMiss
	}
	data, err := cc.redisClient.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		return nil, err
	}

	var snap models.CatalogoSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decodificar catálogo cacheado: %w", err)
	}
	return &snap, nil
}

func (cc *CatalogCache) setToL2(ctx context.Context, key string, snap *models.CatalogoSnapshot) error {
	if cc.redisClient == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return cc.redisClient.Set(ctx, redisPrefix+key, data, cc.ttl).Err()
}

// cleanupL1Cache descarta periódicamente las entradas vencidas del L1
func (cc *CatalogCache) cleanupL1Cache() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-cc.stop:
			return
		case <-ticker.C:
			cc.purgeExpired()
		}
	}
}

func (cc *CatalogCache) purgeExpired() int {
	if cc.ttl <= 0 {
		return 0
	}
	cc.l1Mutex.Lock()
	defer cc.l1Mutex.Unlock()

	ahora := cc.now()
	borradas := 0
	for key, e := range cc.l1Cache {
		if !ahora.Before(e.expira) {
			delete(cc.l1Cache, key)
			borradas++
		}
	}
	if borradas > 0 {
		cc.logger.Debug("L1 cache cleanup", zap.Int("borradas", borradas), zap.Int("items", len(cc.l1Cache)))
	}
	return borradas
}
