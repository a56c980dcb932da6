package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"vdchat/application/ports"

	"go.uber.org/zap"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// Cacheable is implemented by queries whose results may be cached. NewResult
// returns a pointer of the type the handler produces so a cached JSON value
// can be decoded into it.
type Cacheable interface {
	Query
	CacheKey() string
	NewResult() interface{}
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers map[reflect.Type]QueryHandler
	mu       sync.RWMutex
}

// NewQueryBus creates a new query bus
func NewQueryBus() *QueryBus {
	return &QueryBus{
		handlers: make(map[reflect.Type]QueryHandler),
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for query type %s", t.Name())
	}

	b.handlers[t] = handler
	return nil
}

// Ask validates a query and dispatches it to its handler. Validation and
// handler errors are returned unwrapped so their type survives.
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no handler registered for query type %T", query)
	}

	return handler.Handle(ctx, query)
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// CacheMetrics receives cache hit and miss counts
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// CachingMiddleware adds caching to query handlers. Cache failures are logged
// and never fail the query.
type CachingMiddleware struct {
	cache   ports.Cache
	ttl     time.Duration
	metrics CacheMetrics
	logger  *zap.Logger
}

// NewCachingMiddleware creates a new caching middleware. metrics may be nil.
func NewCachingMiddleware(cache ports.Cache, ttl time.Duration, metrics CacheMetrics, logger *zap.Logger) *CachingMiddleware {
	return &CachingMiddleware{
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a query handler with caching
func (m *CachingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		cacheable, ok := query.(Cacheable)
		if !ok {
			return next.Handle(ctx, query)
		}

		cacheKey := cacheable.CacheKey()
		dest := cacheable.NewResult()
		found, err := m.cache.Get(ctx, cacheKey, dest)
		if err != nil {
			m.logger.Warn("Cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
		if found {
			m.recordHit()
			return dest, nil
		}
		m.recordMiss()

		result, err := next.Handle(ctx, query)
		if err != nil {
			return nil, err
		}

		if err := m.cache.Set(ctx, cacheKey, result, m.ttl); err != nil {
			m.logger.Warn("Cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
		return result, nil
	})
}

func (m *CachingMiddleware) recordHit() {
	if m.metrics != nil {
		m.metrics.RecordCacheHit()
	}
}

func (m *CachingMiddleware) recordMiss() {
	if m.metrics != nil {
		m.metrics.RecordCacheMiss()
	}
}
