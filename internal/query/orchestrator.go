package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/observability/metrics"
	"github.com/yourorg/timetrack/internal/reliability/circuitbreaker"
	"github.com/yourorg/timetrack/internal/reliability/retry"
)

var errCircuitOpen = errors.New("store circuit open")

// Options configures the orchestrator. It is passed explicitly at
// construction; there is no process-wide default instance.
type Options struct {
	StaleTime       time.Duration // window during which a cached read needs no refetch
	CacheIdleTime   time.Duration // idle window after which an entry is evicted
	ReadRetries     int           // extra attempts for reads on transient failure
	MutationRetries int           // extra attempts for mutations on transient failure
	SweepInterval   time.Duration // janitor interval for idle eviction
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{
		StaleTime:       5 * time.Minute,
		CacheIdleTime:   30 * time.Minute,
		ReadRetries:     2,
		MutationRetries: 1,
		SweepInterval:   time.Minute,
	}
}

// Fetcher loads a query result from the remote store
type Fetcher func(ctx context.Context) (any, error)

// Orchestrator is the single point through which reads and writes reach
// the remote store. It memoizes query results in a keyed cache, bounds
// retries, discards superseded in-flight fetches, and invalidates the
// mutated entity namespace on every successful write.
type Orchestrator struct {
	cache   *Cache
	opts    Options
	logger  *slog.Logger
	breaker *circuitbreaker.CircuitBreaker

	mu  sync.Mutex
	gen map[Key]uint64 // latest dispatched fetch generation per key
}

// NewOrchestrator creates an orchestrator with the given options
func NewOrchestrator(opts Options, clock domain.Clock, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.StaleTime <= 0 {
		opts.StaleTime = def.StaleTime
	}
	if opts.CacheIdleTime <= 0 {
		opts.CacheIdleTime = def.CacheIdleTime
	}
	if opts.ReadRetries < 0 {
		opts.ReadRetries = def.ReadRetries
	}
	if opts.MutationRetries < 0 {
		opts.MutationRetries = def.MutationRetries
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = def.SweepInterval
	}

	return &Orchestrator{
		cache:   NewCache(opts.StaleTime, opts.CacheIdleTime, clock),
		opts:    opts,
		logger:  logger,
		breaker: circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		gen:     map[Key]uint64{},
	}
}

// Read resolves a keyed query. A fresh cached value is returned without
// a network round-trip. A stale cached value is returned immediately
// while a background refetch revalidates it. With no cached value, the
// caller blocks until the fetch completes.
func (o *Orchestrator) Read(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	value, fresh, ok := o.cache.Get(key)
	if ok && fresh {
		metrics.ObserveCacheLookup(key.Entity(), "hit")
		return value, nil
	}

	if ok {
		metrics.ObserveCacheLookup(key.Entity(), "stale")
		gen := o.nextGen(key)
		go o.refetch(key, gen, fetch)
		return value, nil
	}

	metrics.ObserveCacheLookup(key.Entity(), "miss")
	gen := o.nextGen(key)
	result, err := o.fetchWithRetry(ctx, key, fetch)
	if err != nil {
		return nil, err
	}
	o.store(key, gen, result)
	return result, nil
}

// Prefetch populates the cache ahead of an anticipated read. Failures
// are logged and swallowed: the cache is left unchanged and the caller
// that triggered the prefetch speculatively never sees the error.
func (o *Orchestrator) Prefetch(ctx context.Context, key Key, fetch Fetcher) {
	if _, fresh, ok := o.cache.Get(key); ok && fresh {
		return
	}
	gen := o.nextGen(key)
	result, err := o.fetchWithRetry(ctx, key, fetch)
	if err != nil {
		o.logger.Warn("prefetch failed",
			slog.String("key", string(key)),
			slog.String("error", err.Error()),
		)
		return
	}
	o.store(key, gen, result)
}

// Mutate runs a write against the remote store, bounded to the mutation
// retry count on transient failure, and invalidates the mutated
// entity's cache namespace on success.
func (o *Orchestrator) Mutate(ctx context.Context, entity, op string, fn func(ctx context.Context) error) error {
	if !o.breaker.AllowRequest() {
		return &domain.TransientError{Op: op, Err: errCircuitOpen}
	}

	_, err := retry.Do(ctx, 1+o.opts.MutationRetries, o.logger, op,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
	if err != nil {
		if domain.IsTransient(err) {
			o.breaker.RecordFailure()
		}
		return err
	}

	o.breaker.RecordSuccess()
	o.InvalidateEntity(entity)
	return nil
}

// InvalidateEntity drops every cached result in an entity namespace.
// Conservative: any write to an entity clears all of its queries.
func (o *Orchestrator) InvalidateEntity(entity string) {
	removed := o.cache.Invalidate(EntityPrefix(entity))
	metrics.ObserveCacheInvalidation(entity, removed)
	o.logger.Debug("cache invalidated",
		slog.String("entity", entity),
		slog.Int("removed", removed),
	)
}

// StartJanitor runs periodic idle eviction until the context is
// cancelled. Intended to be launched once by the hosting application.
func (o *Orchestrator) StartJanitor(ctx context.Context) {
	ticker := time.NewTicker(o.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ObserveCacheEvictions(o.cache.Sweep())
		}
	}
}

// CacheLen reports the number of live cache entries
func (o *Orchestrator) CacheLen() int {
	return o.cache.Len()
}

// refetch revalidates a stale entry in the background. The result is
// only stored if no newer fetch for the same key was dispatched in the
// meantime (last-dispatched-wins).
func (o *Orchestrator) refetch(key Key, gen uint64, fetch Fetcher) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := o.fetchWithRetry(ctx, key, fetch)
	if err != nil {
		o.logger.Warn("background refetch failed",
			slog.String("key", string(key)),
			slog.String("error", err.Error()),
		)
		return
	}
	o.store(key, gen, result)
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	if !o.breaker.AllowRequest() {
		return nil, &domain.TransientError{Op: "read " + string(key), Err: errCircuitOpen}
	}

	result, err := retry.Do(ctx, 1+o.opts.ReadRetries, o.logger, "read "+string(key), retry.Retryable[any](fetch))
	if err != nil {
		if domain.IsTransient(err) {
			o.breaker.RecordFailure()
		}
		return nil, err
	}
	o.breaker.RecordSuccess()
	return result, nil
}

// nextGen bumps and returns the dispatch generation for a key
func (o *Orchestrator) nextGen(key Key) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen[key]++
	return o.gen[key]
}

// store writes a fetch result into the cache unless a newer fetch for
// the same key has been dispatched since.
func (o *Orchestrator) store(key Key, gen uint64, value any) {
	o.mu.Lock()
	superseded := o.gen[key] != gen
	o.mu.Unlock()

	if superseded {
		o.logger.Debug("discarding superseded fetch result", slog.String("key", string(key)))
		return
	}
	o.cache.Set(key, value)
}
