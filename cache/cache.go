package cache

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-dbcache/logger"
	"github.com/agentuity/go-dbcache/rowstore"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// Provenance tells the caller where the value returned by Get came from.
type Provenance int

const (
	// FromCache means the stored value was fresh and was decoded and returned.
	FromCache Provenance = iota
	// FreshlyComputed means the accessor ran during the call and its result
	// was written to the store.
	FreshlyComputed
)

func (p Provenance) String() string {
	switch p {
	case FromCache:
		return "cache"
	case FreshlyComputed:
		return "live"
	default:
		return "unknown"
	}
}

// Accessor produces the value for a key when the stored entry is missing or stale.
type Accessor[T any] func(ctx context.Context) (T, error)

type config struct {
	prefix       string
	codec        Codec
	logger       logger.Logger
	now          func() time.Time
	singleFlight bool
}

// Option configures a Controller.
type Option func(*config)

func defaultConfig() config {
	return config{
		codec:  JSONCodec{},
		logger: logger.NewNoopLogger(),
		now:    time.Now,
	}
}

// WithKeyPrefix sets the string prepended to every key. The prefix is joined
// with no separator, so "user1" and "user12" prefixes can collide unless the
// prefix ends with a delimiter of your choosing (for example "user1:").
func WithKeyPrefix(prefix string) Option {
	return func(c *config) { c.prefix = prefix }
}

// WithCodec sets the codec used for stored values. Defaults to JSONCodec.
func WithCodec(codec Codec) Option {
	return func(c *config) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithLogger sets the logger. Defaults to a logger that discards output.
func WithLogger(log logger.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithClock sets the time source used to evaluate staleness. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSingleFlight collapses concurrent populations of the same key into a
// single accessor call. Every caller sharing the result sees FreshlyComputed.
// The accessor runs with the values of the first caller's context but is not
// cancelled with it, so a caller that gives up does not fail the others; the
// population then finishes and is written in the background.
func WithSingleFlight() Option {
	return func(c *config) { c.singleFlight = true }
}

// Controller serves values from a row store, recomputing them with a
// caller-supplied accessor when the stored entry is missing or stale.
// A Controller is safe for concurrent use.
type Controller struct {
	store  rowstore.Store
	codec  Codec
	logger logger.Logger
	now    func() time.Time
	prefix atomic.Pointer[string]
	group  *singleflight.Group

	readyMutex sync.Mutex
	ready      atomic.Bool
}

// New returns a Controller backed by store. The store is prepared lazily on
// first use, or explicitly with EnsureReady.
func New(store rowstore.Store, opts ...Option) *Controller {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Controller{
		store:  store,
		codec:  cfg.codec,
		logger: cfg.logger.WithPrefix("[cache]"),
		now:    cfg.now,
	}
	c.prefix.Store(&cfg.prefix)
	if cfg.singleFlight {
		c.group = &singleflight.Group{}
	}
	return c
}

// KeyPrefix returns the current key prefix.
func (c *Controller) KeyPrefix() string {
	return *c.prefix.Load()
}

// SetKeyPrefix changes the key prefix for all subsequent calls. Calls already
// in progress keep the key they started with.
func (c *Controller) SetKeyPrefix(prefix string) {
	c.prefix.Store(&prefix)
}

// EffectiveKey returns the key used against the store for key.
func (c *Controller) EffectiveKey(key string) string {
	return c.KeyPrefix() + key
}

// Codec returns the codec the controller encodes values with.
func (c *Controller) Codec() Codec {
	return c.codec
}

// Store returns the underlying row store.
func (c *Controller) Store() rowstore.Store {
	return c.store
}

// EnsureReady prepares the store once. Concurrent callers wait for the single
// attempt in flight; a failed attempt is retried by the next call.
func (c *Controller) EnsureReady(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}
	c.readyMutex.Lock()
	defer c.readyMutex.Unlock()
	if c.ready.Load() {
		return nil
	}
	if err := c.store.EnsureReady(ctx); err != nil {
		c.logger.Warn("store not ready: %s", err)
		return markStore(err)
	}
	c.ready.Store(true)
	c.logger.Debug("store ready")
	return nil
}

func (c *Controller) effectiveKey(key string) (string, error) {
	k := c.EffectiveKey(key)
	if k == "" {
		return "", ErrInvalidKey
	}
	return k, nil
}

// Get returns the value stored for key when policy considers it fresh, and
// otherwise calls accessor, stores its result and returns that. The returned
// Provenance tells which of the two happened.
//
// Errors from the accessor, the store or the codec are returned unchanged
// apart from being marked with ErrAccessorFailure, ErrStoreFailure or
// ErrDecodeFailure/ErrEncodeFailure. Nothing is retried and a value that fails
// to decode is not recomputed.
func Get[T any](ctx context.Context, c *Controller, key string, accessor Accessor[T], policy Policy) (T, Provenance, error) {
	var zero T
	ctx, span := tracer.Start(ctx, "cache.Get")
	defer span.End()

	if policy == nil {
		spanError(span, ErrInvalidPolicy)
		return zero, FreshlyComputed, ErrInvalidPolicy
	}
	if accessor == nil {
		spanError(span, ErrNilAccessor)
		return zero, FreshlyComputed, ErrNilAccessor
	}
	k, err := c.effectiveKey(key)
	if err != nil {
		spanError(span, err)
		return zero, FreshlyComputed, err
	}
	span.SetAttributes(attrKey.String(k), attrPolicy.String(policy.String()))

	if err := c.EnsureReady(ctx); err != nil {
		spanError(span, err)
		return zero, FreshlyComputed, err
	}

	found, entry, err := c.store.Get(ctx, k)
	if err != nil {
		c.logger.Warn("lookup of %s failed: %s", k, err)
		err = markStore(err)
		spanError(span, err)
		return zero, FreshlyComputed, err
	}
	var current *rowstore.Entry
	if found {
		current = &entry
	}

	if !policy.Stale(current, c.now()) {
		var value T
		if err := c.codec.Unmarshal(entry.Value, &value); err != nil {
			c.logger.Warn("stored value for %s could not be decoded: %s", k, err)
			err = markDecode(err, k)
			spanError(span, err)
			return zero, FromCache, err
		}
		c.logger.Debug("hit for %s (%s)", k, policy)
		span.SetAttributes(attrProvenance.String(FromCache.String()))
		span.SetStatus(codes.Ok, "")
		return value, FromCache, nil
	}

	if found {
		c.logger.Debug("stale entry for %s (%s)", k, policy)
	} else {
		c.logger.Debug("miss for %s", k)
	}
	value, err := populate(ctx, c, k, accessor)
	if err != nil {
		spanError(span, err)
		return zero, FreshlyComputed, err
	}
	span.SetAttributes(attrProvenance.String(FreshlyComputed.String()))
	span.SetStatus(codes.Ok, "")
	return value, FreshlyComputed, nil
}

func populate[T any](ctx context.Context, c *Controller, key string, accessor Accessor[T]) (T, error) {
	if c.group == nil {
		return compute(ctx, c, key, accessor)
	}
	// The value type is part of the flight key so callers asking for
	// different types never share a result.
	flight := reflect.TypeFor[T]().String() + "\x00" + key
	// The shared population outlives any single caller; each caller still
	// stops waiting when its own context is done.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		return compute(detached, c, key, accessor)
	})
	var zero T
	select {
	case <-ctx.Done():
		c.logger.Debug("gave up waiting for %s: %s", key, ctx.Err())
		return zero, markAccessor(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			c.logger.Trace("shared population of %s", key)
		}
		value, _ := res.Val.(T)
		return value, nil
	}
}

func compute[T any](ctx context.Context, c *Controller, key string, accessor Accessor[T]) (T, error) {
	var zero T
	value, err := accessor(ctx)
	if err != nil {
		c.logger.Warn("accessor for %s failed: %s", key, err)
		return zero, markAccessor(err)
	}
	raw, err := c.codec.Marshal(value)
	if err != nil {
		c.logger.Warn("value for %s could not be encoded: %s", key, err)
		return zero, markEncode(err, key)
	}
	if _, err := c.store.Set(ctx, key, raw); err != nil {
		c.logger.Warn("write of %s failed: %s", key, err)
		return zero, markStore(err)
	}
	return value, nil
}

// QueryOnly decodes the value stored for key with no staleness check and no
// accessor. It returns an error matching ErrNotFound when nothing is stored.
func QueryOnly[T any](ctx context.Context, c *Controller, key string) (T, error) {
	var zero T
	ctx, span := tracer.Start(ctx, "cache.QueryOnly")
	defer span.End()

	k, err := c.effectiveKey(key)
	if err != nil {
		spanError(span, err)
		return zero, err
	}
	span.SetAttributes(attrKey.String(k))
	if err := c.EnsureReady(ctx); err != nil {
		spanError(span, err)
		return zero, err
	}
	found, entry, err := c.store.Get(ctx, k)
	if err != nil {
		err = markStore(err)
		spanError(span, err)
		return zero, err
	}
	if !found {
		err := notFound(k)
		spanError(span, err)
		return zero, err
	}
	var value T
	if err := c.codec.Unmarshal(entry.Value, &value); err != nil {
		err = markDecode(err, k)
		spanError(span, err)
		return zero, err
	}
	span.SetStatus(codes.Ok, "")
	return value, nil
}

// SetMany writes every item under the key derived by keyOf, in order and
// without any staleness check. A later item with the same key overwrites an
// earlier one. The result maps each derived key (before prefixing) to the
// identifier the store assigned. Any failure stops the batch; rows already
// written stay written.
func SetMany[T any](ctx context.Context, c *Controller, items []T, keyOf func(T) string) (map[string]int64, error) {
	ctx, span := tracer.Start(ctx, "cache.SetMany")
	defer span.End()
	span.SetAttributes(attrItems.Int(len(items)))

	if keyOf == nil {
		spanError(span, ErrNilKeyFunc)
		return nil, ErrNilKeyFunc
	}

	if err := c.EnsureReady(ctx); err != nil {
		spanError(span, err)
		return nil, err
	}
	result := make(map[string]int64, len(items))
	for _, item := range items {
		key := keyOf(item)
		k, err := c.effectiveKey(key)
		if err != nil {
			spanError(span, err)
			return nil, err
		}
		raw, err := c.codec.Marshal(item)
		if err != nil {
			err = markEncode(err, k)
			spanError(span, err)
			return nil, err
		}
		id, err := c.store.Set(ctx, k, raw)
		if err != nil {
			c.logger.Warn("write of %s failed: %s", k, err)
			err = markStore(err)
			spanError(span, err)
			return nil, err
		}
		result[key] = id
	}
	c.logger.Debug("stored %d items", len(items))
	span.SetStatus(codes.Ok, "")
	return result, nil
}
