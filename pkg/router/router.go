// Package router resolves which of the two interchangeable registry replicas
// ("blue"/"green") is currently authoritative. The ingest pipeline bulk-loads
// the inactive replica offline and flips an external pointer atomically;
// readers follow the pointer through a short-lived cache. The cache TTL
// bounds the staleness window but never correctness: a stale read still
// targets a fully consistent, merely older snapshot.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/publicqi/pda-directory/pkg/registry"
)

const (
	// Tokens stored in the active-database pointer.
	DatabaseBlue  = "blue"
	DatabaseGreen = "green"

	// DefaultPointerKey is the key the ingest pipeline writes the pointer
	// under.
	DefaultPointerKey = "active_db"

	defaultCacheTTL = 30 * time.Second

	cacheKey = "active_database"
)

var (
	// ErrPointerUnavailable wraps failures to read the pointer from its
	// external store.
	ErrPointerUnavailable = errors.New("active database pointer unavailable")

	// ErrUnknownDatabase is returned when the pointer holds a token other
	// than "blue" or "green".
	ErrUnknownDatabase = errors.New("unknown active database token")
)

// PointerStore reads the active-database token from external state.
type PointerStore interface {
	ActiveDatabase(ctx context.Context) (string, error)
}

// KV is the subset of a key-value client the pointer adapter needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
}

type kvPointer struct {
	kv  KV
	key string
}

// NewKVPointer adapts a KV client to a PointerStore reading the token under
// key.
func NewKVPointer(kv KV, key string) PointerStore {
	if key == "" {
		key = DefaultPointerKey
	}
	return &kvPointer{kv: kv, key: key}
}

func (p *kvPointer) ActiveDatabase(ctx context.Context) (string, error) {
	return p.kv.Get(ctx, p.key)
}

type Config struct {
	Logger  *slog.Logger
	Pointer PointerStore
	Blue    registry.Store
	Green   registry.Store

	// Optional configuration.
	CacheTTL time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Pointer == nil {
		return errors.New("pointer store is required")
	}
	if c.Blue == nil {
		return errors.New("blue database is required")
	}
	if c.Green == nil {
		return errors.New("green database is required")
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	return nil
}

// Router maps the cached active-database token to a registry handle.
type Router struct {
	cfg   Config
	cache *ttlcache.Cache[string, string]
}

func New(cfg Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](cfg.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	return &Router{cfg: cfg, cache: cache}, nil
}

// Resolve returns the currently authoritative replica. Within the cache TTL
// the pointer store is not consulted; a cache miss costs one pointer read.
func (r *Router) Resolve(ctx context.Context) (registry.Store, error) {
	if item := r.cache.Get(cacheKey); item != nil {
		return r.storeFor(item.Value())
	}

	token, err := r.cfg.Pointer.ActiveDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPointerUnavailable, err)
	}

	store, err := r.storeFor(token)
	if err != nil {
		return nil, err
	}

	r.cache.Set(cacheKey, token, ttlcache.DefaultTTL)
	r.cfg.Logger.Debug("refreshed active database pointer", "database", token)
	return store, nil
}

func (r *Router) storeFor(token string) (registry.Store, error) {
	switch token {
	case DatabaseBlue:
		return r.cfg.Blue, nil
	case DatabaseGreen:
		return r.cfg.Green, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatabase, token)
	}
}

// Inactive returns the token of the replica that is not active, given the
// active one. Used by the ingest side when choosing a reload target.
func Inactive(active string) (string, error) {
	switch active {
	case DatabaseBlue:
		return DatabaseGreen, nil
	case DatabaseGreen:
		return DatabaseBlue, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDatabase, active)
	}
}
