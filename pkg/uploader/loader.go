package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"github.com/publicqi/pda-directory/pkg/cloudflare"
	"github.com/publicqi/pda-directory/pkg/registry"
	"github.com/publicqi/pda-directory/pkg/router"
)

const defaultMaxInsertTries = 5

// LoadStore is the write surface of a registry replica.
type LoadStore interface {
	InsertRows(ctx context.Context, rows []registry.Row) (int64, error)
	Truncate(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// KV is the pointer store the loader reads and flips.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}

type LoaderConfig struct {
	Logger *slog.Logger
	Blue   LoadStore
	Green  LoadStore
	KV     KV

	// Optional configuration.
	PointerKey string
	Clock      clockwork.Clock
}

func (c *LoaderConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Blue == nil {
		return errors.New("blue store is required")
	}
	if c.Green == nil {
		return errors.New("green store is required")
	}
	if c.KV == nil {
		return errors.New("kv client is required")
	}

	// Optional configuration.
	if c.PointerKey == "" {
		c.PointerKey = router.DefaultPointerKey
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Loader moves merged batches into the registry replicas.
type Loader struct {
	cfg LoaderConfig
}

func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loader{cfg: cfg}, nil
}

// Upload inserts a batch incrementally into both replicas so readers see new
// entries regardless of which side the pointer selects. Duplicates are
// ignored by the store's conflict handling.
func (l *Loader) Upload(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		l.cfg.Logger.Info("skip upload: no new entries")
		return nil
	}

	rows := make([]registry.Row, len(entries))
	for i, e := range entries {
		rows[i] = e.Row()
	}

	for _, target := range []struct {
		name  string
		store LoadStore
	}{
		{router.DatabaseBlue, l.cfg.Blue},
		{router.DatabaseGreen, l.cfg.Green},
	} {
		inserted, err := l.insertWithRetry(ctx, target.store, rows)
		if err != nil {
			return fmt.Errorf("failed to upload to %s: %w", target.name, err)
		}
		l.cfg.Logger.Info("uploaded batch", "database", target.name, "rows", len(rows), "inserted", inserted)
	}
	return nil
}

// Reload bulk-loads a full snapshot into the inactive replica and flips the
// pointer only after the row count checks out. Readers keep hitting the old
// replica until the flip, so they never observe a partial load.
func (l *Loader) Reload(ctx context.Context, entries []Entry) error {
	active, err := l.cfg.KV.Get(ctx, l.cfg.PointerKey)
	if errors.Is(err, cloudflare.ErrKeyNotFound) {
		// No pointer yet: bootstrap by loading blue.
		active = router.DatabaseGreen
	} else if err != nil {
		return fmt.Errorf("failed to read active database pointer: %w", err)
	}

	target, err := router.Inactive(active)
	if err != nil {
		return fmt.Errorf("cannot pick reload target: %w", err)
	}
	store := l.cfg.Blue
	if target == router.DatabaseGreen {
		store = l.cfg.Green
	}

	l.cfg.Logger.Info("reloading inactive replica", "active", active, "target", target, "entries", len(entries))

	if err := store.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", target, err)
	}

	rows := make([]registry.Row, len(entries))
	for i, e := range entries {
		rows[i] = e.Row()
	}
	inserted, err := l.insertWithRetry(ctx, store, rows)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", target, err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count %s after load: %w", target, err)
	}
	if count != int64(len(rows)) {
		return fmt.Errorf("row count mismatch on %s after load: have %d, want %d", target, count, len(rows))
	}

	if err := l.cfg.KV.Put(ctx, l.cfg.PointerKey, target); err != nil {
		return fmt.Errorf("failed to flip active database pointer: %w", err)
	}

	l.cfg.Logger.Info("reload complete", "database", target, "rows", count, "inserted", inserted)
	return nil
}

func (l *Loader) insertWithRetry(ctx context.Context, store LoadStore, rows []registry.Row) (int64, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (int64, error) {
		if attempt > 0 {
			l.cfg.Logger.Warn("retrying insert batch", "attempt", attempt)
		}
		attempt++
		return store.InsertRows(ctx, rows)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(defaultMaxInsertTries))
}

// Run is the upload loop: every interval, merge settled collector blobs,
// upload the fresh entries into both replicas, and delete the consumed
// files. Per-cycle failures are logged and retried next tick.
func (l *Loader) Run(ctx context.Context, dir, dedupPath string, interval time.Duration, verify bool) error {
	ticker := l.cfg.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		result, err := Merge(l.cfg.Logger, l.cfg.Clock, dir, dedupPath, verify)
		if err != nil {
			l.cfg.Logger.Error("merge failed", "error", err)
			continue
		}
		if err := l.Upload(ctx, result.Entries); err != nil {
			l.cfg.Logger.Error("upload failed", "error", err)
			continue
		}
		for _, file := range result.Files {
			if err := os.Remove(file); err != nil {
				l.cfg.Logger.Warn("failed to delete consumed blob", "file", file, "error", err)
			}
		}
	}
}
