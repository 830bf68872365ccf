package server

import (
	"context"
	"errors"
	"time"

	"github.com/publicqi/pda-directory/pkg/ratelimit"
	"github.com/publicqi/pda-directory/pkg/registry"
)

const (
	defaultLimit           = 25
	defaultMaxLimit        = 50
	defaultShutdownTimeout = 10 * time.Second
)

// DatabaseResolver picks the currently authoritative registry replica.
type DatabaseResolver interface {
	Resolve(ctx context.Context) (registry.Store, error)
}

type Config struct {
	Resolver DatabaseResolver

	// Optional configuration.
	Limiter         ratelimit.Limiter
	DefaultLimit    int
	MaxLimit        int
	ShutdownTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Resolver == nil {
		return errors.New("database resolver is required")
	}

	// Optional configuration.
	if c.Limiter == nil {
		c.Limiter = ratelimit.AllowAll{}
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = defaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = defaultMaxLimit
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
