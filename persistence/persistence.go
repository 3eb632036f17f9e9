// Package persistence lets independent units durably keep small amounts of
// key-value state across restarts.
//
// Every unit of a service shares one backing file. Setup fixes the service and
// storage root once; each unit then creates its own Engine, which lazily loads
// the unit's slice of the file and merges it back on Save:
//
//	pctx, err := persistence.Setup(&cfg)
//	engine := pctx.NewEngine("counter")
//	n, _ := engine.Load("count", 0.0).(float64)
//	engine.Store("count", n+1)
//	err = engine.Save()
package persistence

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tailored-agentic-units/persist/observability"
	"github.com/tailored-agentic-units/persist/resolver"
)

// Option configures a Context after config-driven initialization.
type Option func(*options)

type options struct {
	observer   observability.Observer
	registerer prometheus.Registerer
	namespace  string
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithPrometheus registers save and read metrics plus an event counter on
// reg, with every metric name prefixed by namespace. The event counter
// receives the same events as the configured observer.
func WithPrometheus(reg prometheus.Registerer, namespace string) Option {
	return func(opts *options) {
		opts.registerer = reg
		opts.namespace = namespace
	}
}

// Context is the immutable process-wide persistence configuration produced by
// Setup. Engines created from it keep using it even if Setup runs again.
type Context struct {
	service  string
	resolver *resolver.Resolver
	observer observability.Observer
	metrics  *Metrics
}

// Setup resolves the storage root from cfg, creates it if needed and returns
// the Context engines are created from.
func Setup(cfg *Config, opts ...Option) (*Context, error) {
	if cfg == nil {
		defaults := DefaultConfig()
		cfg = &defaults
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	path := cfg.Path
	if path == "" {
		path = defaultPath
	}

	base := cfg.Base
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryCreate, err)
		}
		base = wd
	}
	root := resolver.Abs(base, path)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryCreate, root, err)
	}

	observer := o.observer
	if observer == nil {
		name := cfg.Observer
		if name == "" {
			name = "slog"
		}
		var err error
		observer, err = observability.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
	}

	var metrics *Metrics
	if o.registerer != nil {
		var err error
		metrics, err = NewMetrics(o.registerer, o.namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		counter, err := observability.NewPrometheusObserver(o.registerer, o.namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to register event counter: %w", err)
		}
		observer = observability.Combine(observer, counter)
	}

	c := &Context{
		service:  cfg.Service,
		resolver: resolver.New(root),
		observer: observer,
		metrics:  metrics,
	}

	c.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventSetup,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "persistence.Setup",
		Data: map[string]any{
			"service": c.service,
			"root":    root,
		},
	})

	return c, nil
}

// Service returns the owner identifier.
func (c *Context) Service() string {
	return c.service
}

// Root returns the absolute storage root.
func (c *Context) Root() string {
	return c.resolver.Root()
}

// Path returns the backing file shared by the service's units.
func (c *Context) Path() string {
	return c.resolver.Resolve(c.service)
}
