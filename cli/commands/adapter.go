package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/burrowkit/burrow/adapters"
	"github.com/burrowkit/burrow/adapters/memory"
	"github.com/burrowkit/burrow/adapters/postgres"
	"github.com/burrowkit/burrow/cli/config"
)

// AdapterFactory builds the event store adapter named by the config's
// database driver.
type AdapterFactory struct {
	cfg         *config.Config
	databaseURL string
}

// NewAdapterFactory resolves the database URL from the environment and
// returns a factory, or an error when a non-memory driver has no URL.
func NewAdapterFactory(cfg *config.Config) (*AdapterFactory, error) {
	resolved := os.ExpandEnv(cfg.Database.URL)
	if cfg.Database.Driver != "memory" && !urlSet(resolved) {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	return &AdapterFactory{cfg: cfg, databaseURL: resolved}, nil
}

// urlSet reports whether a resolved database URL is usable. An URL
// whose ${DATABASE_URL} placeholder survived expansion is not.
func urlSet(dbURL string) bool {
	return dbURL != "" && dbURL != "${DATABASE_URL}"
}

// CreateAdapter builds the adapter for the configured driver. The
// postgres path pings with a short timeout so a bad URL fails fast.
func (f *AdapterFactory) CreateAdapter(ctx context.Context) (adapters.EventStoreAdapter, error) {
	ctx = ensureContext(ctx)

	driver := f.cfg.Database.Driver
	switch driver {
	case "memory":
		return memory.NewAdapter(), nil
	case "postgres", "postgresql":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	var opts []postgres.Option
	if schema := f.cfg.Database.Schema; schema != "" {
		opts = append(opts, postgres.WithSchema(schema))
	}
	adapter, err := postgres.NewAdapter(f.databaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres adapter: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := adapter.Ping(pingCtx); err != nil {
		_ = adapter.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return adapter, nil
}

// GetDatabaseURL returns the resolved database URL.
func (f *AdapterFactory) GetDatabaseURL() string { return f.databaseURL }

// IsMemoryDriver reports whether the memory driver is configured.
func (f *AdapterFactory) IsMemoryDriver() bool { return f.cfg.Database.Driver == "memory" }

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig finds the project config starting from the working
// directory and walking up.
func loadConfig() (*config.Config, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	_, cfg, err := config.FindConfig(wd)
	if err != nil {
		return nil, wd, err
	}
	return cfg, wd, nil
}

// getAdapter wires config discovery and adapter construction together
// for commands that just need a working adapter. The returned cleanup
// closes the adapter.
func getAdapter(ctx context.Context) (adapters.EventStoreAdapter, *config.Config, func(), error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("no burrow.yaml found: %w", err)
	}

	factory, err := NewAdapterFactory(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	adapter, err := factory.CreateAdapter(ensureContext(ctx))
	if err != nil {
		return nil, nil, nil, err
	}
	return adapter, cfg, func() { _ = adapter.Close() }, nil
}

// DiagnosticSkipReason says why a diagnostic check did not run.
type DiagnosticSkipReason int

const (
	DiagnosticNotSkipped DiagnosticSkipReason = iota
	DiagnosticSkipNoConfig
	DiagnosticSkipMemoryDriver
	DiagnosticSkipNoDBURL
)

// DiagnosticEnv bundles the adapter and config a database-backed
// diagnostic check runs against.
type DiagnosticEnv struct {
	Adapter adapters.EventStoreAdapter
	Config  *config.Config
	teardown func()
}

// Close releases the environment's resources.
func (e *DiagnosticEnv) Close() {
	if e.teardown != nil {
		e.teardown()
	}
}

// SetupDiagnosticEnv prepares a DiagnosticEnv, or reports the reason
// the check should be skipped instead.
func SetupDiagnosticEnv(ctx context.Context) (*DiagnosticEnv, DiagnosticSkipReason, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, DiagnosticNotSkipped, err
	}

	_, cfg, err := config.FindConfig(wd)
	switch {
	case err != nil:
		return nil, DiagnosticSkipNoConfig, nil
	case cfg.Database.Driver == "memory":
		return nil, DiagnosticSkipMemoryDriver, nil
	case !urlSet(os.ExpandEnv(cfg.Database.URL)):
		return nil, DiagnosticSkipNoDBURL, nil
	}

	adapter, _, teardown, err := getAdapter(ctx)
	if err != nil {
		return nil, DiagnosticNotSkipped, err
	}
	return &DiagnosticEnv{Adapter: adapter, Config: cfg, teardown: teardown}, DiagnosticNotSkipped, nil
}
