// Package extension provides a Forge extension entry point for Bastion.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/api"
	"github.com/xraph/bastion/plugin"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bastion"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Access decisions over entitlements, role permissions, temporary grants and attribute scopes"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Bastion as a Forge extension.
type Extension struct {
	config      Config
	eng         *bastion.Engine
	apiHandler  *api.API
	logger      *slog.Logger
	bastionOpts []bastion.Option
	plugins     []plugin.Plugin

	stopPurge context.CancelFunc
	purgeWG   sync.WaitGroup
}

// New creates a Bastion Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Bastion engine.
func (e *Extension) Engine() *bastion.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*bastion.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("bastion: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := make([]bastion.Option, 0, len(e.bastionOpts)+len(e.plugins)+4)
	opts = append(opts,
		bastion.WithLogger(logger),
		bastion.WithConfig(e.config.engineConfig()),
	)

	// Try to resolve store from DI container, fall back to option-provided store.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, bastion.WithStore(s))
	}

	// User-provided options may override the store and config.
	opts = append(opts, e.bastionOpts...)

	if e.config.RoleTableFile != "" {
		table, err := role.LoadTableFile(e.config.RoleTableFile)
		if err != nil {
			return fmt.Errorf("bastion: load role table: %w", err)
		}
		opts = append(opts, bastion.WithRoleTable(table))
		logger.Info("bastion role table loaded",
			slog.String("file", e.config.RoleTableFile),
			slog.Any("roles", table.Roles()),
		)
	}

	for _, x := range e.plugins {
		opts = append(opts, bastion.WithPlugin(x))
	}

	eng, err := bastion.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("bastion: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("bastion: register routes: %w", err)
		}
	}

	return nil
}

// Start runs migrations if enabled, then starts the engine and the grant
// purger.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("bastion: extension not initialized")
	}

	if !e.config.DisableMigrate {
		s := e.eng.Store()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("bastion: migration failed: %w", err)
			}
		}
	}

	if err := e.eng.Start(ctx); err != nil {
		return err
	}

	if e.config.GrantPurgeInterval > 0 {
		e.startPurger(e.config.GrantPurgeInterval)
	}
	return nil
}

// Stop stops the grant purger and shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.stopPurge != nil {
		e.stopPurge()
		e.purgeWG.Wait()
		e.stopPurge = nil
	}
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("bastion: extension not initialized")
	}
	s := e.eng.Store()
	if s == nil {
		return errors.New("bastion: no store configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all bastion API routes into a Forge router under
// the configured base path.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler == nil {
		return nil
	}
	if e.config.BasePath != "" {
		return e.apiHandler.RegisterRoutes(router.Group(e.config.BasePath))
	}
	return e.apiHandler.RegisterRoutes(router)
}

func (e *Extension) startPurger(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	e.stopPurge = cancel
	e.purgeWG.Add(1)
	go func() {
		defer e.purgeWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := e.eng.PurgeExpiredGrants(ctx)
				if err != nil {
					e.log().Warn("bastion: purge expired grants", slog.String("error", err.Error()))
					continue
				}
				if n > 0 {
					e.log().Debug("bastion: purged expired grants", slog.Int64("count", n))
				}
			}
		}
	}()
}

func (e *Extension) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
