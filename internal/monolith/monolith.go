// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/ledger"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	Ledger() *ledger.Ledger
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	assetRegistry *asset.Registry
	ledger        *ledger.Ledger
	container     di.Container
}

// New creates a new Monolith instance. The Ethereum client is only dialed in
// live mode; paper mode runs entirely on the in-process ledger.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	a := &app{
		config:        cfg,
		logger:        log,
		assetRegistry: asset.DefaultRegistry(),
		ledger:        ledger.New(),
		container:     di.NewContainer(),
	}

	if !cfg.IsPaper() {
		client, err := ethclient.DialContext(ctx, cfg.Ethereum.HTTPURL)
		if err != nil {
			return nil, err
		}
		a.ethClient = client
		a.container.Register("ethClient", client)
	}

	a.container.Register("config", cfg)
	a.container.Register("logger", log)
	a.container.Register("assetRegistry", a.assetRegistry)
	a.container.Register("ledger", a.ledger)

	return a, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

// EthClient returns nil in paper mode.
func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Ledger() *ledger.Ledger {
	return a.ledger
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules in order.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
