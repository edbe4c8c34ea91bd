package main

import (
	"context"

	"github.com/goliatone/go-config/config"
	"github.com/goliatone/go-grants/core"
	glog "github.com/goliatone/go-logger/glog"
)

// GRANTS_SERVICE_NAME maps to service_name, GRANTS_GRANTS__SINGLE_FLIGHT to
// grants.single_flight.
const (
	envPrefix    = "GRANTS_"
	envDelimiter = "__"
)

// cliSettings are the GRANTS_* values that stand in for unset root flags.
type cliSettings struct {
	DBDriver            string `koanf:"db_driver"`
	DBDSN               string `koanf:"db_dsn"`
	ClientWalletAddress string `koanf:"client_wallet_address"`
	LogLevel            string `koanf:"log_level"`
	TokenKey            string `koanf:"token_key"`
}

func (*cliSettings) Validate() error { return nil }

func loadCLISettings(ctx context.Context) (cliSettings, error) {
	settings := &cliSettings{}
	if err := loadFromEnv(ctx, settings); err != nil {
		return cliSettings{}, err
	}
	return *settings, nil
}

// envConfigProvider layers GRANTS_* variables over the service defaults.
type envConfigProvider struct{}

var _ core.ConfigProvider = envConfigProvider{}

func (envConfigProvider) Load(ctx context.Context, defaults core.Config) (core.Config, error) {
	cfg := defaults
	if err := loadFromEnv(ctx, &cfg); err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}

// loadFromEnv decodes GRANTS_* variables into target. Solvers stay off so DSNs
// and keys pass through verbatim. Raw values must never reach the CLI logger.
func loadFromEnv[C config.Validable](ctx context.Context, target C) error {
	return config.New(target).
		WithLogger(glog.Nop()).
		WithSolvers().
		WithProvider(config.EnvProvider[C](envPrefix, envDelimiter)).
		Load(ctx)
}
