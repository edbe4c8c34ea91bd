package core

import (
	"fmt"
	"strings"
)

const defaultManagementPath = "token"

type GrantsConfig struct {
	// SingleFlight collapses concurrent creation for an identical scope into
	// one authorization server request.
	SingleFlight   bool   `koanf:"single_flight" mapstructure:"single_flight"`
	ManagementPath string `koanf:"management_path" mapstructure:"management_path"`
}

type Config struct {
	ServiceName string       `koanf:"service_name" mapstructure:"service_name"`
	Grants      GrantsConfig `koanf:"grants" mapstructure:"grants"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "grants",
		Grants: GrantsConfig{
			ManagementPath: defaultManagementPath,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.Contains(c.Grants.ManagementPath, "?") || strings.Contains(c.Grants.ManagementPath, "#") {
		return fmt.Errorf("core: grants.management_path is invalid")
	}
	return nil
}
