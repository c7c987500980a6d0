package config

import (
	"fmt"
	"os"

	persistconfig "github.com/redbco/redb-persistence/pkg/config"
)

const ServiceName = "redb-persist"

var globalConfig *persistconfig.Config

// Init loads the configuration from configFile. A missing file is not an
// error: the defaults and the environment still apply.
func Init(configFile string) error {
	var (
		cfg *persistconfig.Config
		err error
	)
	if _, statErr := os.Stat(configFile); statErr == nil {
		cfg, err = persistconfig.Load(configFile)
	} else {
		cfg, err = persistconfig.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", configFile, err)
	}

	globalConfig = cfg
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *persistconfig.Config {
	return globalConfig
}
