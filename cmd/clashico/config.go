package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/sale"
)

// Config is the simulator configuration. Every key can be set in the config
// file or through a CLASHICO_ prefixed environment variable.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// DataDir holds the accounts database and the journal.
	DataDir string `mapstructure:"data_dir"`

	// Journal records every transaction in DataDir/journal.db.
	Journal bool `mapstructure:"journal"`

	SyncWrites bool `mapstructure:"sync_writes"`

	// Initializer is the base58 address of the mint authority created at
	// genesis. It is the wallet that initializes and terminates the sale.
	Initializer string `mapstructure:"initializer"`

	// Decimals of the sale token mint created at genesis.
	Decimals uint8 `mapstructure:"decimals"`

	// InitialBalance is credited to the initializer at genesis.
	InitialBalance uint64 `mapstructure:"initial_balance"`

	// RPCAddr is where the serve command listens.
	RPCAddr string `mapstructure:"rpc_addr"`
}

var configKeys = []string{
	"log_level",
	"log_format",
	"data_dir",
	"journal",
	"sync_writes",
	"initializer",
	"decimals",
	"initial_balance",
	"rpc_addr",
}

var defaultConfig = Config{
	LogLevel:       "info",
	LogFormat:      "text",
	DataDir:        "clashico-data",
	Journal:        true,
	SyncWrites:     true,
	Initializer:    types.PubkeyFromSeed("clashico/initializer").String(),
	Decimals:       9,
	InitialBalance: 100 * sale.LamportsPerSOL,
	RPCAddr:        "127.0.0.1:8899",
}

// loadConfig reads path, if it exists, and the environment over the defaults.
func loadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLASHICO")
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, errors.Wrapf(err, "bind %s", key)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrapf(err, "read config %s", path)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrap(err, "check config")
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	if _, err := config.initializer(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) initializer() (types.Pubkey, error) {
	key, err := types.PubkeyFromBase58(c.Initializer)
	return key, errors.Wrap(err, "initializer")
}

func configureLogger(config Config) {
	if strings.EqualFold(config.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}
	logrus.SetOutput(os.Stderr)
}
