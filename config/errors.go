package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidBackend indicates the storage backend is not recognized.
	ErrInvalidBackend = errors.New("config: invalid backend (must be \"memory\" or \"bolt\")")

	// ErrInvalidMaxRefLen indicates a non-positive reference length limit.
	ErrInvalidMaxRefLen = errors.New("config: maxreflen must be positive")

	// ErrInvalidAuthWindow indicates a non-positive request signature window.
	ErrInvalidAuthWindow = errors.New("config: authwindow must be positive")

	// ErrInvalidConfigValue indicates a value that cannot be parsed for its key.
	ErrInvalidConfigValue = errors.New("config: invalid configuration value")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
