package config

import (
	"fmt"
	"net"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	// An empty gRPC address disables the gRPC listener.
	if cfg.GRPCListenAddr != "" {
		if err := validateAddr(cfg.GRPCListenAddr); err != nil {
			return fmt.Errorf("%w: grpclisten: %w", ErrInvalidListenAddr, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.Backend != BackendMemory && cfg.Backend != BackendBolt {
		return ErrInvalidBackend
	}

	if cfg.MaxRefLen <= 0 {
		return ErrInvalidMaxRefLen
	}

	if cfg.AuthWindow <= 0 {
		return ErrInvalidAuthWindow
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
