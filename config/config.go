// Package config loads and saves the BlockDrive daemon configuration.
//
// The file is line oriented: "key = value" pairs, "#" comments and blank
// lines. Unknown keys are ignored and unset keys keep their defaults.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// Defaults.
const (
	DefaultListenAddr     = "127.0.0.1:8332"
	DefaultGRPCListenAddr = "127.0.0.1:8333"
	DefaultNetwork        = "mainnet"
	DefaultLogLevel       = "info"
	DefaultBackend        = BackendBolt
	DefaultMaxRefLen      = 2048
	DefaultAuthWindow     = 5 * time.Minute
	DefaultAMQPExchange   = "blockdrive.registry"

	configFileName = "config"
	dataDirName    = ".blockdrive"
)

// Config holds the daemon settings.
type Config struct {
	DataDir        string
	ListenAddr     string
	GRPCListenAddr string
	Network        string
	LogLevel       string
	LogFile        string
	Backend        string
	MaxRefLen      int
	AuthWindow     time.Duration
	AMQPURL        string
	AMQPExchange   string
}

// DefaultDataDir returns ~/.blockdrive, or .blockdrive in the working
// directory when the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return dataDirName
	}
	return filepath.Join(home, dataDirName)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		ListenAddr:     DefaultListenAddr,
		GRPCListenAddr: DefaultGRPCListenAddr,
		Network:        DefaultNetwork,
		LogLevel:       DefaultLogLevel,
		Backend:        DefaultBackend,
		MaxRefLen:      DefaultMaxRefLen,
		AuthWindow:     DefaultAuthWindow,
		AMQPExchange:   DefaultAMQPExchange,
	}
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(filepath.Clean(dataDir), configFileName)
}

// DBPath returns the bolt database path inside the configured data dir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "registry.db")
}

// LoadConfig reads path over DefaultConfig. It does not validate.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on its first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

// set assigns one key. Unknown keys are ignored.
func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "listen":
		c.ListenAddr = value
	case "grpclisten":
		c.GRPCListenAddr = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "backend":
		c.Backend = strings.ToLower(value)
	case "maxreflen":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: maxreflen %q", ErrInvalidConfigValue, value)
		}
		c.MaxRefLen = n
	case "authwindow":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: authwindow %q", ErrInvalidConfigValue, value)
		}
		c.AuthWindow = d
	case "amqpurl":
		c.AMQPURL = value
	case "amqpexchange":
		c.AMQPExchange = value
	}
	return nil
}

// SaveConfig writes cfg to path with mode 0600, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# BlockDrive Configuration\n\n")
	write := func(key, value string) {
		fmt.Fprintf(&b, "%s = %s\n", key, value)
	}
	write("datadir", cfg.DataDir)
	write("listen", cfg.ListenAddr)
	write("grpclisten", cfg.GRPCListenAddr)
	write("network", cfg.Network)
	write("loglevel", cfg.LogLevel)
	write("logfile", cfg.LogFile)
	write("backend", cfg.Backend)
	write("maxreflen", strconv.Itoa(cfg.MaxRefLen))
	write("authwindow", cfg.AuthWindow.String())
	b.WriteString("\n# Registry events. An empty amqpurl disables publishing.\n")
	write("amqpurl", cfg.AMQPURL)
	write("amqpexchange", cfg.AMQPExchange)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
