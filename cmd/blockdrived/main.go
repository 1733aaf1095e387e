// blockdrived serves the BlockDrive registry over JSON-RPC and gRPC.
//
// Configuration is read from <datadir>/config and overridden by flags. With
// --verify-journal the daemon audits the mutation journal against the store
// and exits without serving. Only the bolt backend keeps a journal.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/preethamak/BlockDrive/config"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "blockdrived: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags that do not map to config keys.
type options struct {
	configPath    string
	writeConfig   bool
	verifyJournal bool
	dumpFrom      uint64
	showVersion   bool
	console       bool
}

func run(args []string) error {
	cfg, opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Println("blockdrived", version)
		return nil
	}
	if opts.writeConfig {
		path := opts.configPath
		if err := config.SaveConfig(path, cfg); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	if opts.verifyJournal {
		return verifyJournal(cfg, opts.dumpFrom, os.Stdout)
	}
	return serve(cfg, opts.console)
}

// parseFlags loads the config file named by --config (default
// <datadir>/config) and applies every flag the user set on top of it.
func parseFlags(args []string) (config.Config, options, error) {
	def := config.DefaultConfig()
	var (
		cfg  config.Config
		opts options
	)

	fs := pflag.NewFlagSet("blockdrived", pflag.ContinueOnError)
	fs.StringVar(&cfg.DataDir, "datadir", def.DataDir, "data directory")
	fs.StringVar(&opts.configPath, "config", "", "config file (default <datadir>/config)")
	fs.StringVar(&cfg.ListenAddr, "listen", def.ListenAddr, "JSON-RPC listen address")
	fs.StringVar(&cfg.GRPCListenAddr, "grpclisten", def.GRPCListenAddr, "gRPC listen address (empty disables)")
	fs.StringVar(&cfg.Network, "network", def.Network, "mainnet, testnet or regtest")
	fs.StringVar(&cfg.LogLevel, "loglevel", def.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFile, "logfile", def.LogFile, "append logs to this file")
	fs.StringVar(&cfg.Backend, "backend", def.Backend, "memory or bolt")
	fs.IntVar(&cfg.MaxRefLen, "maxreflen", def.MaxRefLen, "maximum reference length in bytes")
	fs.DurationVar(&cfg.AuthWindow, "authwindow", def.AuthWindow, "allowed request clock skew")
	fs.StringVar(&cfg.AMQPURL, "amqpurl", def.AMQPURL, "AMQP broker URL for registry events (empty disables)")
	fs.StringVar(&cfg.AMQPExchange, "amqpexchange", def.AMQPExchange, "AMQP topic exchange")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "write the effective config file and exit")
	fs.BoolVar(&opts.verifyJournal, "verify-journal", false, "audit the journal against the store and exit (bolt backend only)")
	fs.Uint64Var(&opts.dumpFrom, "dump-journal", 0, "with --verify-journal, print raw entries from this sequence number")
	fs.BoolVar(&opts.console, "console", false, "human-readable log output")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, opts, err
	}
	if fs.NArg() > 0 {
		return cfg, opts, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if opts.configPath == "" {
		opts.configPath = config.ConfigPath(cfg.DataDir)
	}

	fileCfg, err := config.LoadConfig(opts.configPath)
	switch {
	case err == nil:
	case errors.Is(err, config.ErrConfigNotFound) && !fs.Changed("config"):
		fileCfg = config.DefaultConfig()
		fileCfg.DataDir = cfg.DataDir
	default:
		return cfg, opts, err
	}

	overlay(&fileCfg, cfg, fs)
	return fileCfg, opts, nil
}

// overlay copies each changed flag value from flags into dst.
func overlay(dst *config.Config, flags config.Config, fs *pflag.FlagSet) {
	set := map[string]func(){
		"datadir":      func() { dst.DataDir = flags.DataDir },
		"listen":       func() { dst.ListenAddr = flags.ListenAddr },
		"grpclisten":   func() { dst.GRPCListenAddr = flags.GRPCListenAddr },
		"network":      func() { dst.Network = flags.Network },
		"loglevel":     func() { dst.LogLevel = flags.LogLevel },
		"logfile":      func() { dst.LogFile = flags.LogFile },
		"backend":      func() { dst.Backend = flags.Backend },
		"maxreflen":    func() { dst.MaxRefLen = flags.MaxRefLen },
		"authwindow":   func() { dst.AuthWindow = flags.AuthWindow },
		"amqpurl":      func() { dst.AMQPURL = flags.AMQPURL },
		"amqpexchange": func() { dst.AMQPExchange = flags.AMQPExchange },
	}
	fs.Visit(func(f *pflag.Flag) {
		if fn, ok := set[f.Name]; ok {
			fn()
		}
	})
}

const shutdownTimeout = 10 * time.Second
