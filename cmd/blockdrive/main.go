// blockdrive is the command-line client for a BlockDrive registry daemon.
//
// Usage:
//
//	blockdrive [global flags] <command> [args]
//
// Commands: init, whoami, add, ls, allow, disallow, shares, status.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/pflag"

	"github.com/preethamak/BlockDrive/config"
	"github.com/preethamak/BlockDrive/paymail"
	"github.com/preethamak/BlockDrive/wallet"
)

func main() {
	a := &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	a.password = a.promptPassword
	if err := a.run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "blockdrive: %v\n", err)
		os.Exit(1)
	}
}

// command is one subcommand.
type command struct {
	usage string
	brief string
	run   func(a *app, args []string) error
}

var commands = map[string]command{
	"init":     {"init [--words 12|24] [--index n] [--restore] [--force]", "create or restore the identity key", cmdInit},
	"whoami":   {"whoami", "print this identity", cmdWhoami},
	"add":      {"add <reference>", "register a file reference", cmdAdd},
	"ls":       {"ls [owner]", "list an owner's references (default: yours)", cmdList},
	"allow":    {"allow <identity|alias@domain>", "grant read access", cmdAllow},
	"disallow": {"disallow <identity|alias@domain>", "revoke read access", cmdDisallow},
	"shares":   {"shares", "list the grants you have issued", cmdShares},
	"status":   {"status", "show daemon status", cmdStatus},
}

// app carries global settings and I/O for the subcommands.
type app struct {
	in     io.Reader
	lines  *bufio.Reader
	out    io.Writer
	errOut io.Writer

	dataDir      string
	keyFile      string
	passwordFile string
	rpcURL       string
	network      string
	dnsUpstream  string
	timeout      time.Duration

	// password obtains a password; confirm asks twice.
	password func(prompt string, confirm bool) (string, error)
	// resolver turns alias@domain handles into identities. Nil builds a
	// paymail resolver on first use.
	resolver granteeResolver
}

func (a *app) run(args []string) error {
	fs := pflag.NewFlagSet("blockdrive", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(a.errOut)
	fs.StringVar(&a.dataDir, "datadir", config.DefaultDataDir(), "data directory holding the key file")
	fs.StringVar(&a.keyFile, "keyfile", "", "identity key file (default <datadir>/"+wallet.DefaultKeyFileName+")")
	fs.StringVar(&a.passwordFile, "password-file", "", "read the key password from this file")
	fs.StringVar(&a.rpcURL, "rpc", "http://"+config.DefaultListenAddr, "daemon JSON-RPC URL")
	fs.StringVar(&a.network, "network", "", "address encoding: mainnet or testnet (default from key file)")
	fs.StringVar(&a.dnsUpstream, "dns", "", "DNSSEC resolver for paymail handles (default 8.8.8.8:53)")
	fs.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")
	fs.Usage = func() { a.usage(fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		a.usage(fs)
		return pflag.ErrHelp
	}
	if a.keyFile == "" {
		a.keyFile = wallet.KeyFilePath(a.dataDir)
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd.run(a, fs.Args()[1:])
}

func (a *app) usage(fs *pflag.FlagSet) {
	fmt.Fprintln(a.errOut, "Usage: blockdrive [flags] <command> [args]")
	fmt.Fprintln(a.errOut, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(a.errOut, "  %-42s %s\n", commands[name].usage, commands[name].brief)
	}
	fmt.Fprintln(a.errOut, "\nFlags:")
	fmt.Fprint(a.errOut, fs.FlagUsages())
}

// subFlags returns a flag set for a subcommand.
func (a *app) subFlags(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.Usage = func() {
		fmt.Fprintf(a.errOut, "Usage: blockdrive %s\n", usage)
		fmt.Fprint(a.errOut, fs.FlagUsages())
	}
	return fs
}

func (a *app) paymailResolver() granteeResolver {
	if a.resolver == nil {
		a.resolver = paymail.NewResolver(a.dnsUpstream)
	}
	return a.resolver
}
