package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/paymail"
	"github.com/preethamak/BlockDrive/reference"
	"github.com/preethamak/BlockDrive/rpc"
	"github.com/preethamak/BlockDrive/wallet"
)

// granteeResolver resolves alias@domain handles.
type granteeResolver interface {
	Resolve(handle string) (identity.Identity, error)
}

// parse parses args and checks the positional count is within [lo, hi].
func parse(fs *pflag.FlagSet, args []string, lo, hi int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) < lo || len(rest) > hi {
		fs.Usage()
		return nil, errors.New("wrong number of arguments")
	}
	return rest, nil
}

// session is an unlocked key and a client signing with it.
type session struct {
	key     *wallet.KeyPair
	id      identity.Identity
	network string
	client  *rpc.Client
}

func (a *app) open() (*session, error) {
	kf, err := wallet.ReadKeyFile(a.keyFile)
	if err != nil {
		if errors.Is(err, wallet.ErrKeyFileNotFound) {
			return nil, fmt.Errorf("%w (run \"blockdrive init\" first)", err)
		}
		return nil, err
	}
	pw, err := a.password("Key password: ", false)
	if err != nil {
		return nil, err
	}
	kp, err := wallet.LoadKeyFile(a.keyFile, pw)
	if err != nil {
		return nil, err
	}
	return &session{
		key:     kp,
		id:      kp.Identity(),
		network: a.networkFor(kf),
		client:  a.client(kp),
	}, nil
}

func (a *app) client(kp *wallet.KeyPair) *rpc.Client {
	cfg := rpc.ClientConfig{URL: a.rpcURL, Timeout: a.timeout}
	if kp != nil {
		cfg.Key = kp.PrivateKey
	}
	return rpc.NewClient(cfg)
}

func (a *app) networkFor(kf *wallet.KeyFile) string {
	if a.network != "" {
		return a.network
	}
	if kf != nil && kf.Network != "" {
		return kf.Network
	}
	return "mainnet"
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

// resolveGrantee accepts an address, a 40-char hex hash, or a paymail handle.
func (a *app) resolveGrantee(s string) (identity.Identity, error) {
	if paymail.IsHandle(s) {
		id, err := a.paymailResolver().Resolve(s)
		if err != nil {
			return identity.Identity{}, fmt.Errorf("resolve %s: %w", s, err)
		}
		return id, nil
	}
	return identity.Parse(s)
}

// ---- init ----

func cmdInit(a *app, args []string) error {
	fs := a.subFlags("init", "init [--words 12|24] [--index n] [--restore] [--force]")
	words := fs.Int("words", 12, "mnemonic length: 12 or 24")
	index := fs.Uint32("index", 0, "identity index under m/44'/236'/0'/0")
	restore := fs.Bool("restore", false, "read an existing mnemonic from stdin")
	force := fs.Bool("force", false, "overwrite an existing key file")
	if _, err := parse(fs, args, 0, 0); err != nil {
		return err
	}
	network := a.networkFor(nil)

	if _, err := os.Stat(a.keyFile); err == nil && !*force {
		return fmt.Errorf("key file %s already exists (use --force to replace it)", a.keyFile)
	}

	var mnemonic string
	if *restore {
		fmt.Fprint(a.errOut, "Recovery phrase: ")
		line, err := a.readLine()
		if err != nil {
			return fmt.Errorf("read mnemonic: %w", err)
		}
		mnemonic = strings.Join(strings.Fields(line), " ")
		if !wallet.ValidateMnemonic(mnemonic) {
			return wallet.ErrInvalidMnemonic
		}
	} else {
		bits := wallet.Mnemonic12Words
		if *words == 24 {
			bits = wallet.Mnemonic24Words
		} else if *words != 12 {
			return wallet.ErrInvalidEntropy
		}
		var err error
		if mnemonic, err = wallet.GenerateMnemonic(bits); err != nil {
			return err
		}
	}

	w, err := wallet.FromMnemonic(mnemonic, "", network)
	if err != nil {
		return err
	}
	kp, err := w.DeriveIdentityKey(*index)
	if err != nil {
		return err
	}

	pw, err := a.password("New key password: ", true)
	if err != nil {
		return err
	}
	if err := wallet.SaveKeyFile(a.keyFile, kp, network, pw); err != nil {
		return err
	}

	if !*restore {
		fmt.Fprintln(a.out, "Recovery phrase (write it down, it is shown once):")
		fmt.Fprintf(a.out, "  %s\n\n", mnemonic)
	}
	fmt.Fprintf(a.out, "identity: %s\n", kp.Identity().Address(network))
	fmt.Fprintf(a.out, "key file: %s\n", a.keyFile)
	return nil
}

// ---- whoami ----

func cmdWhoami(a *app, args []string) error {
	fs := a.subFlags("whoami", "whoami")
	if _, err := parse(fs, args, 0, 0); err != nil {
		return err
	}
	kf, err := wallet.ReadKeyFile(a.keyFile)
	if err != nil {
		return err
	}
	id, err := kf.Identity()
	if err != nil {
		return err
	}
	net := a.networkFor(kf)
	fmt.Fprintf(a.out, "address: %s\n", id.Address(net))
	fmt.Fprintf(a.out, "hash160: %s\n", id.Hex())
	fmt.Fprintf(a.out, "path:    %s\n", kf.Path)
	fmt.Fprintf(a.out, "network: %s\n", net)
	return nil
}

// ---- add ----

func cmdAdd(a *app, args []string) error {
	fs := a.subFlags("add", "add <reference>")
	rest, err := parse(fs, args, 1, 1)
	if err != nil {
		return err
	}
	s, err := a.open()
	if err != nil {
		return err
	}
	ctx, cancel := a.ctx()
	defer cancel()
	if err := s.client.Add(ctx, s.id, rest[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s\n", reference.Describe(rest[0]).Name)
	return nil
}

// ---- ls ----

func cmdList(a *app, args []string) error {
	fs := a.subFlags("ls", "ls [owner]")
	rest, err := parse(fs, args, 0, 1)
	if err != nil {
		return err
	}
	s, err := a.open()
	if err != nil {
		return err
	}
	target := s.id
	if len(rest) == 1 {
		if target, err = a.resolveGrantee(rest[0]); err != nil {
			return err
		}
	}

	ctx, cancel := a.ctx()
	defer cancel()
	refs, err := s.client.Display(ctx, target)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tCID\tREFERENCE")
	for _, ref := range refs {
		info := reference.Describe(ref)
		cidStr := info.CID
		if cidStr == "" {
			cidStr = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Kind, cidStr, ref)
	}
	return tw.Flush()
}

// ---- allow / disallow ----

func cmdAllow(a *app, args []string) error {
	return a.setGrant("allow", "allow <identity|alias@domain>", args, true)
}

func cmdDisallow(a *app, args []string) error {
	return a.setGrant("disallow", "disallow <identity|alias@domain>", args, false)
}

func (a *app) setGrant(name, usage string, args []string, active bool) error {
	fs := a.subFlags(name, usage)
	rest, err := parse(fs, args, 1, 1)
	if err != nil {
		return err
	}
	grantee, err := a.resolveGrantee(rest[0])
	if err != nil {
		return err
	}
	s, err := a.open()
	if err != nil {
		return err
	}

	ctx, cancel := a.ctx()
	defer cancel()
	verb := "allowed"
	if active {
		err = s.client.Allow(ctx, grantee)
	} else {
		err = s.client.Disallow(ctx, grantee)
		verb = "disallowed"
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n", verb, grantee.Address(s.network))
	return nil
}

// ---- shares ----

func cmdShares(a *app, args []string) error {
	fs := a.subFlags("shares", "shares")
	if _, err := parse(fs, args, 0, 0); err != nil {
		return err
	}
	s, err := a.open()
	if err != nil {
		return err
	}
	ctx, cancel := a.ctx()
	defer cancel()
	grants, err := s.client.ShareAccess(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GRANTEE\tACTIVE\tGRANTED\tUPDATED")
	for _, g := range grants {
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", g.Grantee.Address(s.network), g.Active,
			g.GrantedAt.Local().Format(time.DateTime), g.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// ---- status ----

func cmdStatus(a *app, args []string) error {
	fs := a.subFlags("status", "status")
	if _, err := parse(fs, args, 0, 0); err != nil {
		return err
	}
	ctx, cancel := a.ctx()
	defer cancel()
	st, err := a.client(nil).Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "version: %s\nnetwork: %s\n", st.Version, st.Network)
	fmt.Fprintf(a.out, "owners:  %d\nfiles:   %d\ngrants:  %d (%d active)\n",
		st.Stats.Owners, st.Stats.Files, st.Stats.Grants, st.Stats.ActiveGrants)
	return nil
}
