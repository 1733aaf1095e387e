package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/registry"
	"github.com/preethamak/BlockDrive/rpc"
	"github.com/preethamak/BlockDrive/wallet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type stubResolver map[string]identity.Identity

func (s stubResolver) Resolve(handle string) (identity.Identity, error) {
	if id, ok := s[handle]; ok {
		return id, nil
	}
	return identity.Identity{}, errors.New("no such handle")
}

// user is one CLI installation pointed at a shared daemon.
type user struct {
	dir      string
	url      string
	stdin    string
	password string
	resolver stubResolver
}

func (u *user) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := &app{
		in:       strings.NewReader(u.stdin),
		out:      &out,
		errOut:   &errOut,
		password: func(string, bool) (string, error) { return u.password, nil },
		resolver: u.resolver,
	}
	global := []string{"--datadir", u.dir, "--rpc", u.url, "--network", "testnet"}
	err := a.run(append(global, args...))
	return out.String(), err
}

func (u *user) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := u.run(t, args...)
	require.NoError(t, err, "blockdrive %s", strings.Join(args, " "))
	return out
}

func (u *user) identity(t *testing.T) identity.Identity {
	t.Helper()
	kf, err := wallet.ReadKeyFile(wallet.KeyFilePath(u.dir))
	require.NoError(t, err)
	id, err := kf.Identity()
	require.NoError(t, err)
	return id
}

func startDaemon(t *testing.T) string {
	t.Helper()
	reg := registry.New(registry.NewMemStore())
	srv := httptest.NewServer(rpc.NewServer(rpc.ServerConfig{
		Registry: reg,
		Logger:   zerolog.Nop(),
		Version:  "test",
		Network:  "testnet",
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestCLI_ShareFlow(t *testing.T) {
	url := startDaemon(t)
	alice := &user{dir: t.TempDir(), url: url, password: "alice-pw"}
	bob := &user{dir: t.TempDir(), url: url, password: "bob-pw", stdin: testMnemonic + "\n"}

	out := alice.mustRun(t, "init")
	assert.Contains(t, out, "Recovery phrase")
	aliceID := alice.identity(t)
	assert.Contains(t, out, "identity: "+aliceID.Address("testnet"))

	out = bob.mustRun(t, "init", "--restore")
	assert.NotContains(t, out, "Recovery phrase")
	bobID := bob.identity(t)
	bobAddr := bobID.Address("testnet")

	alice.resolver = stubResolver{"bob@example.com": bobID}

	out = alice.mustRun(t, "add", "docs/report.pdf")
	assert.Equal(t, "added report.pdf\n", out)
	alice.mustRun(t, "add", "photos/cat.png")

	// Bob has no grant yet.
	_, err := bob.run(t, "ls", aliceID.Address("testnet"))
	assert.ErrorIs(t, err, registry.ErrAccessDenied)

	out = alice.mustRun(t, "allow", "bob@example.com")
	assert.Equal(t, "allowed "+bobAddr+"\n", out)

	out = bob.mustRun(t, "ls", aliceID.Address("testnet"))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "report.pdf")
	assert.Contains(t, lines[1], "PDF Document")
	assert.Contains(t, lines[2], "PNG Image")

	out = alice.mustRun(t, "shares")
	assert.Contains(t, out, bobAddr)
	assert.Contains(t, out, "true")

	alice.mustRun(t, "disallow", bobID.Hex())
	_, err = bob.run(t, "ls", aliceID.Address("testnet"))
	assert.ErrorIs(t, err, registry.ErrAccessDenied)

	out = alice.mustRun(t, "shares")
	assert.Contains(t, out, "false")

	out = alice.mustRun(t, "status")
	assert.Contains(t, out, "files:   2")
	assert.Contains(t, out, "grants:  1 (0 active)")
}

func TestCLI_LsDefaultsToSelf(t *testing.T) {
	u := &user{dir: t.TempDir(), url: startDaemon(t), password: "pw"}
	u.mustRun(t, "init")
	u.mustRun(t, "add", "/ipfs/QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG/readme")

	out := u.mustRun(t, "ls")
	assert.Contains(t, out, "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
	assert.Contains(t, out, "readme")
}

// ---------------------------------------------------------------------------
// Key handling
// ---------------------------------------------------------------------------

func TestCLI_RestoreIsDeterministic(t *testing.T) {
	url := startDaemon(t)
	a := &user{dir: t.TempDir(), url: url, password: "x", stdin: testMnemonic + "\n"}
	b := &user{dir: t.TempDir(), url: url, password: "y", stdin: testMnemonic + "\n"}
	a.mustRun(t, "init", "--restore")
	b.mustRun(t, "init", "--restore")
	assert.Equal(t, a.identity(t), b.identity(t))
}

func TestCLI_InitRefusesOverwrite(t *testing.T) {
	u := &user{dir: t.TempDir(), password: "pw"}
	u.mustRun(t, "init")
	_, err := u.run(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	u.mustRun(t, "init", "--force")
}

func TestCLI_InitRejectsBadMnemonic(t *testing.T) {
	u := &user{dir: t.TempDir(), password: "pw", stdin: "not a real phrase\n"}
	_, err := u.run(t, "init", "--restore")
	assert.ErrorIs(t, err, wallet.ErrInvalidMnemonic)
}

func TestCLI_Whoami(t *testing.T) {
	u := &user{dir: t.TempDir(), password: "pw", stdin: testMnemonic + "\n"}
	u.mustRun(t, "init", "--restore", "--index", "2")

	out := u.mustRun(t, "whoami")
	id := u.identity(t)
	assert.Contains(t, out, "address: "+id.Address("testnet"))
	assert.Contains(t, out, "hash160: "+id.Hex())
	assert.Contains(t, out, "m/44'/236'/0'/0/2")
}

func TestCLI_WrongPassword(t *testing.T) {
	u := &user{dir: t.TempDir(), url: startDaemon(t), password: "right"}
	u.mustRun(t, "init")
	u.password = "wrong"
	_, err := u.run(t, "add", "x")
	assert.ErrorIs(t, err, wallet.ErrDecryptionFailed)
}

func TestCLI_NoKeyFile(t *testing.T) {
	u := &user{dir: t.TempDir(), password: "pw"}
	_, err := u.run(t, "add", "x")
	assert.ErrorIs(t, err, wallet.ErrKeyFileNotFound)
}

// ---------------------------------------------------------------------------
// Argument handling
// ---------------------------------------------------------------------------

func TestCLI_UnknownCommand(t *testing.T) {
	u := &user{dir: t.TempDir()}
	_, err := u.run(t, "rm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestCLI_WrongArgCount(t *testing.T) {
	u := &user{dir: t.TempDir()}
	_, err := u.run(t, "add")
	assert.Error(t, err)
	_, err = u.run(t, "allow", "a", "b")
	assert.Error(t, err)
}

func TestCLI_BadGrantee(t *testing.T) {
	u := &user{dir: t.TempDir(), password: "pw", resolver: stubResolver{}}
	_, err := u.run(t, "allow", "not-an-address")
	assert.ErrorIs(t, err, identity.ErrInvalidIdentity)

	_, err = u.run(t, "allow", "nobody@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve nobody@example.com")
}

func TestCLI_KeyFileFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.key")
	u := &user{dir: dir, password: "pw"}
	u.mustRun(t, "--keyfile", path, "init")
	kf, err := wallet.ReadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "testnet", kf.Network)
}
