package paymail

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preethamak/BlockDrive/identity"
)

// ---- mocks ----

type mockDNSResolver struct {
	srv map[string][]*net.SRV
	err error
}

func (m *mockDNSResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	if m.err != nil {
		return "", nil, m.err
	}
	records, ok := m.srv[fmt.Sprintf("_%s._%s.%s", service, proto, name)]
	if !ok {
		return "", nil, fmt.Errorf("no SRV records for _%s._%s.%s", service, proto, name)
	}
	return "", records, nil
}

// responseMockHTTPClient serves canned bodies keyed by URL.
type responseMockHTTPClient struct {
	bodies    map[string]string
	status    map[string]int
	requested []string
}

func (m *responseMockHTTPClient) Get(url string) (*http.Response, error) {
	m.requested = append(m.requested, url)
	body, ok := m.bodies[url]
	if !ok {
		return nil, fmt.Errorf("no mock response for %s", url)
	}
	code := http.StatusOK
	if c, ok := m.status[url]; ok {
		code = c
	}
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(body))}, nil
}

const wellKnown = `{"bsvalias":"1.0","capabilities":{"pki":"https://example.com/api/id/{alias}@{domain.tld}"}}`

func newPubKey(t *testing.T) (string, identity.Identity) {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	id, err := identity.FromPublicKey(priv.PubKey())
	require.NoError(t, err)
	return hex.EncodeToString(priv.PubKey().Compressed()), id
}

// ---- handles ----

func TestParseHandle(t *testing.T) {
	alias, domain, err := ParseHandle("  Alice.B+drive@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "Alice.B+drive", alias)
	assert.Equal(t, "example.com", domain)
}

func TestParseHandle_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"alice",
		"@example.com",
		"alice@",
		"alice@localhost",
		"a@b@example.com",
		"al ice@example.com",
		"alice@exa_mple.com",
		"alice@.com",
		"../x@example.com",
	} {
		t.Run(s, func(t *testing.T) {
			_, _, err := ParseHandle(s)
			assert.ErrorIs(t, err, ErrInvalidHandle)
			assert.False(t, IsHandle(s))
		})
	}
}

func TestIsHandle_AddressIsNotHandle(t *testing.T) {
	assert.False(t, IsHandle("1BoatSLRHtKNngkdXEeobR76b53LETtpyT"))
	assert.True(t, IsHandle("alice@example.com"))
}

// ---- SRV ----

func TestResolveEndpoints_Sorted(t *testing.T) {
	dnsr := &mockDNSResolver{srv: map[string][]*net.SRV{
		"_bsvalias._tcp.example.com": {
			{Target: "c.example.com.", Port: 443, Priority: 20, Weight: 10},
			{Target: "a.example.com.", Port: 8443, Priority: 10, Weight: 1},
			{Target: "b.example.com.", Port: 443, Priority: 10, Weight: 50},
		},
	}}
	endpoints, err := ResolveEndpoints("example.com", dnsr)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.example.com:443", "a.example.com:8443", "c.example.com:443"}, endpoints)
}

func TestResolveEndpoints_Errors(t *testing.T) {
	_, err := ResolveEndpoints("", &mockDNSResolver{})
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	_, err = ResolveEndpoints("example.com", &mockDNSResolver{err: errors.New("timeout")})
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	empty := &mockDNSResolver{srv: map[string][]*net.SRV{"_bsvalias._tcp.example.com": {}}}
	_, err = ResolveEndpoints("example.com", empty)
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestResolver_Host(t *testing.T) {
	dnsr := &mockDNSResolver{srv: map[string][]*net.SRV{
		"_bsvalias._tcp.a.com": {{Target: "pm.a.com.", Port: 443}},
		"_bsvalias._tcp.b.com": {{Target: "pm.b.com.", Port: 8443}},
	}}
	r := &Resolver{DNS: dnsr}
	assert.Equal(t, "pm.a.com", r.Host("a.com"))
	assert.Equal(t, "pm.b.com:8443", r.Host("b.com"))
	assert.Equal(t, "c.com", r.Host("c.com"), "falls back to the domain")

	assert.Equal(t, "a.com", (&Resolver{}).Host("a.com"))
}

// ---- capabilities ----

func TestCapabilities(t *testing.T) {
	mock := &responseMockHTTPClient{bodies: map[string]string{
		"https://example.com/.well-known/bsvalias": wellKnown,
	}}
	caps, err := (&Resolver{HTTP: mock}).Capabilities("example.com")
	require.NoError(t, err)
	assert.Equal(t, "1.0", caps.BSVAlias)
	assert.Equal(t, "https://example.com/api/id/{alias}@{domain.tld}", caps.PKI)
}

func TestCapabilities_BRFCKey(t *testing.T) {
	mock := &responseMockHTTPClient{bodies: map[string]string{
		"https://example.com/.well-known/bsvalias": `{"bsvalias":"1.0","capabilities":{"0c4339ef99c2":"https://example.com/pki/{alias}"}}`,
	}}
	caps, err := (&Resolver{HTTP: mock}).Capabilities("example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pki/{alias}", caps.PKI)
}

func TestCapabilities_UsesSRVHost(t *testing.T) {
	mock := &responseMockHTTPClient{bodies: map[string]string{
		"https://pm.example.com:8443/.well-known/bsvalias": wellKnown,
	}}
	dnsr := &mockDNSResolver{srv: map[string][]*net.SRV{
		"_bsvalias._tcp.example.com": {{Target: "pm.example.com.", Port: 8443}},
	}}
	_, err := (&Resolver{HTTP: mock, DNS: dnsr}).Capabilities("example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://pm.example.com:8443/.well-known/bsvalias"}, mock.requested)
}

func TestCapabilities_RejectsNonHTTPS(t *testing.T) {
	mock := &responseMockHTTPClient{bodies: map[string]string{
		"https://example.com/.well-known/bsvalias": `{"bsvalias":"1.0","capabilities":{"pki":"http://evil.com/{alias}"}}`,
	}}
	caps, err := (&Resolver{HTTP: mock}).Capabilities("example.com")
	require.NoError(t, err)
	assert.Empty(t, caps.PKI)
}

func TestCapabilities_Errors(t *testing.T) {
	r := &Resolver{HTTP: &responseMockHTTPClient{
		bodies: map[string]string{
			"https://down.com/.well-known/bsvalias": "oops",
			"https://junk.com/.well-known/bsvalias": "{not json",
		},
		status: map[string]int{"https://down.com/.well-known/bsvalias": http.StatusBadGateway},
	}}

	_, err := r.Capabilities("")
	assert.ErrorIs(t, err, ErrPaymailDiscovery)
	_, err = r.Capabilities("down.com")
	assert.ErrorIs(t, err, ErrPaymailDiscovery)
	_, err = r.Capabilities("junk.com")
	assert.ErrorIs(t, err, ErrPaymailDiscovery)
	_, err = r.Capabilities("missing.com")
	assert.ErrorIs(t, err, ErrPaymailDiscovery)
}

func TestCapabilities_OversizedResponse(t *testing.T) {
	big := `{"bsvalias":"1.0","capabilities":{"pki":"https://example.com/` +
		strings.Repeat("x", MaxResponseSize) + `"}}`
	r := &Resolver{HTTP: &responseMockHTTPClient{bodies: map[string]string{
		"https://example.com/.well-known/bsvalias": big,
	}}}
	_, err := r.Capabilities("example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing JSON")
}

// ---- resolution ----

func TestResolve(t *testing.T) {
	pubHex, want := newPubKey(t)
	r := &Resolver{HTTP: &responseMockHTTPClient{bodies: map[string]string{
		"https://example.com/.well-known/bsvalias":      wellKnown,
		"https://example.com/api/id/alice@example.com": `{"bsvalias":"1.0","handle":"alice@example.com","pubkey":"` + pubHex + `"}`,
	}}}

	got, err := r.Resolve("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_InvalidHandle(t *testing.T) {
	_, err := (&Resolver{}).Resolve("not-a-handle")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestPubKey_Errors(t *testing.T) {
	tests := []struct {
		name string
		pki  string
		err  error
	}{
		{"empty pubkey", `{"pubkey":""}`, ErrPKIResolution},
		{"bad json", `{`, ErrPKIResolution},
		{"bad hex", `{"pubkey":"zz"}`, ErrInvalidPubKey},
		{"wrong length", `{"pubkey":"02abcd"}`, ErrInvalidPubKey},
		{"uncompressed prefix", `{"pubkey":"04` + strings.Repeat("ab", 32) + `"}`, ErrInvalidPubKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{HTTP: &responseMockHTTPClient{bodies: map[string]string{
				"https://example.com/.well-known/bsvalias":      wellKnown,
				"https://example.com/api/id/alice@example.com": tt.pki,
			}}}
			_, err := r.PubKey("alice@example.com")
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPubKey_NoPKICapability(t *testing.T) {
	r := &Resolver{HTTP: &responseMockHTTPClient{bodies: map[string]string{
		"https://example.com/.well-known/bsvalias": `{"bsvalias":"1.0","capabilities":{}}`,
	}}}
	_, err := r.PubKey("alice@example.com")
	assert.ErrorIs(t, err, ErrPKIResolution)
}

func TestPubKey_EscapesTemplateVars(t *testing.T) {
	mock := &responseMockHTTPClient{bodies: map[string]string{
		"https://example.com/.well-known/bsvalias": `{"capabilities":{"pki":"https://example.com/pki/{alias}/{domain.tld}"}}`,
	}}
	_, _ = (&Resolver{HTTP: mock}).PubKey("a+b@example.com")
	require.Len(t, mock.requested, 2)
	assert.Equal(t, "https://example.com/pki/a+b/example.com", mock.requested[1])
}

func TestValidateCompressedPubKey(t *testing.T) {
	good := append([]byte{0x03}, bytes.Repeat([]byte{1}, 32)...)
	assert.NoError(t, validateCompressedPubKey(good))
	assert.ErrorIs(t, validateCompressedPubKey(good[:32]), ErrInvalidPubKey)
	bad := append([]byte{0x04}, good[1:]...)
	assert.ErrorIs(t, validateCompressedPubKey(bad), ErrInvalidPubKey)
}
