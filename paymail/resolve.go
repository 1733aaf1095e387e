package paymail

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/preethamak/BlockDrive/identity"
)

// MaxResponseSize bounds capability and PKI response bodies.
const MaxResponseSize = 64 << 10

// Capability keys for the PKI endpoint: the short alias and its BRFC ID.
const (
	capPKI     = "pki"
	capPKIBRFC = "0c4339ef99c2"
)

// HTTPClient defines the interface for HTTP requests.
// This allows tests to mock HTTP calls.
type HTTPClient interface {
	Get(url string) (*http.Response, error)
}

// DefaultHTTPClient is the production client with a 30-second timeout.
var DefaultHTTPClient HTTPClient = &http.Client{Timeout: 30 * time.Second}

// Capabilities holds the discovered capability URL templates.
type Capabilities struct {
	BSVAlias string
	PKI      string
}

// PKIResponse holds the response from a Paymail PKI endpoint.
type PKIResponse struct {
	BSVAlias string `json:"bsvalias"`
	Handle   string `json:"handle"`
	PubKey   string `json:"pubkey"`
}

type wellKnownResponse struct {
	BSVAlias     string         `json:"bsvalias"`
	Capabilities map[string]any `json:"capabilities"`
}

// Resolver turns handles into identities.
type Resolver struct {
	HTTP HTTPClient

	// DNS locates the capability host. Nil skips SRV discovery and uses
	// the handle's domain directly.
	DNS DNSResolver
}

// NewResolver returns a Resolver using the default HTTP client and a
// DNSSEC-validating resolver against upstream (empty selects 8.8.8.8:53).
func NewResolver(upstream string) *Resolver {
	return &Resolver{HTTP: DefaultHTTPClient, DNS: NewDNSSECResolver(upstream)}
}

// Host returns the host serving domain's capability document. SRV failures
// fall back to the domain itself.
func (r *Resolver) Host(domain string) string {
	if r.DNS == nil {
		return domain
	}
	endpoints, err := ResolveEndpoints(domain, r.DNS)
	if err != nil {
		return domain
	}
	host, port, err := net.SplitHostPort(endpoints[0])
	if err != nil {
		return domain
	}
	if port == "443" {
		return host
	}
	return endpoints[0]
}

func (r *Resolver) get(rawURL string, wrap error) ([]byte, error) {
	resp, err := r.HTTP.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", wrap, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", wrap, rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", wrap, err)
	}
	return body, nil
}

// Capabilities fetches https://<host>/.well-known/bsvalias for domain.
// Templates that are not HTTPS URLs are ignored.
func (r *Resolver) Capabilities(domain string) (*Capabilities, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrPaymailDiscovery)
	}

	body, err := r.get("https://"+r.Host(domain)+"/.well-known/bsvalias", ErrPaymailDiscovery)
	if err != nil {
		return nil, err
	}
	var wk wellKnownResponse
	if err := json.Unmarshal(body, &wk); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %w", ErrPaymailDiscovery, err)
	}

	caps := &Capabilities{BSVAlias: wk.BSVAlias}
	for _, key := range []string{capPKI, capPKIBRFC} {
		if tmpl, ok := wk.Capabilities[key].(string); ok && strings.HasPrefix(tmpl, "https://") {
			caps.PKI = tmpl
			break
		}
	}
	return caps, nil
}

// PubKey resolves handle to its compressed public key.
func (r *Resolver) PubKey(handle string) ([]byte, error) {
	alias, domain, err := ParseHandle(handle)
	if err != nil {
		return nil, err
	}

	caps, err := r.Capabilities(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPKIResolution, err)
	}
	if caps.PKI == "" {
		return nil, fmt.Errorf("%w: no PKI capability found for %s", ErrPKIResolution, domain)
	}

	// Escape template variables so an alias cannot rewrite the path.
	pkiURL := strings.ReplaceAll(caps.PKI, "{alias}", url.PathEscape(alias))
	pkiURL = strings.ReplaceAll(pkiURL, "{domain.tld}", url.PathEscape(domain))

	body, err := r.get(pkiURL, ErrPKIResolution)
	if err != nil {
		return nil, err
	}
	var pki PKIResponse
	if err := json.Unmarshal(body, &pki); err != nil {
		return nil, fmt.Errorf("%w: parsing PKI response: %w", ErrPKIResolution, err)
	}
	if pki.PubKey == "" {
		return nil, fmt.Errorf("%w: empty public key in response", ErrPKIResolution)
	}

	pub, err := hex.DecodeString(pki.PubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex public key: %w", ErrInvalidPubKey, err)
	}
	if err := validateCompressedPubKey(pub); err != nil {
		return nil, err
	}
	return pub, nil
}

// Resolve maps handle to the identity of its public key.
func (r *Resolver) Resolve(handle string) (identity.Identity, error) {
	raw, err := r.PubKey(handle)
	if err != nil {
		return identity.Identity{}, err
	}
	pub, err := ec.PublicKeyFromBytes(raw)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	return identity.FromPublicKey(pub)
}
