package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/preethamak/BlockDrive/auth"
	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/registry"
)

// ClientConfig holds the connection parameters for a daemon.
type ClientConfig struct {
	URL     string
	Key     *ec.PrivateKey // nil limits the client to status
	Timeout time.Duration
	Clock   func() time.Time
}

// Client is a JSON-RPC 1.0 client for the registry daemon. Each call is
// signed with the configured identity key.
type Client struct {
	url    string
	key    *ec.PrivateKey
	now    func() time.Time
	client *http.Client
	nextID atomic.Int64
}

// NewClient creates a client with a pooled HTTP transport.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Client{
		url: cfg.URL,
		key: cfg.Key,
		now: now,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Identity returns the identity calls are made as.
func (c *Client) Identity() (identity.Identity, error) {
	if c.key == nil {
		return identity.Identity{}, ErrNoKey
	}
	return identity.FromPublicKey(c.key.PubKey())
}

// Call invokes method with params and decodes the result into result.
//
// Call returns ErrConnectionFailed if the HTTP request fails and
// ErrInvalidResponse if the response cannot be decoded. Server-side errors
// are returned as *Error, which unwraps to the matching sentinel.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	reqBody := struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int64  `json:"id"`
		Method  string `json:"method"`
		Params  []any  `json:"params"`
	}{"1.0", c.nextID.Add(1), method, params}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("rpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if method != MethodStatus {
		if c.key == nil {
			return ErrNoKey
		}
		creds, err := auth.Sign(c.key, method, body, c.now())
		if err != nil {
			return fmt.Errorf("rpc: %w", err)
		}
		pub, ts, nonce, sig := creds.Encode()
		req.Header.Set(HeaderPubKey, pub)
		req.Header.Set(HeaderTimestamp, ts)
		req.Header.Set(HeaderNonce, nonce)
		req.Header.Set(HeaderSignature, sig)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}

// Add records ref under owner. The daemon rejects an owner other than the
// client's own identity.
func (c *Client) Add(ctx context.Context, owner identity.Identity, ref string) error {
	return c.Call(ctx, MethodAdd, []any{owner.String(), ref}, nil)
}

// Display fetches target's file list.
func (c *Client) Display(ctx context.Context, target identity.Identity) ([]string, error) {
	var files []string
	if err := c.Call(ctx, MethodDisplay, []any{target.String()}, &files); err != nil {
		return nil, err
	}
	if files == nil {
		files = []string{}
	}
	return files, nil
}

// Allow grants grantee access to the client's list.
func (c *Client) Allow(ctx context.Context, grantee identity.Identity) error {
	return c.Call(ctx, MethodAllow, []any{grantee.String()}, nil)
}

// Disallow revokes grantee's access to the client's list.
func (c *Client) Disallow(ctx context.Context, grantee identity.Identity) error {
	return c.Call(ctx, MethodDisallow, []any{grantee.String()}, nil)
}

// ShareAccess lists the client's grants.
func (c *Client) ShareAccess(ctx context.Context) ([]registry.AccessGrant, error) {
	var grants []registry.AccessGrant
	if err := c.Call(ctx, MethodShareAccess, nil, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

// Status fetches daemon status. It needs no key.
func (c *Client) Status(ctx context.Context) (StatusResult, error) {
	var st StatusResult
	err := c.Call(ctx, MethodStatus, nil, &st)
	return st, err
}
