package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	aptos "github.com/aptos-labs/aptos-go-sdk"
	"go.uber.org/zap"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/scheme"
)

// MainnetURL is the public mainnet fullnode.
const MainnetURL = "https://fullnode.mainnet.aptoslabs.com"

// errorCodeAccountNotFound is the fullnode error code for an account with no
// on-chain resource yet.
const errorCodeAccountNotFound = "account_not_found"

// NodeClient reads authentication keys from a fullnode REST API
type NodeClient struct {
	node       *aptos.NodeClient
	httpClient *http.Client
	logger     *zap.Logger
}

// NodeOption configures a NodeClient
type NodeOption func(*NodeClient)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) NodeOption {
	return func(c *NodeClient) {
		c.httpClient = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) NodeOption {
	return func(c *NodeClient) {
		c.logger = logger
	}
}

// NewNodeClient creates a client for the fullnode at baseURL, the REST root
// without the /v1 suffix.
func NewNodeClient(baseURL string, opts ...NodeOption) (*NodeClient, error) {
	c := &NodeClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	node, err := aptos.NewNodeClientWithHttpClient(strings.TrimRight(baseURL, "/")+"/v1", 0, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create fullnode client: %w", err)
	}
	c.node = node
	return c, nil
}

type nodeError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

type accountResult struct {
	info aptos.AccountInfo
	err  error
}

// AuthenticationKey returns the key stored for address. An account the node
// reports as not found has never rotated, so its address is its key.
func (c *NodeClient) AuthenticationKey(ctx context.Context, address core.Address) (scheme.AuthenticationKey, error) {
	var key scheme.AuthenticationKey
	if err := ctx.Err(); err != nil {
		return key, fmt.Errorf("%w: %v", core.ErrAccountLookup, err)
	}

	done := make(chan accountResult, 1)
	go func() {
		info, err := c.node.Account(aptos.AccountAddress(address))
		done <- accountResult{info: info, err: err}
	}()

	var res accountResult
	select {
	case <-ctx.Done():
		return key, fmt.Errorf("%w: %v", core.ErrAccountLookup, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return c.lookupFailed(address, res.err)
	}

	raw, err := res.info.AuthenticationKey()
	if err != nil || len(raw) != len(key) {
		return key, fmt.Errorf("%w: malformed authentication key %q", core.ErrAccountLookup, res.info.AuthenticationKeyHex)
	}
	copy(key[:], raw)
	return key, nil
}

func (c *NodeClient) lookupFailed(address core.Address, err error) (scheme.AuthenticationKey, error) {
	var httpErr *aptos.HttpError
	if !errors.As(err, &httpErr) {
		return scheme.AuthenticationKey{}, fmt.Errorf("%w: %s: %v", core.ErrAccountLookup, address, err)
	}

	body := httpErr.Body
	if httpErr.StatusCode == http.StatusNotFound {
		var nodeErr nodeError
		if json.Unmarshal(body, &nodeErr) == nil && nodeErr.ErrorCode == errorCodeAccountNotFound {
			c.logger.Debug("account not found, using address as authentication key", zap.String("address", address.String()))
			return scheme.AuthenticationKey(address), nil
		}
	}

	if len(body) > 512 {
		body = body[:512]
	}
	return scheme.AuthenticationKey{}, fmt.Errorf("%w: %s: status %d: %s", core.ErrAccountLookup, address, httpErr.StatusCode, strings.TrimSpace(string(body)))
}
