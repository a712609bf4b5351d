// Package gatewayclient is a Go client for the gateway's nonce coordination
// API. Cooperating services that submit their own transactions use it to
// acquire the wallet lock and a reserved nonce before signing, and to release
// both afterwards.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dexgate-hq/dexgate/pkg/logger"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// Client talks to one gateway instance.
type Client struct {
	endpoint   string
	family     string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a gateway client rooted at the given endpoint. Family selects
// the chain family path segment, e.g. "ethereum" or "solana".
func New(endpoint, family string, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		endpoint:   endpoint,
		family:     family,
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// Acquire takes the wallet lock and reserves the next nonce. The caller must
// Release the returned lock id when done; ttl zero selects the server default.
func (c *Client) Acquire(ctx context.Context, network, wallet string, ttl time.Duration) (models.NonceAcquireResponse, error) {
	var resp models.NonceAcquireResponse
	err := c.post(ctx, "/nonce/acquire", models.NonceAcquireRequest{
		Network:       network,
		WalletAddress: wallet,
		TTLMs:         ttl.Milliseconds(),
	}, &resp)
	return resp, err
}

// Release returns the lock. transactionSent false tells the gateway the
// reserved nonce was never consumed so it can be handed out again.
func (c *Client) Release(ctx context.Context, network, wallet, lockID string, transactionSent bool) (models.NonceReleaseResponse, error) {
	var resp models.NonceReleaseResponse
	err := c.post(ctx, "/nonce/release", models.NonceReleaseRequest{
		Network:         network,
		WalletAddress:   wallet,
		LockID:          lockID,
		TransactionSent: transactionSent,
	}, &resp)
	return resp, err
}

// Invalidate drops the gateway's cached nonce state for a wallet. Call it
// after a submission failed with a nonce error from the chain.
func (c *Client) Invalidate(ctx context.Context, network, wallet string) error {
	var resp models.NonceInvalidateResponse
	if err := c.post(ctx, "/nonce/invalidate", models.NonceInvalidateRequest{
		Network:       network,
		WalletAddress: wallet,
	}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("gateway refused nonce invalidation for %s on %s", wallet, network)
	}
	return nil
}

// Status snapshots the gateway's active wallet locks.
func (c *Client) Status(ctx context.Context) (models.NonceStatusResponse, error) {
	var resp models.NonceStatusResponse

	url := fmt.Sprintf("%s/chains/%s/nonce/status", c.endpoint, c.family)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return resp, fmt.Errorf("failed to build status request: %v", err)
	}
	err = c.send(req, &resp)
	return resp, err
}

func (c *Client) post(ctx context.Context, path string, body, into interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %v", err)
	}

	url := fmt.Sprintf("%s/chains/%s%s", c.endpoint, c.family, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, into)
}

func (c *Client) send(req *http.Request, into interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %v", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the body regardless of status code so error replies are reported
	// with their content.
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		var gatewayErr models.ErrorResponse
		if json.Unmarshal(bodyBytes, &gatewayErr) == nil && gatewayErr.Error != "" {
			return &Error{
				Kind:      gatewayErr.Error,
				Message:   gatewayErr.Message,
				Retryable: gatewayErr.Retryable,
				Status:    resp.StatusCode,
			}
		}
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, into); err != nil {
		return fmt.Errorf("failed to decode response: %v, body: %s", err, string(bodyBytes))
	}
	return nil
}

// Error is a classified error reply from the gateway.
type Error struct {
	Kind      string
	Message   string
	Retryable bool
	Status    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %s (http %d): %s", e.Kind, e.Status, e.Message)
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
