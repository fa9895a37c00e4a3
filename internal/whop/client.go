package whop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
)

// Client talks to the Whop REST API and verifies user tokens locally.
type Client struct {
	logger  *logger.Logger
	baseURL string
	apiKey  string
	tokens  *TokenVerifier
	client  *http.Client
}

// NewClient creates a Whop client. tokens may be nil, in which case every credential is rejected.
func NewClient(baseURL, apiKey string, tokens *TokenVerifier, logger *logger.Logger) *Client {
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tokens:  tokens,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) VerifyCredential(_ context.Context, token string) (string, error) {
	if c.tokens == nil {
		return "", fmt.Errorf("%w: token verification is not configured", models.ErrUnauthorized)
	}
	return c.tokens.Verify(token)
}

// CheckEntitlement asks whether userID can access resourceID (an experience or a product).
func (c *Client) CheckEntitlement(ctx context.Context, resourceID, userID string) (*models.Entitlement, error) {
	endpoint := fmt.Sprintf("%s/users/%s/access/%s", c.baseURL, url.PathEscape(userID), url.PathEscape(resourceID))

	var entitlement models.Entitlement
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &entitlement); err != nil {
		return nil, err
	}
	return &entitlement, nil
}

// GrantProduct creates a membership of productID for userID.
func (c *Client) GrantProduct(ctx context.Context, productID, userID string) error {
	body := map[string]string{
		"user_id":    userID,
		"product_id": productID,
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/memberships", body, nil); err != nil {
		return err
	}
	c.logger.Info("Granted product access", "user_id", userID, "product_id", productID)
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", models.ErrUpstreamUnavailable, method, endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", models.ErrUpstreamUnavailable, method, endpoint, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", models.ErrUpstreamUnavailable, err)
	}
	return nil
}
