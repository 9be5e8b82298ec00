// internal/storefront/api/client.go

// Package api is the storefront's client for the server-of-record HTTP API
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/domain/user"
)

// ErrUnauthorized matches any *Error with status 401
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-2xx reply from the server
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 replies
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Credentials select the cart a request acts on. A token wins over a guest id.
type Credentials struct {
	Token       string
	GuestCartID string
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client talks to the server-of-record
type Client struct {
	baseURL     string
	guestHeader string
	httpClient  *http.Client
}

// New creates a client from the storefront configuration
func New(cfg *config.Config) *Client {
	return NewClient(cfg.Storefront.APIBaseURL, cfg.Cart.GuestHeader, &http.Client{Timeout: cfg.Storefront.RequestTimeout})
}

// NewClient creates a client for baseURL, e.g. http://host/api/v1
func NewClient(baseURL, guestHeader string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		guestHeader: guestHeader,
		httpClient:  httpClient,
	}
}

// Login exchanges credentials for an access token
func (c *Client) Login(ctx context.Context, email, password string) (*user.AuthResponse, error) {
	var resp user.AuthResponse
	body := user.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", Credentials{}, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProductOptions fetches a product's features and group products
func (c *Client) ProductOptions(ctx context.Context, productID uint) (*catalog.Options, error) {
	var opts catalog.Options
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d/options", productID), Credentials{}, nil, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// ViewCart fetches the server cart
func (c *Client) ViewCart(ctx context.Context, cred Credentials) (*cart.View, error) {
	var view cart.View
	if err := c.do(ctx, http.MethodGet, "/cart", cred, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateCart applies one quantity change on the server
func (c *Client) UpdateCart(ctx context.Context, cred Credentials, req *cart.UpdateRequest) (*cart.UpdateResult, error) {
	var result cart.UpdateResult
	if err := c.do(ctx, http.MethodPost, "/cart/update", cred, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MergeCart folds the guest cart into the authenticated user's cart
func (c *Client) MergeCart(ctx context.Context, token, guestCartID string) (*cart.View, error) {
	var view cart.View
	body := cart.MergeRequest{GuestCartID: guestCartID}
	if err := c.do(ctx, http.MethodPost, "/cart/merge", Credentials{Token: token}, body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) do(ctx context.Context, method, path string, cred Credentials, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	} else if cred.GuestCartID != "" {
		req.Header.Set(c.guestHeader, cred.GuestCartID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
	}
	return nil
}
