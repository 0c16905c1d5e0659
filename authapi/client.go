package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vital-labs/sessionkit"
)

// credentialKind selects which sentinel a 401/403 maps to: rejected inputs
// on login/register, a dead token everywhere else.
type credentialKind uint8

const (
	kindCredentials credentialKind = iota
	kindToken
)

// Client speaks the authentication REST API. Construct with [New]; the zero
// value is not usable.
type Client struct {
	baseURL  string
	http     *http.Client
	deviceID string
	log      zerolog.Logger
}

var _ sessionkit.AuthBackend = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the transport, including its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithDeviceID pins the device installation identifier sent with every
// request. Defaults to a random UUID per Client; hosts that persist an
// install ID should supply it here so the backend sees a stable device.
func WithDeviceID(id string) Option {
	return func(c *Client) { c.deviceID = id }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		deviceID: uuid.NewString(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type userDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokensDTO struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type authData struct {
	User   userDTO   `json:"user"`
	Tokens tokensDTO `json:"tokens"`
}

func (u userDTO) identity() sessionkit.UserIdentity {
	return sessionkit.UserIdentity{ID: u.ID, Email: u.Email, Name: u.Name}
}

func (t tokensDTO) grant() (sessionkit.TokenGrant, error) {
	if t.AccessToken == "" || t.RefreshToken == "" {
		return sessionkit.TokenGrant{}, sessionkit.ErrMalformedTokenResponse
	}
	return sessionkit.TokenGrant{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    time.Duration(t.ExpiresIn) * time.Second,
	}, nil
}

// Login implements [sessionkit.AuthBackend].
func (c *Client) Login(ctx context.Context, creds sessionkit.Credentials) (sessionkit.UserIdentity, sessionkit.TokenGrant, error) {
	body := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}
	return c.authCall(ctx, "/auth/login", body)
}

// Register implements [sessionkit.AuthBackend].
func (c *Client) Register(ctx context.Context, reg sessionkit.Registration) (sessionkit.UserIdentity, sessionkit.TokenGrant, error) {
	body := map[string]any{
		"email":    reg.Email,
		"password": reg.Password,
		"name":     reg.Name,
	}
	if len(reg.Profile) > 0 {
		body["profile"] = reg.Profile
	}
	return c.authCall(ctx, "/auth/register", body)
}

func (c *Client) authCall(ctx context.Context, path string, body any) (sessionkit.UserIdentity, sessionkit.TokenGrant, error) {
	raw, err := c.do(ctx, http.MethodPost, path, body, "", kindCredentials)
	if err != nil {
		return sessionkit.UserIdentity{}, sessionkit.TokenGrant{}, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return sessionkit.UserIdentity{}, sessionkit.TokenGrant{}, fmt.Errorf("%w: %v", sessionkit.ErrMalformedTokenResponse, err)
	}
	if !env.Success {
		return sessionkit.UserIdentity{}, sessionkit.TokenGrant{}, fmt.Errorf("%w: %s", sessionkit.ErrInvalidCredentials, env.Message)
	}
	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return sessionkit.UserIdentity{}, sessionkit.TokenGrant{}, fmt.Errorf("%w: %v", sessionkit.ErrMalformedTokenResponse, err)
	}
	grant, err := data.Tokens.grant()
	if err != nil {
		return sessionkit.UserIdentity{}, sessionkit.TokenGrant{}, err
	}
	return data.User.identity(), grant, nil
}

// Refresh implements [sessionkit.AuthBackend]. The refresh response is a
// bare token object, not the login envelope.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (sessionkit.TokenGrant, error) {
	raw, err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, "", kindToken)
	if err != nil {
		return sessionkit.TokenGrant{}, err
	}

	var tokens tokensDTO
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return sessionkit.TokenGrant{}, fmt.Errorf("%w: %v", sessionkit.ErrMalformedTokenResponse, err)
	}
	return tokens.grant()
}

// Logout implements [sessionkit.AuthBackend].
func (c *Client) Logout(ctx context.Context, accessToken string, allDevices bool) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]bool{
		"allDevices": allDevices,
	}, accessToken, kindToken)
	return err
}

// CurrentUser implements [sessionkit.AuthBackend].
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (sessionkit.UserIdentity, error) {
	raw, err := c.do(ctx, http.MethodGet, "/user/me", nil, accessToken, kindToken)
	if err != nil {
		return sessionkit.UserIdentity{}, err
	}

	var payload struct {
		User userDTO `json:"user"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return sessionkit.UserIdentity{}, fmt.Errorf("%w: %v", sessionkit.ErrMalformedTokenResponse, err)
	}
	return payload.User.identity(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, kind credentialKind) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Device-ID", c.deviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("authapi: request failed")
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", sessionkit.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessionkit.ErrNetworkUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", sessionkit.ErrServerUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if kind == kindCredentials {
			return nil, fmt.Errorf("%w: status %d", sessionkit.ErrInvalidCredentials, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", sessionkit.ErrTokenInvalid, resp.StatusCode)
	case resp.StatusCode >= 400:
		if kind == kindCredentials {
			return nil, fmt.Errorf("%w: status %d: %s", sessionkit.ErrInvalidCredentials, resp.StatusCode, apiMessage(raw))
		}
		return nil, fmt.Errorf("%w: status %d: %s", sessionkit.ErrTokenInvalid, resp.StatusCode, apiMessage(raw))
	}

	return raw, nil
}

func apiMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Message == "" {
		return "request rejected"
	}
	return env.Message
}
