package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// APIError is a non-2xx response from the provider. Body text is kept for
// logs only.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity %s: status %d", e.Op, e.Status)
}

// Session is the token pair returned by a successful code exchange.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// Client calls the provider's auth API.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	http       *http.Client

	lookups singleflight.Group
}

// NewClient returns a client for the provider at baseURL.
func NewClient(baseURL, anonKey, serviceKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		http:       hc,
	}
}

// Configured reports whether login can be offered.
func (c *Client) Configured() bool { return c.baseURL != "" && c.anonKey != "" }

// NewPKCE returns a fresh verifier and its S256 challenge.
func NewPKCE() (verifier, challenge string) {
	verifier = oauth2.GenerateVerifier()
	return verifier, oauth2.S256ChallengeFromVerifier(verifier)
}

// AuthorizeURL builds the provider login URL for an OAuth provider such as
// "google" or "github".
func (c *Client) AuthorizeURL(provider, redirectTo, challenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "s256")
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, bearer string, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	apikey := c.anonKey
	if bearer == c.serviceKey && c.serviceKey != "" {
		apikey = c.serviceKey
	}
	req.Header.Set("apikey", apikey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity %s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{Op: op, Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("identity %s: decode: %w", op, err)
	}
	return nil
}

// ExchangeCode trades an authorization code and PKCE verifier for a session.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (Session, error) {
	var s Session
	err := c.do(ctx, "exchange", http.MethodPost, "/auth/v1/token?grant_type=pkce",
		map[string]string{"auth_code": code, "code_verifier": verifier}, "", &s)
	if err == nil && s.AccessToken == "" {
		err = fmt.Errorf("identity exchange: empty access token")
	}
	return s, err
}

// Logout revokes the session behind accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, "logout", http.MethodPost, "/auth/v1/logout", nil, accessToken, nil)
}

type adminUsers struct {
	Users []struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"users"`
}

// LookupByEmail finds the user id registered with email (case-insensitive,
// exact match). Concurrent lookups for one address share a request.
func (c *Client) LookupByEmail(ctx context.Context, email string) (string, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", false, nil
	}
	if c.serviceKey == "" {
		return "", false, fmt.Errorf("identity lookup: service role key not configured")
	}
	v, err, _ := c.lookups.Do(email, func() (any, error) {
		var page adminUsers
		path := "/auth/v1/admin/users?" + url.Values{"filter": {email}, "per_page": {"50"}}.Encode()
		if err := c.do(ctx, "lookup", http.MethodGet, path, nil, c.serviceKey, &page); err != nil {
			return "", err
		}
		for _, u := range page.Users {
			if strings.EqualFold(u.Email, email) {
				return u.ID, nil
			}
		}
		return "", nil
	})
	if err != nil {
		return "", false, err
	}
	id := v.(string)
	return id, id != "", nil
}
