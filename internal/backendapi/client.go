// Package backendapi provides the HTTP client for the SpeechLink backend's
// user-facing resources: voice preferences, favorites, and the voice catalog
// search. The client distinguishes transient transport failures from
// permanent rejections so callers can degrade gracefully (see errors.go).
package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Naqued/speechlink/pkg/types"
)

const (
	settingsPath  = "/api/user/settings"
	favoritesPath = "/api/user/favorite-voices"
	catalogPath   = "/api/voices/search"
	loginPath     = "/api/auth/login"
)

// TokenSource supplies the bearer token attached to each request.
type TokenSource func(ctx context.Context) (string, error)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTokenSource sets the bearer-token source for authenticated requests.
func WithTokenSource(ts TokenSource) Option {
	return func(cl *Client) {
		cl.tokens = ts
	}
}

// Client talks to the SpeechLink backend REST API. Create it with [New].
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// New creates a backend API client. baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backendapi: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ─── Authentication ───

// tokenEnvelope matches the assorted shapes backend auth responses use for
// the session token. Servers have shipped all three field names; the client
// accepts any of them.
type tokenEnvelope struct {
	Token        string `json:"token"`
	AccessToken  string `json:"access_token"`
	AccessToken2 string `json:"accessToken"`
}

// normalizeToken extracts the session token from an auth response body,
// accepting the "token", "access_token", and "accessToken" field spellings.
func normalizeToken(body []byte) (string, error) {
	var env tokenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("backendapi: decode auth response: %w", err)
	}
	for _, t := range []string{env.Token, env.AccessToken, env.AccessToken2} {
		if t != "" {
			return t, nil
		}
	}
	return "", errors.New("backendapi: auth response carries no token")
}

// Login authenticates with the backend and returns the session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})

	body, err := c.do(ctx, http.MethodPost, loginPath, payload, "login")
	if err != nil {
		return "", err
	}
	return normalizeToken(body)
}

// ─── Preferences ───

// GetUserSettings fetches the user's voice preference record.
func (c *Client) GetUserSettings(ctx context.Context) (*types.VoicePreference, error) {
	body, err := c.do(ctx, http.MethodGet, settingsPath, nil, "get settings")
	if err != nil {
		return nil, err
	}

	var pref types.VoicePreference
	if err := json.Unmarshal(body, &pref); err != nil {
		return nil, fmt.Errorf("backendapi: decode settings: %w", err)
	}
	return &pref, nil
}

// UpdateVoicePreference replaces the user's voice preference record.
func (c *Client) UpdateVoicePreference(ctx context.Context, pref types.VoicePreference) error {
	payload, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("backendapi: marshal preference: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, settingsPath, payload, "update preference")
	return err
}

// ─── Favorites ───

// favoritesEnvelope is the response shape of the favorites listing.
type favoritesEnvelope struct {
	Favorites []types.FavoriteVoice `json:"favorites"`
}

// GetFavorites fetches the user's favorite voices in backend order.
func (c *Client) GetFavorites(ctx context.Context) ([]types.FavoriteVoice, error) {
	body, err := c.do(ctx, http.MethodGet, favoritesPath, nil, "get favorites")
	if err != nil {
		return nil, err
	}

	var env favoritesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("backendapi: decode favorites: %w", err)
	}
	return env.Favorites, nil
}

// AddFavorite registers a voice in the user's favorite set.
func (c *Client) AddFavorite(ctx context.Context, fav types.FavoriteVoice) error {
	payload, err := json.Marshal(fav)
	if err != nil {
		return fmt.Errorf("backendapi: marshal favorite: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, favoritesPath, payload, "add favorite")
	return err
}

// RemoveFavorite removes a voice from the user's favorite set.
func (c *Client) RemoveFavorite(ctx context.Context, voiceID string) error {
	_, err := c.do(ctx, http.MethodDelete, favoritesPath+"/"+url.PathEscape(voiceID), nil, "remove favorite")
	return err
}

// ─── Voice catalog ───

// CatalogPage is one page of voice search results.
type CatalogPage struct {
	Voices  []types.Voice `json:"voices"`
	HasMore bool          `json:"has_more"`
}

// SearchVoices queries the backend voice catalog. The provider filter is
// forwarded only for ElevenLabs; the backend cannot filter other providers,
// so the catalog layer post-filters those client-side.
func (c *Client) SearchVoices(ctx context.Context, query, language string, provider types.Provider, page, pageSize int) (*CatalogPage, error) {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	if language != "" {
		q.Set("language", language)
	}
	if provider == types.ProviderElevenLabs {
		q.Set("provider", string(provider))
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	body, err := c.do(ctx, http.MethodGet, catalogPath+"?"+q.Encode(), nil, "search voices")
	if err != nil {
		return nil, err
	}

	var pageResp CatalogPage
	if err := json.Unmarshal(body, &pageResp); err != nil {
		return nil, fmt.Errorf("backendapi: decode catalog page: %w", err)
	}
	return &pageResp, nil
}

// ─── Plumbing ───

// errorResponse is the JSON error body the backend returns on failures.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs one request and maps failures onto the package error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, op string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("backendapi: %s: build request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("backendapi: %s: token source: %w", op, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, op)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, op)
	default:
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		msg := er.Message
		if msg == "" {
			msg = er.Error
		}
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
}
