// Package backend provides a synth.Provider backed by the SpeechLink
// backend's multi-provider synthesis endpoint. The backend arbitrates between
// vendors server-side; this client sends one JSON request and receives one
// binary audio payload.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Naqued/speechlink/pkg/provider/synth"
	"github.com/Naqued/speechlink/pkg/types"
)

const (
	defaultPath = "/api/tts"

	// maxPayloadSize caps the audio payload read from the backend. A single
	// utterance should never come close to this.
	maxPayloadSize = 16 << 20
)

// TokenSource supplies the bearer token attached to each request. It is a
// function so callers can plug in refreshing token stores.
type TokenSource func(ctx context.Context) (string, error)

// Option is a functional option for configuring the backend Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for synthesis requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithPath overrides the synthesis endpoint path (default "/api/tts").
func WithPath(path string) Option {
	return func(p *Provider) {
		p.path = path
	}
}

// WithTokenSource sets the bearer-token source for authenticated requests.
func WithTokenSource(ts TokenSource) Option {
	return func(p *Provider) {
		p.tokens = ts
	}
}

// Provider implements synth.Provider against the SpeechLink backend.
type Provider struct {
	baseURL    string
	path       string
	tokens     TokenSource
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ synth.Provider = (*Provider)(nil)

// New creates a backend Provider. baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       defaultPath,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesizeRequest is the JSON payload sent to the backend.
type synthesizeRequest struct {
	Text     string                  `json:"text"`
	VoiceID  string                  `json:"voiceId,omitempty"`
	Provider string                  `json:"provider,omitempty"`
	Settings *types.SynthesisOptions `json:"settings,omitempty"`
}

// errorResponse is the JSON error body returned on non-2xx statuses.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Synthesize POSTs the request and returns the binary audio payload.
func (p *Provider) Synthesize(ctx context.Context, req synth.Request) (*synth.Result, error) {
	body := synthesizeRequest{
		Text:     req.Text,
		VoiceID:  req.VoiceID,
		Provider: string(req.Provider),
	}
	if req.Options != (types.SynthesisOptions{}) {
		opts := req.Options
		body.Settings = &opts
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("backend: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/*")

	if p.tokens != nil {
		token, err := p.tokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("backend: token source: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("backend: read payload: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("backend: empty audio payload")
	}

	return &synth.Result{
		Audio:       audio,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// decodeError turns a non-2xx response into a descriptive error, preferring
// the backend's JSON error body when present.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil {
		msg := er.Message
		if msg == "" {
			msg = er.Error
		}
		if msg != "" {
			return fmt.Errorf("backend: synthesis failed: status %d: %s", resp.StatusCode, msg)
		}
	}
	return fmt.Errorf("backend: synthesis failed: unexpected status %d", resp.StatusCode)
}
