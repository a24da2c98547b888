// Package elevenlabs provides an ElevenLabs-backed synthesis provider using
// the ElevenLabs streaming WebSocket API. It implements the synth.Provider
// interface by accumulating the streamed chunks into one payload, and exposes
// the voices listing used by the catalog search.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Naqued/speechlink/pkg/provider/synth"
	"github.com/Naqued/speechlink/pkg/types"
	"github.com/coder/websocket"
)

const (
	wsEndpointFmt      = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	sharedVoicesURL    = "https://api.elevenlabs.io/v1/shared-voices"
	defaultModel       = "eleven_flash_v2_5"
	defaultOutputFmt   = "mp3_44100_128"
	defaultContentType = "audio/mpeg"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithHTTPClient sets the HTTP client used for voice catalog requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements synth.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// Compile-time interface assertion.
var _ synth.Provider = (*Provider)(nil)

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- WebSocket message types ----

// boiMessage is the initial "begin of input" handshake payload.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio chunk
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// Synthesize opens a WebSocket to ElevenLabs, sends the full text followed by
// a flush, and accumulates every streamed chunk into one payload.
func (p *Provider) Synthesize(ctx context.Context, req synth.Request) (*synth.Result, error) {
	if req.VoiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	if req.Text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}

	wsURL := buildURLForVoice(req.VoiceID, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	vs := settingsFromOptions(req.Options)

	// Send the initial BOI message to authenticate and configure the stream.
	boi := boiMessage{
		Text:          " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: vs,
		XiAPIKey:      p.apiKey,
		OutputFormat:  p.outputFormat,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	msgBytes, _ := buildWSMessage(req.Text, nil)
	if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}

	// Empty text flushes the stream and makes ElevenLabs emit isFinal.
	flushBytes, _ := buildWSMessage("", nil)
	if err := conn.Write(ctx, websocket.MessageText, flushBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send flush: %w", err)
	}

	var audio []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if len(audio) > 0 {
				// Stream closed after delivering audio; treat as complete.
				break
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio chunk: %w", err)
			}
			audio = append(audio, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}

	if len(audio) == 0 {
		return nil, errors.New("elevenlabs: stream produced no audio")
	}
	return &synth.Result{Audio: audio, ContentType: defaultContentType}, nil
}

// settingsFromOptions maps the engine's synthesis knobs onto ElevenLabs
// voice_settings. Returns nil when every knob is at its zero value.
func settingsFromOptions(o types.SynthesisOptions) *voiceSettings {
	if o == (types.SynthesisOptions{}) {
		return nil
	}
	vs := &voiceSettings{
		Stability:       o.Stability,
		SimilarityBoost: 0.75,
	}
	if o.Speed != 0 {
		vs.Speed = o.Speed
	}
	return vs
}

// ---- Voice catalog ----

// sharedVoicesResponse is the top-level response from GET /v1/shared-voices.
type sharedVoicesResponse struct {
	Voices  []sharedVoice `json:"voices"`
	HasMore bool          `json:"has_more"`
}

// sharedVoice is a single voice entry from the ElevenLabs shared voice library.
type sharedVoice struct {
	VoiceID    string `json:"voice_id"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Accent     string `json:"accent"`
	Age        string `json:"age"`
	UseCase    string `json:"use_case"`
	Language   string `json:"language"`
	PreviewURL string `json:"preview_url"`
	PublicOwnerID string `json:"public_owner_id"`
}

// SearchVoices queries the ElevenLabs shared voice library. The query and
// language filters are applied server-side; page is zero-based.
func (p *Provider) SearchVoices(ctx context.Context, query, language string, page, pageSize int) ([]types.Voice, bool, error) {
	u, err := url.Parse(sharedVoicesURL)
	if err != nil {
		return nil, false, fmt.Errorf("elevenlabs: search voices: %w", err)
	}
	q := u.Query()
	if query != "" {
		q.Set("search", query)
	}
	if language != "" {
		q.Set("language", language)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("elevenlabs: search voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("elevenlabs: search voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("elevenlabs: search voices: unexpected status %d", resp.StatusCode)
	}

	var sr sharedVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, false, fmt.Errorf("elevenlabs: search voices decode: %w", err)
	}

	voices := make([]types.Voice, 0, len(sr.Voices))
	for _, v := range sr.Voices {
		voices = append(voices, types.Voice{
			ID:         v.VoiceID,
			Name:       v.Name,
			Provider:   types.ProviderElevenLabs,
			Language:   v.Language,
			Gender:     v.Gender,
			Accent:     v.Accent,
			Age:        v.Age,
			UseCase:    v.UseCase,
			PreviewURL: v.PreviewURL,
			OwnerID:    v.PublicOwnerID,
			Shared:     true,
		})
	}
	return voices, sr.HasMore, nil
}

// ---- helpers ----

// buildWSMessage constructs the JSON text payload for a single text fragment.
// Used by tests to verify the payload shape without opening a real connection.
func buildWSMessage(text string, vs *voiceSettings) ([]byte, error) {
	return json.Marshal(textMessage{Text: text, VoiceSettings: vs})
}

// buildURLForVoice constructs the WebSocket URL for a given voice and model.
func buildURLForVoice(voiceID, model string) string {
	return fmt.Sprintf(wsEndpointFmt, voiceID, model)
}

// parseSharedVoices parses a raw JSON byte slice (matching the ElevenLabs
// /v1/shared-voices response) into engine voice values.
func parseSharedVoices(data []byte) ([]types.Voice, bool, error) {
	var sr sharedVoicesResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, false, err
	}
	voices := make([]types.Voice, 0, len(sr.Voices))
	for _, v := range sr.Voices {
		voices = append(voices, types.Voice{
			ID:         v.VoiceID,
			Name:       v.Name,
			Provider:   types.ProviderElevenLabs,
			Language:   v.Language,
			Gender:     v.Gender,
			Accent:     v.Accent,
			Age:        v.Age,
			UseCase:    v.UseCase,
			PreviewURL: v.PreviewURL,
			OwnerID:    v.PublicOwnerID,
			Shared:     true,
		})
	}
	return voices, sr.HasMore, nil
}
