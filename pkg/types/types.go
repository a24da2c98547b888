// Package types defines the shared types used across all SpeechLink packages.
//
// These types form the lingua franca between the synthesis providers, the
// audio layer, the reconciler, and the orchestrator. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

// Provider identifies a speech synthesis backend.
type Provider string

const (
	// ProviderElevenLabs is the primary synthesis provider. The backend
	// catalog endpoint can filter by it natively.
	ProviderElevenLabs Provider = "elevenlabs"

	// ProviderPolly is the secondary synthesis provider. Catalog filtering
	// for it is applied client-side because the backend does not support it.
	ProviderPolly Provider = "polly"
)

// IsValid reports whether p is a recognised provider.
func (p Provider) IsValid() bool {
	return p == ProviderElevenLabs || p == ProviderPolly
}

// MaxRequestTextLen is the longest text accepted in a single synthesis
// request. Requests above this limit are rejected before any provider call.
const MaxRequestTextLen = 5000

// SynthesisOptions are the numeric voice knobs forwarded to providers.
// The zero value means "use provider defaults".
type SynthesisOptions struct {
	// Speed adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	Speed float64 `json:"speed,omitempty"`

	// Pitch adjusts voice pitch in the range [-10, 10]. 0 means default.
	Pitch float64 `json:"pitch,omitempty"`

	// Stability trades expressiveness for consistency in the range [0, 1].
	// 0 means default.
	Stability float64 `json:"stability,omitempty"`
}

// SpeechRequest describes one utterance to synthesise and play. It is a value
// type and must not be mutated after being handed to the orchestrator.
type SpeechRequest struct {
	// Text is the utterance to speak. Must be non-empty and at most
	// [MaxRequestTextLen] runes.
	Text string `json:"text"`

	// VoiceID optionally selects a specific voice. When empty the backend
	// applies the user's configured default.
	VoiceID string `json:"voice_id,omitempty"`

	// Provider optionally pins the synthesis provider.
	Provider Provider `json:"provider,omitempty"`

	// Language is an optional BCP-47 locale tag (e.g. "fr-FR") used by the
	// local fallback engine when the remote path is unavailable.
	Language string `json:"language,omitempty"`

	// Options holds the optional numeric synthesis knobs.
	Options SynthesisOptions `json:"options,omitempty"`
}

// Voice is one entry of the voice catalog.
type Voice struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Provider   Provider `json:"provider"`
	Language   string   `json:"language,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	Accent     string   `json:"accent,omitempty"`
	Age        string   `json:"age,omitempty"`
	UseCase    string   `json:"use_case,omitempty"`
	PreviewURL string   `json:"preview_url,omitempty"`

	// OwnerID and Shared carry the denormalised metadata the backend requires
	// when a shared-catalog voice is selected as the user preference.
	OwnerID string `json:"owner_id,omitempty"`
	Shared  bool   `json:"shared,omitempty"`
}

// VoicePreference is the single per-user preference record. It is owned by
// the reconciler and only ever overwritten whole, never partially mutated.
type VoicePreference struct {
	Provider            Provider         `json:"provider"`
	VoiceID             string           `json:"voice_id"`
	Settings            SynthesisOptions `json:"settings"`
	STTProvider         string           `json:"stt_provider,omitempty"`
	EnhancementEnabled  bool             `json:"enhancement_enabled"`
	AutoSpeakEnabled    bool             `json:"auto_speak_enabled"`
	AudioRoutingEnabled bool             `json:"audio_routing_enabled"`

	// VoiceName and VoiceOwnerID are denormalised shared-voice metadata,
	// resolved from the catalog right before a preference update is sent.
	VoiceName    string `json:"voice_name,omitempty"`
	VoiceOwnerID string `json:"voice_owner_id,omitempty"`
}

// DefaultVoicePreference is the hard-coded preference used when the backend
// preference fetch fails, so the client UI never blocks on that path.
func DefaultVoicePreference() VoicePreference {
	return VoicePreference{
		Provider: ProviderElevenLabs,
		Settings: SynthesisOptions{Speed: 1.0, Stability: 0.5},
	}
}

// FavoriteVoice is one entry of the user's favorite set, as stored by the
// backend favorites endpoint.
type FavoriteVoice struct {
	VoiceID   string   `json:"voice_id"`
	VoiceName string   `json:"voice_name,omitempty"`
	Provider  Provider `json:"provider,omitempty"`

	// Details holds optional free-form metadata (accent, language, …).
	Details map[string]string `json:"details,omitempty"`
}
