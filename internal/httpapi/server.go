// Package httpapi exposes the engine's REST surface: speak/stop, user
// settings, favorites, catalog search, and the routing toggle.
//
// All responses are JSON. Errors carry a top-level "error" field; backend
// failures are mapped onto 4xx/5xx codes by [errorStatus].
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Naqued/speechlink/internal/backendapi"
	"github.com/Naqued/speechlink/internal/catalog"
	"github.com/Naqued/speechlink/internal/orchestrator"
	"github.com/Naqued/speechlink/internal/prefs"
	"github.com/Naqued/speechlink/internal/routing"
	"github.com/Naqued/speechlink/pkg/types"
)

// maxBodySize bounds request bodies. Speak requests are text, settings are
// small documents; anything larger is malformed.
const maxBodySize = 1 << 20

// Speaker drives the speech pipeline. *orchestrator.Orchestrator satisfies it.
type Speaker interface {
	Speak(ctx context.Context, req types.SpeechRequest) (orchestrator.Path, error)
	Stop() error
	State() orchestrator.State
}

// Preferences is the reconciler surface the API serves. *prefs.Reconciler
// satisfies it.
type Preferences interface {
	GetUserSettings(ctx context.Context) (*prefs.UserSettings, error)
	UpdateVoicePreference(ctx context.Context, pref types.VoicePreference) error
	ToggleFavorite(ctx context.Context, fav types.FavoriteVoice) (added bool, err error)
	Favorites() []types.FavoriteVoice
}

// Catalog is the search session surface. *catalog.Session satisfies it.
type Catalog interface {
	Search(ctx context.Context, q catalog.Query) ([]types.Voice, error)
	LoadMore(ctx context.Context) ([]types.Voice, error)
	HasMore() bool
}

// RoutingToggle controls the virtual-microphone output path.
// *routing.Router satisfies it.
type RoutingToggle interface {
	Enabled() bool
	SetEnabled(ctx context.Context, enabled bool) error
}

// Server holds the handler dependencies. Create it with [New] and mount it
// with [Server.Register].
type Server struct {
	speaker Speaker
	prefs   Preferences
	catalog Catalog
	routing RoutingToggle
}

// New creates a Server. All dependencies are required.
func New(speaker Speaker, preferences Preferences, cat Catalog, rt RoutingToggle) *Server {
	return &Server{
		speaker: speaker,
		prefs:   preferences,
		catalog: cat,
		routing: rt,
	}
}

// Register adds all API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/speak", s.handleSpeak)
	mux.HandleFunc("POST /v1/stop", s.handleStop)
	mux.HandleFunc("GET /v1/state", s.handleState)

	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings/voice", s.handleUpdateVoice)

	mux.HandleFunc("GET /v1/favorites", s.handleFavorites)
	mux.HandleFunc("POST /v1/favorites/toggle", s.handleToggleFavorite)

	mux.HandleFunc("GET /v1/voices/search", s.handleSearch)
	mux.HandleFunc("GET /v1/voices/search/more", s.handleLoadMore)

	mux.HandleFunc("GET /v1/routing", s.handleGetRouting)
	mux.HandleFunc("PUT /v1/routing", s.handleSetRouting)
}

// ─── speech ───

type speakResponse struct {
	Status string            `json:"status"`
	Path   orchestrator.Path `json:"path,omitempty"`
}

// handleSpeak runs one utterance end to end. The response is sent when the
// utterance finishes, is stopped, or fails, so clients can await completion.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req types.SpeechRequest
	if !decodeBody(w, r, &req) {
		return
	}

	path, err := s.speaker.Speak(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, speakResponse{Status: "ok", Path: path})
	case errors.Is(err, context.Canceled):
		// Preempted by a newer utterance or stopped by the client.
		writeJSON(w, http.StatusOK, speakResponse{Status: "interrupted"})
	case errors.Is(err, orchestrator.ErrEmptyText),
		errors.Is(err, orchestrator.ErrTextTooLong):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, orchestrator.ErrNoFallback):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, errorStatus(err), err)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.speaker.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]orchestrator.State{"state": s.speaker.State()})
}

// ─── settings ───

type settingsResponse struct {
	Preference types.VoicePreference `json:"preference"`
	Favorites  []types.FavoriteVoice `json:"favorites"`
	Degraded   bool                  `json:"degraded"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.prefs.GetUserSettings(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Preference: settings.Preference,
		Favorites:  emptyIfNil(settings.Favorites),
		Degraded:   settings.Degraded,
	})
}

// handleUpdateVoice replaces the preference record whole: voice, synthesis
// settings and feature flags. Last write wins.
func (s *Server) handleUpdateVoice(w http.ResponseWriter, r *http.Request) {
	var pref types.VoicePreference
	if !decodeBody(w, r, &pref) {
		return
	}
	if !pref.Provider.IsValid() || pref.VoiceID == "" {
		writeError(w, http.StatusBadRequest, errors.New("provider and voice_id are required"))
		return
	}

	if err := s.prefs.UpdateVoicePreference(r.Context(), pref); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── favorites ───

func (s *Server) handleFavorites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]types.FavoriteVoice{
		"favorites": emptyIfNil(s.prefs.Favorites()),
	})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var fav types.FavoriteVoice
	if !decodeBody(w, r, &fav) {
		return
	}
	if fav.VoiceID == "" {
		writeError(w, http.StatusBadRequest, errors.New("voice_id is required"))
		return
	}

	added, err := s.prefs.ToggleFavorite(r.Context(), fav)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

// ─── catalog ───

type searchResponse struct {
	Voices  []types.Voice `json:"voices"`
	HasMore bool          `json:"has_more"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := catalog.Query{
		Text:     r.URL.Query().Get("q"),
		Language: r.URL.Query().Get("language"),
		Provider: types.Provider(r.URL.Query().Get("provider")),
	}
	if q.Provider != "" && !q.Provider.IsValid() {
		writeError(w, http.StatusBadRequest, errors.New("unknown provider"))
		return
	}

	voices, err := s.catalog.Search(r.Context(), q)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Voices:  emptyIfNil(voices),
		HasMore: s.catalog.HasMore(),
	})
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	voices, err := s.catalog.LoadMore(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, searchResponse{
			Voices:  emptyIfNil(voices),
			HasMore: s.catalog.HasMore(),
		})
	case errors.Is(err, catalog.ErrNoSearch):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, catalog.ErrExhausted):
		writeJSON(w, http.StatusOK, searchResponse{Voices: []types.Voice{}})
	default:
		writeError(w, errorStatus(err), err)
	}
}

// ─── routing ───

type routingState struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleGetRouting(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, routingState{Enabled: s.routing.Enabled()})
}

func (s *Server) handleSetRouting(w http.ResponseWriter, r *http.Request) {
	var req routingState
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.routing.SetEnabled(r.Context(), req.Enabled)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, routingState{Enabled: s.routing.Enabled()})
	case errors.Is(err, routing.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, routing.ErrUnavailable):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, errorStatus(err), err)
	}
}

// ─── plumbing ───

// decodeBody parses the JSON request body into v. On failure it writes a 400
// response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// errorStatus maps backend errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, backendapi.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, backendapi.ErrNotFound):
		return http.StatusNotFound
	case backendapi.IsTransient(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "err", err)
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

// emptyIfNil keeps JSON arrays as [] instead of null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
