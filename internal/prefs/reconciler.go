// Package prefs implements the preference reconciler: the single owner of the
// user's voice preference and favorite set. Reads degrade to cached or
// default data when the backend is unreachable; writes are optimistic, with
// the local state updated first and reconciled against the backend response.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Naqued/speechlink/internal/kvstore"
	"github.com/Naqued/speechlink/pkg/types"
)

// kvstore cache keys.
const (
	keyPreference = "prefs.voice"
	keyFavorites  = "prefs.favorites"
)

// placeholderVoiceName is used when a shared voice's metadata cannot be
// resolved before a preference update. The backend requires a non-empty name
// for shared voices; the real name is reconciled on the next settings fetch.
const placeholderVoiceName = "Shared Voice"

// Backend is the remote preference surface the reconciler drives.
// *backendapi.Client satisfies it.
type Backend interface {
	GetUserSettings(ctx context.Context) (*types.VoicePreference, error)
	UpdateVoicePreference(ctx context.Context, pref types.VoicePreference) error
	GetFavorites(ctx context.Context) ([]types.FavoriteVoice, error)
	AddFavorite(ctx context.Context, fav types.FavoriteVoice) error
	RemoveFavorite(ctx context.Context, voiceID string) error
}

// VoiceResolver looks up catalog metadata for a voice ID. Used to denormalise
// shared-voice fields into a preference update.
type VoiceResolver interface {
	ResolveVoice(ctx context.Context, voiceID string) (*types.Voice, error)
}

// UserSettings is the combined result of a settings fetch.
type UserSettings struct {
	Preference types.VoicePreference
	Favorites  []types.FavoriteVoice

	// Degraded is true when any part came from cache or defaults instead of
	// the backend.
	Degraded bool
}

// Reconciler owns the local preference and favorite state. Create it with
// [New].
type Reconciler struct {
	backend  Backend
	store    kvstore.Store
	resolver VoiceResolver

	mu         sync.Mutex
	preference types.VoicePreference
	favorites  []types.FavoriteVoice
	loaded     bool
}

// New creates a Reconciler. resolver may be nil; shared-voice metadata then
// always falls back to the placeholder.
func New(backend Backend, store kvstore.Store, resolver VoiceResolver) *Reconciler {
	return &Reconciler{
		backend:    backend,
		store:      store,
		resolver:   resolver,
		preference: types.DefaultVoicePreference(),
	}
}

// GetUserSettings fetches the preference record and favorite set in parallel.
// A failed fetch degrades to cached data (or defaults) for that part instead
// of failing the whole call, so the caller always gets usable settings.
func (r *Reconciler) GetUserSettings(ctx context.Context) (*UserSettings, error) {
	var (
		pref *types.VoicePreference
		favs []types.FavoriteVoice

		prefErr, favErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pref, prefErr = r.backend.GetUserSettings(gctx)
		return nil
	})
	g.Go(func() error {
		favs, favErr = r.backend.GetFavorites(gctx)
		return nil
	})
	_ = g.Wait()

	out := &UserSettings{}

	if prefErr != nil {
		slog.Warn("preference fetch failed, degrading", "error", prefErr)
		out.Preference = r.cachedPreference(ctx)
		out.Degraded = true
	} else {
		out.Preference = *pref
		r.cachePreference(ctx, *pref)
	}

	if favErr != nil {
		slog.Warn("favorites fetch failed, degrading", "error", favErr)
		out.Favorites = r.cachedFavorites(ctx)
		out.Degraded = true
	} else {
		out.Favorites = favs
		r.cacheFavorites(ctx, favs)
	}

	r.mu.Lock()
	r.preference = out.Preference
	r.favorites = append([]types.FavoriteVoice(nil), out.Favorites...)
	r.loaded = true
	r.mu.Unlock()

	return out, nil
}

// Preference returns the current local preference.
func (r *Reconciler) Preference() types.VoicePreference {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preference
}

// Favorites returns a snapshot of the current local favorite set, in order.
func (r *Reconciler) Favorites() []types.FavoriteVoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.FavoriteVoice(nil), r.favorites...)
}

// UpdateVoicePreference overwrites the preference record whole,
// last-write-wins: voice, numeric settings and feature flags all come from
// next. The local state is updated optimistically; if the backend rejects
// the update, the previous record is restored and the error returned.
// Shared voices have their catalog metadata (name, owner) resolved and
// denormalised into the record first, with a placeholder name when
// resolution fails.
func (r *Reconciler) UpdateVoicePreference(ctx context.Context, next types.VoicePreference) error {
	if !next.Provider.IsValid() {
		return fmt.Errorf("prefs: unknown provider %q", next.Provider)
	}
	if next.VoiceID == "" {
		return errors.New("prefs: voiceID must not be empty")
	}

	r.mu.Lock()
	prev := r.preference
	r.mu.Unlock()

	// Denormalised metadata is never trusted from the caller.
	next.VoiceName, next.VoiceOwnerID = "", ""
	if next.Provider == types.ProviderElevenLabs {
		next.VoiceName, next.VoiceOwnerID = r.resolveSharedVoice(ctx, next.VoiceID)
	}

	// Optimistic: apply locally before the backend answers.
	r.mu.Lock()
	r.preference = next
	r.mu.Unlock()

	if err := r.backend.UpdateVoicePreference(ctx, next); err != nil {
		r.mu.Lock()
		r.preference = prev
		r.mu.Unlock()
		return fmt.Errorf("prefs: update voice preference: %w", err)
	}

	r.cachePreference(ctx, next)
	return nil
}

// ToggleFavorite adds the voice to the favorite set if absent and removes it
// if present, optimistically. The local set reflects the mutation regardless
// of backend outcome: a failed remove is treated as success for the caller,
// while a failed add keeps the voice in the set and surfaces a retryable
// error. The backend copy is reconciled on the next settings fetch.
func (r *Reconciler) ToggleFavorite(ctx context.Context, fav types.FavoriteVoice) (added bool, err error) {
	if fav.VoiceID == "" {
		return false, errors.New("prefs: voiceID must not be empty")
	}

	r.mu.Lock()
	idx := -1
	for i, f := range r.favorites {
		if f.VoiceID == fav.VoiceID {
			idx = i
			break
		}
	}

	if idx >= 0 {
		// Optimistic removal.
		r.favorites = append(r.favorites[:idx], r.favorites[idx+1:]...)
		r.mu.Unlock()

		if err := r.backend.RemoveFavorite(ctx, fav.VoiceID); err != nil {
			slog.Warn("favorite removal not confirmed by backend",
				"voice_id", fav.VoiceID, "error", err)
		}
		r.cacheFavorites(ctx, r.Favorites())
		return false, nil
	}

	// Optimistic insertion at the end of the ordered set.
	r.favorites = append(r.favorites, fav)
	r.mu.Unlock()

	addErr := r.backend.AddFavorite(ctx, fav)
	r.cacheFavorites(ctx, r.Favorites())
	if addErr != nil {
		// The optimistic insertion stays: the local set only ever moves
		// forward, and the caller may retry the backend write.
		return true, fmt.Errorf("prefs: add favorite: %w", addErr)
	}
	return true, nil
}

// IsFavorite reports whether the voice is in the local favorite set.
func (r *Reconciler) IsFavorite(voiceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.favorites {
		if f.VoiceID == voiceID {
			return true
		}
	}
	return false
}

// resolveSharedVoice looks up the denormalised metadata for a shared voice,
// falling back to the placeholder name when the catalog cannot answer.
func (r *Reconciler) resolveSharedVoice(ctx context.Context, voiceID string) (name, ownerID string) {
	if r.resolver == nil {
		return placeholderVoiceName, ""
	}
	v, err := r.resolver.ResolveVoice(ctx, voiceID)
	if err != nil || v == nil {
		slog.Warn("shared voice metadata resolution failed, using placeholder",
			"voice_id", voiceID, "error", err)
		return placeholderVoiceName, ""
	}
	if !v.Shared {
		return v.Name, ""
	}
	return v.Name, v.OwnerID
}

// ─── cache plumbing ───

func (r *Reconciler) cachePreference(ctx context.Context, pref types.VoicePreference) {
	data, err := json.Marshal(pref)
	if err != nil {
		return
	}
	if err := r.store.Set(ctx, keyPreference, data); err != nil {
		slog.Warn("failed to cache preference", "error", err)
	}
}

func (r *Reconciler) cachedPreference(ctx context.Context) types.VoicePreference {
	data, err := r.store.Get(ctx, keyPreference)
	if err != nil {
		return types.DefaultVoicePreference()
	}
	var pref types.VoicePreference
	if err := json.Unmarshal(data, &pref); err != nil {
		return types.DefaultVoicePreference()
	}
	return pref
}

func (r *Reconciler) cacheFavorites(ctx context.Context, favs []types.FavoriteVoice) {
	data, err := json.Marshal(favs)
	if err != nil {
		return
	}
	if err := r.store.Set(ctx, keyFavorites, data); err != nil {
		slog.Warn("failed to cache favorites", "error", err)
	}
}

func (r *Reconciler) cachedFavorites(ctx context.Context) []types.FavoriteVoice {
	data, err := r.store.Get(ctx, keyFavorites)
	if err != nil {
		return nil
	}
	var favs []types.FavoriteVoice
	if err := json.Unmarshal(data, &favs); err != nil {
		return nil
	}
	return favs
}
