// Package preference keeps an editable draft of per-type channel
// preferences alongside the last copy confirmed by the gateway.
package preference

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nhle/campus-notifier/internal/model"
)

// Backend is the part of the gateway the reconciler needs.
type Backend interface {
	Preferences(ctx context.Context) ([]model.Preference, error)
	UpdatePreferences(ctx context.Context, prefs []model.Preference) error
}

// Snapshot is a point-in-time copy of the reconciler state.
type Snapshot struct {
	Draft  []model.Preference
	Dirty  bool
	Loaded bool
	Saving bool
}

// Reconciler manages the preference draft. It is safe for concurrent use.
type Reconciler struct {
	backend Backend

	mu     sync.Mutex
	server map[model.NotificationType]model.Preference
	draft  map[model.NotificationType]model.Preference
	dirty  bool
	loaded bool
	saving bool
	// gen increments on Clear; Load and Save results from before the
	// last Clear are dropped.
	gen uint64
}

// NewReconciler returns a reconciler whose draft starts at the defaults.
func NewReconciler(backend Backend) *Reconciler {
	return &Reconciler{
		backend: backend,
		draft:   defaults(),
	}
}

// Load fetches the server copy and rebuilds the draft from it. When the
// server holds no records, every known type defaults to all channels on.
// Types missing from a non-empty response stay absent.
func (r *Reconciler) Load(ctx context.Context) error {
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	prefs, err := r.backend.Preferences(ctx)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}

	server := make(map[model.NotificationType]model.Preference, len(prefs))
	for _, p := range prefs {
		if p.NotificationType == "" {
			continue
		}
		server[p.NotificationType] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return nil
	}
	r.server = server
	r.loaded = true
	r.draft = r.fromServer()
	r.dirty = false
	return nil
}

// fromServer builds a fresh draft. Caller must hold r.mu.
func (r *Reconciler) fromServer() map[model.NotificationType]model.Preference {
	if len(r.server) == 0 {
		return defaults()
	}
	out := make(map[model.NotificationType]model.Preference, len(r.server))
	for t, p := range r.server {
		out[t] = p
	}
	return out
}

// SetChannel sets one channel of one type in the draft and marks it dirty.
// A type absent from the draft is added with every channel enabled first.
func (r *Reconciler) SetChannel(t model.NotificationType, c model.Channel, value bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set(t, c, value)
}

// set updates the draft. Caller must hold r.mu.
func (r *Reconciler) set(t model.NotificationType, c model.Channel, value bool) error {
	p, ok := r.draft[t]
	if !ok {
		p = model.DefaultPreference(t)
	}
	if err := p.Set(c, value); err != nil {
		return err
	}
	r.draft[t] = p
	r.dirty = true
	return nil
}

// Toggle flips one channel and returns the new value.
func (r *Reconciler) Toggle(t model.NotificationType, c model.Channel) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.draft[t]
	if !ok {
		p = model.DefaultPreference(t)
	}
	next := !p.Enabled(c)
	return next, r.set(t, c, next)
}

// Save submits the full draft as a single update. On success the draft
// becomes the server copy and the dirty flag clears; on failure both are
// left as they were.
func (r *Reconciler) Save(ctx context.Context) error {
	r.mu.Lock()
	payload := ordered(r.draft)
	gen := r.gen
	r.saving = true
	r.mu.Unlock()

	err := r.backend.UpdatePreferences(ctx, payload)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return err
	}
	r.saving = false
	if err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}

	r.server = make(map[model.NotificationType]model.Preference, len(payload))
	for _, p := range payload {
		r.server[p.NotificationType] = p
	}
	r.loaded = true
	// Edits made while the request was in flight stay dirty.
	if sameAs(r.draft, payload) {
		r.dirty = false
	}
	return nil
}

// Reset discards local edits.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft = r.fromServer()
	r.dirty = false
}

// Clear forgets both copies, for session end.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.server = nil
	r.loaded = false
	r.saving = false
	r.draft = defaults()
	r.dirty = false
}

// Draft returns the draft in submission order.
func (r *Reconciler) Draft() []model.Preference {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ordered(r.draft)
}

// Dirty reports whether the draft has unsaved edits.
func (r *Reconciler) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Get returns the draft entry for t.
func (r *Reconciler) Get(t model.NotificationType) (model.Preference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.draft[t]
	return p, ok
}

// Snapshot returns a copy of the full state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Draft:  ordered(r.draft),
		Dirty:  r.dirty,
		Loaded: r.loaded,
		Saving: r.saving,
	}
}

func defaults() map[model.NotificationType]model.Preference {
	out := make(map[model.NotificationType]model.Preference, len(model.KnownTypes))
	for _, p := range model.DefaultPreferences() {
		out[p.NotificationType] = p
	}
	return out
}

// ordered lists known types in enum order, then unknown types by name.
func ordered(m map[model.NotificationType]model.Preference) []model.Preference {
	out := make([]model.Preference, 0, len(m))
	for _, t := range model.KnownTypes {
		if p, ok := m[t]; ok {
			out = append(out, p)
		}
	}

	var extra []model.NotificationType
	for t := range m {
		if !t.Known() {
			extra = append(extra, t)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, t := range extra {
		out = append(out, m[t])
	}
	return out
}

func sameAs(m map[model.NotificationType]model.Preference, prefs []model.Preference) bool {
	if len(m) != len(prefs) {
		return false
	}
	for _, p := range prefs {
		if m[p.NotificationType] != p {
			return false
		}
	}
	return true
}
