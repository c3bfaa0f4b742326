package preferences

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campus-notifier/internal/keys"
	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/preference"
)

type toggle struct {
	t model.NotificationType
	c model.Channel
}

type recorder struct {
	toggles []toggle
	resets  int
	saves   int
	saveErr error
}

func (r *recorder) TogglePreference(t model.NotificationType, c model.Channel) error {
	r.toggles = append(r.toggles, toggle{t, c})
	return nil
}

func (r *recorder) ResetPreferences() { r.resets++ }

func (r *recorder) SavePreferences(context.Context) error {
	r.saves++
	return r.saveErr
}

func (r *recorder) LoadPreferences(context.Context) error { return nil }

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newGrid(draft ...model.Preference) (Model, *recorder) {
	rec := &recorder{}
	m := New(rec, keys.DefaultKeyMap(), 100, 30)
	m.SetSnapshot(preference.Snapshot{Draft: draft, Loaded: true}, nil)
	return m, rec
}

func TestCursorMovesAcrossGrid(t *testing.T) {
	m, rec := newGrid(model.DefaultPreferences()...)

	m, _ = m.Update(keyPress("j"))
	m, _ = m.Update(keyPress("l"))
	m, _ = m.Update(keyPress("l"))
	m, _ = m.Update(keyPress("l")) // clamped at the last column
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})

	require.Len(t, rec.toggles, 1)
	assert.Equal(t, model.KnownTypes[1], rec.toggles[0].t)
	assert.Equal(t, model.Channels[len(model.Channels)-1], rec.toggles[0].c)
}

func TestUnknownTypesListedAfterKnownOnes(t *testing.T) {
	m, _ := newGrid(model.Preference{NotificationType: "CLUB_DIGEST", EmailEnabled: true})

	for range model.KnownTypes {
		m, _ = m.Update(keyPress("j"))
	}
	typ, _ := m.Cursor()
	assert.Equal(t, model.NotificationType("CLUB_DIGEST"), typ)

	view := m.View()
	assert.Contains(t, view, "CLUB_DIGEST")
	assert.Contains(t, view, "[-]")
}

func TestSaveSkippedWhileSaving(t *testing.T) {
	m, rec := newGrid(model.DefaultPreferences()...)
	m.SetSnapshot(preference.Snapshot{Draft: model.DefaultPreferences(), Saving: true}, nil)

	_, cmd := m.Update(keyPress("w"))
	assert.Nil(t, cmd)
	assert.Zero(t, rec.saves)
	assert.Contains(t, m.View(), "saving")
}

func TestSaveFailureShown(t *testing.T) {
	m, rec := newGrid(model.DefaultPreferences()...)
	rec.saveErr = errors.New("server rejected")

	_, cmd := m.Update(keyPress("w"))
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	assert.Equal(t, 1, rec.saves)
	assert.Contains(t, m.View(), "server rejected")
}

func TestDirtyIndicatorAndRevert(t *testing.T) {
	m, rec := newGrid(model.DefaultPreferences()...)
	m.SetSnapshot(preference.Snapshot{Draft: model.DefaultPreferences(), Dirty: true}, nil)
	assert.Contains(t, m.View(), "unsaved changes")

	m, _ = m.Update(keyPress("z"))
	assert.Equal(t, 1, rec.resets)
}

func TestLoadErrorOffersRetry(t *testing.T) {
	m, _ := newGrid()
	m.SetSnapshot(preference.Snapshot{}, errors.New("timeout"))

	view := m.View()
	assert.Contains(t, view, "Could not load preferences: timeout")
	assert.Contains(t, view, "press r to retry")
}
