package app

import "github.com/nhle/campus-notifier/internal/keys"

// KeyMap is the key set used by the root model and its views.
type KeyMap = keys.KeyMap

// DefaultKeyMap delegates to keys.DefaultKeyMap.
func DefaultKeyMap() *KeyMap {
	return keys.DefaultKeyMap()
}
