// Package keytracker provides IsKeyJustPressed edge detection for single
// keys on top of ebiten's polled key state.
package keytracker

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// KeyStateTracker tracks the previous state of a key.
type KeyStateTracker struct {
	prevPressed bool
}

// IsKeyJustPressed returns true if the key was not pressed last frame but is
// pressed this frame.
func (k *KeyStateTracker) IsKeyJustPressed(key ebiten.Key) bool {
	pressed := ebiten.IsKeyPressed(key)
	justPressed := pressed && !k.prevPressed
	k.prevPressed = pressed
	return justPressed
}
