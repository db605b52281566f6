package ui

import (
	"fmt"
	"math"

	"fyne.io/fyne/v2"

	"EmojiArt/internal/document"
	"EmojiArt/internal/state"
)

const (
	minZoom = 0.3
	maxZoom = 3.0
)

// view maps document coordinates, which are centred on the middle of the
// background, onto the board widget.
type view struct {
	size  fyne.Size
	pan   fyne.Position
	scale float32
}

func (v view) center() fyne.Position {
	return fyne.NewPos(v.size.Width/2+v.pan.X, v.size.Height/2+v.pan.Y)
}

func (v view) toView(p state.Point) fyne.Position {
	c := v.center()
	return fyne.NewPos(c.X+float32(p.X)*v.scale, c.Y+float32(p.Y)*v.scale)
}

func (v view) toDocument(pos fyne.Position) state.Point {
	c := v.center()
	return state.Point{
		X: int(math.Round(float64((pos.X - c.X) / v.scale))),
		Y: int(math.Round(float64((pos.Y - c.Y) / v.scale))),
	}
}

// offset converts a drag distance on screen into a document offset.
func (v view) offset(d fyne.Delta) state.Offset {
	return state.Offset{
		DX: int(math.Round(float64(d.DX / v.scale))),
		DY: int(math.Round(float64(d.DY / v.scale))),
	}
}

func clampZoom(z float32) float32 {
	return float32(math.Max(minZoom, math.Min(maxZoom, float64(z))))
}

// hitTest returns the topmost emoji whose square covers p.
func hitTest(emojis []state.Emoji, p state.Point) (int, bool) {
	for i := len(emojis) - 1; i >= 0; i-- {
		e := emojis[i]
		half := (e.Size + 1) / 2
		if p.X >= e.X-half && p.X <= e.X+half && p.Y >= e.Y-half && p.Y <= e.Y+half {
			return e.ID, true
		}
	}
	return 0, false
}

func statusText(snap document.Snapshot) string {
	n := snap.Model.Len()
	count := fmt.Sprintf("%d emojis", n)
	if n == 1 {
		count = "1 emoji"
	}
	switch snap.Status.State {
	case document.Fetching:
		return count + " | fetching " + snap.Status.URL
	case document.Failed:
		return count + " | could not load " + snap.Status.URL
	}
	return count
}

// undoButtons is what the undo and redo buttons show for the stack's
// current state, e.g. "Undo Add 😀" and "Redo Move".
type undoButtons struct {
	undo, redo       string
	canUndo, canRedo bool
}

func undoButtonsFor(um *state.UndoStack) undoButtons {
	title := func(verb, name string) string {
		if name == "" {
			return verb
		}
		return verb + " " + name
	}
	return undoButtons{
		undo:    title("Undo", um.UndoActionName()),
		redo:    title("Redo", um.RedoActionName()),
		canUndo: um.CanUndo(),
		canRedo: um.CanRedo(),
	}
}
