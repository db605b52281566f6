package state

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// MaxEmojiSize caps the size an emoji can be scaled to.
const MaxEmojiSize = 1 << 16

var ErrInvalidEmoji = errors.New("state: invalid emoji")

// Point is a position on the collage.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Offset is a relative move.
type Offset struct {
	DX int
	DY int
}

// Emoji is a single glyph placed on the collage.
type Emoji struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Size int    `json:"size"`
}

// Model is one collage: a background plus the emojis placed over it.
// A Model is a value. Every mutator returns a new Model and leaves the
// receiver untouched, so holding on to an old Model is a valid snapshot.
type Model struct {
	background Background
	emojis     []Emoji
	nextID     int
}

// New returns an empty document with a blank background.
func New() Model {
	return Model{nextID: 1}
}

func (m Model) Background() Background { return m.background }

// Emojis returns the emojis in display order (oldest first).
func (m Model) Emojis() []Emoji {
	out := make([]Emoji, len(m.emojis))
	copy(out, m.emojis)
	return out
}

func (m Model) Len() int { return len(m.emojis) }

// IndexOf returns the position of the emoji with the given id.
func (m Model) IndexOf(id int) (int, bool) {
	for i, e := range m.emojis {
		if e.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Emoji looks an emoji up by id.
func (m Model) Emoji(id int) (Emoji, bool) {
	i, ok := m.IndexOf(id)
	if !ok {
		return Emoji{}, false
	}
	return m.emojis[i], true
}

func (m Model) WithBackground(bg Background) Model {
	next := m
	next.background = bg
	return next
}

// AddEmoji appends a new emoji with the next unused id.
func (m Model) AddEmoji(text string, at Point, size int) (Model, error) {
	if text == "" || !utf8.ValidString(text) {
		return m, fmt.Errorf("%w: text %q", ErrInvalidEmoji, text)
	}
	if size <= 0 {
		return m, fmt.Errorf("%w: size %d", ErrInvalidEmoji, size)
	}
	id := m.nextEmojiID()
	next := m.cloned(1)
	next.emojis = append(next.emojis, Emoji{ID: id, Text: text, X: at.X, Y: at.Y, Size: size})
	next.nextID = id + 1
	return next, nil
}

// MoveEmoji shifts an emoji by the offset. It reports false when no emoji
// has the id, in which case m is returned as is.
func (m Model) MoveEmoji(id int, by Offset) (Model, bool) {
	return m.updateEmoji(id, func(e *Emoji) {
		e.X += by.DX
		e.Y += by.DY
	})
}

// ScaleEmoji multiplies an emoji's size by factor, see ScaleSize.
// Non-finite factors are ignored.
func (m Model) ScaleEmoji(id int, factor float64) (Model, bool) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return m, false
	}
	return m.updateEmoji(id, func(e *Emoji) {
		e.Size = ScaleSize(e.Size, factor)
	})
}

// RemoveEmoji drops an emoji. Its id is not handed out again.
func (m Model) RemoveEmoji(id int) (Model, bool) {
	i, ok := m.IndexOf(id)
	if !ok {
		return m, false
	}
	next := m
	next.emojis = make([]Emoji, 0, len(m.emojis)-1)
	next.emojis = append(next.emojis, m.emojis[:i]...)
	next.emojis = append(next.emojis, m.emojis[i+1:]...)
	return next, true
}

// ScaleSize rounds size*factor half away from zero and keeps the result
// within [1, MaxEmojiSize].
func ScaleSize(size int, factor float64) int {
	scaled := math.Round(float64(size) * factor)
	switch {
	case scaled < 1:
		return 1
	case scaled > MaxEmojiSize:
		return MaxEmojiSize
	}
	return int(scaled)
}

// Equal compares two models field for field, emoji order included.
func (m Model) Equal(o Model) bool {
	if !m.background.Equal(o.background) || len(m.emojis) != len(o.emojis) {
		return false
	}
	if m.nextEmojiID() != o.nextEmojiID() {
		return false
	}
	for i := range m.emojis {
		if m.emojis[i] != o.emojis[i] {
			return false
		}
	}
	return true
}

func (m Model) updateEmoji(id int, fn func(*Emoji)) (Model, bool) {
	i, ok := m.IndexOf(id)
	if !ok {
		return m, false
	}
	next := m.cloned(0)
	fn(&next.emojis[i])
	return next, true
}

// cloned copies m with its own emoji slice, leaving room for extra appends
// that never alias the receiver's backing array.
func (m Model) cloned(extra int) Model {
	next := m
	next.emojis = make([]Emoji, len(m.emojis), len(m.emojis)+extra)
	copy(next.emojis, m.emojis)
	return next
}

// nextEmojiID is the id the next AddEmoji hands out. The zero Model has
// nextID == 0, which is treated like New().
func (m Model) nextEmojiID() int {
	next := m.nextID
	if next < 1 {
		next = 1
	}
	for _, e := range m.emojis {
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	return next
}
