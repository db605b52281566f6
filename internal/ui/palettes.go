package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"EmojiArt/internal/palette"
)

var errEmptyName = errors.New("palette name is empty")

// paletteEditor applies the edits of the palette manager to a store. Rows
// are addressed by their position in the list as last shown.
type paletteEditor struct {
	store   *palette.Store
	logger  *slog.Logger
	changed func()
}

func (e *paletteEditor) apply(op string, i int, fn func(ps []palette.Palette) error) error {
	ps, err := e.store.Palettes()
	if err == nil && (i < 0 || i >= len(ps)) {
		err = fmt.Errorf("%w: index %d", palette.ErrNotFound, i)
	}
	if err == nil {
		err = fn(ps)
	}
	if err != nil {
		e.logger.Warn("palette edit failed", "op", op, "index", i, "error", err)
		return err
	}
	if e.changed != nil {
		e.changed()
	}
	return nil
}

func (e *paletteEditor) rename(i int, name string) error {
	name = strings.TrimSpace(name)
	return e.apply("rename", i, func(ps []palette.Palette) error {
		if name == "" {
			return errEmptyName
		}
		return e.store.Rename(ps[i].ID, name)
	})
}

func (e *paletteEditor) moveUp(i int) error {
	return e.apply("move up", i, func([]palette.Palette) error {
		if i == 0 {
			return nil
		}
		return e.store.Move([]int{i}, i-1)
	})
}

func (e *paletteEditor) moveDown(i int) error {
	return e.apply("move down", i, func(ps []palette.Palette) error {
		if i == len(ps)-1 {
			return nil
		}
		return e.store.Move([]int{i}, i+2)
	})
}

func (e *paletteEditor) remove(i int) error {
	return e.apply("remove", i, func([]palette.Palette) error {
		return e.store.RemoveAt([]int{i})
	})
}

func (e *paletteEditor) removeEmoji(i int, emoji string) error {
	return e.apply("remove emoji", i, func(ps []palette.Palette) error {
		return e.store.RemoveEmoji(ps[i].ID, emoji)
	})
}

// showPaletteManager opens a dialog listing every palette with rename,
// reorder and delete controls. Tapping an emoji removes it from its palette.
// onChange runs after each applied edit.
func showPaletteManager(w fyne.Window, store *palette.Store, logger *slog.Logger, onChange func()) {
	list := container.NewVBox()
	report := func(err error) {
		if err != nil {
			dialog.ShowError(err, w)
		}
	}

	var rebuild func()
	ed := &paletteEditor{store: store, logger: logger, changed: func() {
		rebuild()
		if onChange != nil {
			onChange()
		}
	}}
	rebuild = func() {
		ps, err := store.Palettes()
		if err != nil {
			logger.Error("palettes unavailable", "error", err)
			return
		}
		list.RemoveAll()
		for i, p := range ps {
			list.Add(paletteRow(ed, i, len(ps), p, report))
		}
	}
	rebuild()

	hint := widget.NewLabel("Tap an emoji to remove it. Press Enter to rename.")
	d := dialog.NewCustom("Manage Palettes", "Done", container.NewBorder(hint, nil, nil, nil, container.NewVScroll(list)), w)
	d.Resize(fyne.NewSize(560, 480))
	d.Show()
}

func paletteRow(ed *paletteEditor, i, n int, p palette.Palette, report func(error)) fyne.CanvasObject {
	name := widget.NewEntry()
	name.SetText(p.Name)
	name.OnSubmitted = func(s string) { report(ed.rename(i, s)) }

	up := widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() { report(ed.moveUp(i)) })
	down := widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() { report(ed.moveDown(i)) })
	del := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() { report(ed.remove(i)) })
	if i == 0 {
		up.Disable()
	}
	if i == n-1 {
		down.Disable()
	}
	if n == 1 {
		del.Disable()
	}

	emojis := container.NewHBox()
	for _, g := range palette.Graphemes(p.Emojis) {
		emojis.Add(widget.NewButton(g, func() { report(ed.removeEmoji(i, g)) }))
	}

	header := container.NewBorder(nil, nil, nil, container.NewHBox(up, down, del), name)
	return container.NewVBox(header, container.NewHScroll(emojis), widget.NewSeparator())
}
