package ui

import (
	"io"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"EmojiArt/internal/document"
	"EmojiArt/internal/export"
	"EmojiArt/internal/palette"
	"EmojiArt/internal/state"
)

// NewToolbar builds the editing toolbar and background URL entry. The
// returned func stops it following the undo stack.
func NewToolbar(w fyne.Window, board *BoardWidget, opts Options) (fyne.CanvasObject, func()) {
	ctrl, undo := board.ctrl, board.undo
	logger := opts.Logger

	exportPDF := widget.NewToolbarAction(theme.DocumentPrintIcon(), func() {
		dialog.ShowFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil || wc == nil {
				return
			}
			defer wc.Close()
			if err := export.WritePDF(wc, ctrl.Snapshot(), opts.Export); err != nil {
				logger.Error("pdf export failed", "uri", wc.URI().String(), "error", err)
				dialog.ShowError(err, w)
				return
			}
			logger.Info("pdf exported", "uri", wc.URI().String())
		}, w)
	})
	zoom := []widget.ToolbarItem{
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { board.Zoom(1.2) }),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { board.Zoom(1 / 1.2) }),
		widget.NewToolbarAction(theme.ViewRestoreIcon(), board.ResetView),
	}
	if opts.ReadOnly {
		items := append(zoom, widget.NewToolbarSeparator(), exportPDF)
		return container.NewHBox(widget.NewToolbar(items...), layout.NewSpacer()), func() {}
	}

	undoBtn := widget.NewButtonWithIcon("Undo", theme.ContentUndoIcon(), func() { undo.Undo() })
	redoBtn := widget.NewButtonWithIcon("Redo", theme.ContentRedoIcon(), func() { undo.Redo() })
	showUndo := func() {
		b := undoButtonsFor(undo)
		undoBtn.SetText(b.undo)
		redoBtn.SetText(b.redo)
		setEnabled(undoBtn, b.canUndo)
		setEnabled(redoBtn, b.canRedo)
	}
	showUndo()
	stop := ctrl.Subscribe(func(document.Snapshot) { fyne.Do(showUndo) })

	items := []widget.ToolbarItem{
		widget.NewToolbarAction(theme.ContentAddIcon(), func() { board.ScaleSelected(1.25) }),
		widget.NewToolbarAction(theme.ContentRemoveIcon(), func() { board.ScaleSelected(0.8) }),
		widget.NewToolbarAction(theme.DeleteIcon(), board.RemoveSelected),
		widget.NewToolbarSeparator(),
	}
	items = append(items, zoom...)
	items = append(items,
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.FolderOpenIcon(), func() {
			dialog.ShowFileOpen(func(rc fyne.URIReadCloser, err error) {
				if err != nil || rc == nil {
					return
				}
				defer rc.Close()
				data, err := io.ReadAll(rc)
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				ctrl.SetBackground(state.ImageData(data), undo)
			}, w)
		}),
		widget.NewToolbarAction(theme.ContentClearIcon(), func() { ctrl.SetBackground(state.Blank(), undo) }),
		exportPDF,
	)

	url := widget.NewEntry()
	url.SetPlaceHolder("Background image URL")
	url.OnSubmitted = func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			ctrl.SetBackground(state.URL(s), undo)
		}
	}
	urlBox := container.NewGridWrap(fyne.NewSize(320, url.MinSize().Height), url)

	return container.NewHBox(undoBtn, redoBtn, widget.NewToolbar(items...), urlBox, layout.NewSpacer()), stop
}

func setEnabled(w fyne.Disableable, on bool) {
	if on {
		w.Enable()
	} else {
		w.Disable()
	}
}

var fallbackEmojis = "😀🐶🌸⚽️🚗☀️"

// NewPaletteChooser shows the palettes of store and sets the board's tap
// emoji when one is picked. A nil store shows a fixed row.
func NewPaletteChooser(w fyne.Window, store *palette.Store, board *BoardWidget, logger *slog.Logger) fyne.CanvasObject {
	row := container.NewHBox()
	fill := func(emojis string) {
		gs := palette.Graphemes(emojis)
		row.RemoveAll()
		for _, g := range gs {
			row.Add(widget.NewButton(g, func() { board.Emoji = g }))
		}
		if len(gs) > 0 && board.Emoji == "" {
			board.Emoji = gs[0]
		}
	}
	scroller := container.NewHScroll(row)
	if store == nil {
		fill(fallbackEmojis)
		return scroller
	}

	var (
		current int
		picker  *widget.Select
	)
	show := func() {
		p, err := store.Palette(current)
		if err != nil {
			logger.Error("palette unavailable", "index", current, "error", err)
			return
		}
		fill(p.Emojis)
	}
	reload := func() {
		ps, err := store.Palettes()
		if err != nil {
			logger.Error("palettes unavailable", "error", err)
			return
		}
		names := make([]string, len(ps))
		for i, p := range ps {
			names[i] = p.Name
		}
		current = max(0, min(current, len(names)-1))
		picker.Options = names
		picker.SetSelectedIndex(current)
		show()
	}
	picker = widget.NewSelect(nil, func(string) {
		current = picker.SelectedIndex()
		show()
	})

	add := widget.NewEntry()
	add.SetPlaceHolder("Add emojis")
	add.OnSubmitted = func(s string) {
		p, err := store.Palette(current)
		if err == nil {
			err = store.AddEmojis(p.ID, s)
		}
		if err != nil {
			logger.Error("add emojis failed", "error", err)
			return
		}
		add.SetText("")
		reload()
	}
	newPalette := widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() {
		if _, err := store.Insert("Untitled", "", current); err != nil {
			logger.Error("new palette failed", "error", err)
			return
		}
		reload()
	})
	removePalette := widget.NewButtonWithIcon("", theme.ContentRemoveIcon(), func() {
		next, err := store.Remove(current)
		if err != nil {
			logger.Error("remove palette failed", "error", err)
			return
		}
		current = next
		reload()
	})

	manage := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showPaletteManager(w, store, logger, reload)
	})

	reload()
	left := container.NewHBox(picker, newPalette, removePalette, manage)
	right := container.NewGridWrap(fyne.NewSize(140, add.MinSize().Height), add)
	return container.NewBorder(nil, nil, left, right, scroller)
}
