package ui

import (
	"io"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"EmojiArt/internal/document"
	"EmojiArt/internal/export"
	"EmojiArt/internal/palette"
	"EmojiArt/internal/state"
)

type Options struct {
	Title      string
	Controller *document.Controller
	Undo       *state.UndoStack
	Palettes   *palette.Store
	ShareLink  string
	Export     export.Options
	ReadOnly   bool
	Logger     *slog.Logger
}

// NewApp creates the fyne application. It must exist before Dispatch is used.
func NewApp() fyne.App {
	return app.NewWithID("io.emojiart.app")
}

// Dispatch runs fn on the fyne main goroutine. It is the delivery context
// for background fetch completions.
func Dispatch(fn func()) { fyne.Do(fn) }

// RunApp shows the main window and blocks until it is closed.
func RunApp(a fyne.App, opts Options) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Undo == nil {
		opts.Undo = state.NewUndoStack()
	}
	if opts.Title == "" {
		opts.Title = "EmojiArt"
	}
	w := a.NewWindow(opts.Title)
	w.Resize(fyne.NewSize(1024, 768))

	board := NewBoardWidget(opts.Controller, opts.Undo)
	board.ReadOnly = opts.ReadOnly
	stopBoard := board.Watch()

	status, stopStatus := bindStatus(opts.Controller)
	bottom := []fyne.CanvasObject{widget.NewLabelWithData(status)}
	if opts.ShareLink != "" {
		link := opts.ShareLink
		bottom = append(bottom, widget.NewButton("Copy share link", func() {
			w.Clipboard().SetContent(link)
		}), widget.NewLabel(link))
	}

	toolbar, stopToolbar := NewToolbar(w, board, opts)
	top := []fyne.CanvasObject{toolbar}
	if !opts.ReadOnly {
		top = append(top, NewPaletteChooser(w, opts.Palettes, board, opts.Logger))
	}

	w.SetContent(container.NewBorder(
		container.NewVBox(top...),
		container.NewHBox(bottom...),
		nil, nil,
		board,
	))
	if !opts.ReadOnly {
		bindKeys(w, board, opts.Undo)
		w.SetMainMenu(fileMenu(w, opts))
	}
	w.SetOnClosed(func() {
		stopBoard()
		stopStatus()
		stopToolbar()
	})
	w.ShowAndRun()
}

// fileMenu opens other documents into the controller and saves copies.
// Opening replaces the document, so undo history is dropped with it.
func fileMenu(w fyne.Window, opts Options) *fyne.MainMenu {
	ctrl, undo, logger := opts.Controller, opts.Undo, opts.Logger
	open := fyne.NewMenuItem("Open…", func() {
		dialog.ShowFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err == nil {
				var m state.Model
				if m, err = state.Decode(data); err == nil {
					undo.RemoveAll()
					ctrl.Replace(m)
					logger.Info("document opened", "uri", rc.URI().String(), "emojis", m.Len())
					return
				}
			}
			logger.Error("open failed", "uri", rc.URI().String(), "error", err)
			dialog.ShowError(err, w)
		}, w)
	})
	saveCopy := fyne.NewMenuItem("Save a Copy…", func() {
		dialog.ShowFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil || wc == nil {
				return
			}
			defer wc.Close()
			data, err := ctrl.Encode()
			if err == nil {
				_, err = wc.Write(data)
			}
			if err != nil {
				logger.Error("save failed", "uri", wc.URI().String(), "error", err)
				dialog.ShowError(err, w)
			}
		}, w)
	})
	return fyne.NewMainMenu(fyne.NewMenu("File", open, saveCopy))
}

// bindStatus mirrors the controller's fetch status into a string binding.
func bindStatus(ctrl *document.Controller) (binding.String, func()) {
	s := binding.NewString()
	s.Set(statusText(ctrl.Snapshot()))
	cancel := ctrl.Subscribe(func(snap document.Snapshot) {
		fyne.Do(func() { s.Set(statusText(snap)) })
	})
	return s, cancel
}

func bindKeys(w fyne.Window, board *BoardWidget, undo *state.UndoStack) {
	c := w.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { undo.Undo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift},
		func(fyne.Shortcut) { undo.Redo() })
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			board.RemoveSelected()
		case fyne.KeyEscape:
			board.Select(0)
		}
	})
}
