package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"EmojiArt/internal/document"
	"EmojiArt/internal/state"
)

// BoardWidget draws the document and turns taps and drags into intents.
// It must only be used on the fyne main goroutine.
type BoardWidget struct {
	widget.BaseWidget

	ctrl *document.Controller
	undo *state.UndoStack
	snap document.Snapshot
	view view

	// Emoji and EmojiSize are what a tap on empty space adds.
	Emoji     string
	EmojiSize int
	ReadOnly  bool
	OnSelect  func(id int)

	selected int
	dragID   int // 0 while panning
	dragging bool
	dragBy   fyne.Delta
}

func NewBoardWidget(ctrl *document.Controller, undo *state.UndoStack) *BoardWidget {
	b := &BoardWidget{
		ctrl:      ctrl,
		undo:      undo,
		snap:      ctrl.Snapshot(),
		view:      view{scale: 1},
		EmojiSize: 40,
	}
	b.ExtendBaseWidget(b)
	return b
}

// Watch keeps the board in step with the controller until cancel is called.
func (b *BoardWidget) Watch() (cancel func()) {
	return b.ctrl.Subscribe(func(snap document.Snapshot) {
		fyne.Do(func() { b.update(snap) })
	})
}

func (b *BoardWidget) update(snap document.Snapshot) {
	if snap.Revision < b.snap.Revision {
		return
	}
	b.snap = snap
	if _, ok := snap.Model.Emoji(b.selected); !ok {
		b.selected = 0
	}
	b.Refresh()
}

// Selected returns the id of the selected emoji, or 0.
func (b *BoardWidget) Selected() int { return b.selected }

func (b *BoardWidget) Select(id int) {
	b.selected = id
	if b.OnSelect != nil {
		b.OnSelect(id)
	}
	b.Refresh()
}

// ScaleSelected resizes the selected emoji.
func (b *BoardWidget) ScaleSelected(factor float64) {
	if b.selected == 0 || b.ReadOnly {
		return
	}
	b.ctrl.ScaleEmoji(b.selected, factor, b.undo)
}

func (b *BoardWidget) RemoveSelected() {
	if b.selected == 0 || b.ReadOnly {
		return
	}
	b.ctrl.RemoveEmoji(b.selected, b.undo)
}

func (b *BoardWidget) Zoom(factor float32) {
	b.view.scale = clampZoom(b.view.scale * factor)
	b.Refresh()
}

func (b *BoardWidget) ResetView() {
	b.view.scale = 1
	b.view.pan = fyne.Position{}
	b.Refresh()
}

func (b *BoardWidget) Tapped(ev *fyne.PointEvent) {
	p := b.view.toDocument(ev.Position)
	if id, ok := hitTest(b.snap.Model.Emojis(), p); ok {
		if id == b.selected {
			id = 0
		}
		b.Select(id)
		return
	}
	if b.selected != 0 {
		b.Select(0)
		return
	}
	if b.ReadOnly || b.Emoji == "" {
		return
	}
	if e, err := b.ctrl.AddEmoji(b.Emoji, p, b.EmojiSize, b.undo); err == nil {
		b.Select(e.ID)
	}
}

func (b *BoardWidget) Dragged(ev *fyne.DragEvent) {
	if !b.dragging {
		b.dragging = true
		b.dragBy = fyne.Delta{}
		start := fyne.NewPos(ev.Position.X-ev.Dragged.DX, ev.Position.Y-ev.Dragged.DY)
		b.dragID = 0
		if id, ok := hitTest(b.snap.Model.Emojis(), b.view.toDocument(start)); ok && !b.ReadOnly {
			b.dragID = id
		}
	}
	if b.dragID == 0 {
		b.view.pan = fyne.NewPos(b.view.pan.X+ev.Dragged.DX, b.view.pan.Y+ev.Dragged.DY)
	} else {
		b.dragBy.DX += ev.Dragged.DX
		b.dragBy.DY += ev.Dragged.DY
	}
	b.Refresh()
}

// DragEnd commits an emoji drag as a single Move.
func (b *BoardWidget) DragEnd() {
	id, by := b.dragID, b.view.offset(b.dragBy)
	b.dragging, b.dragID, b.dragBy = false, 0, fyne.Delta{}
	if id != 0 && (by.DX != 0 || by.DY != 0) {
		b.ctrl.MoveEmoji(id, by, b.undo)
	}
	b.Refresh()
}

func (b *BoardWidget) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		b.Zoom(1.2)
	} else if ev.Scrolled.DY < 0 {
		b.Zoom(1 / 1.2)
	}
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 245, G: 246, B: 248, A: 255})
	sel := canvas.NewRectangle(color.Transparent)
	sel.StrokeColor = color.NRGBA{R: 0, G: 122, B: 255, A: 255}
	sel.StrokeWidth = 2
	r := &boardRenderer{b: b, bg: bg, sel: sel}
	r.Refresh()
	return r
}

type boardRenderer struct {
	b       *BoardWidget
	bg      *canvas.Rectangle
	img     *canvas.Image
	sel     *canvas.Rectangle
	texts   []*canvas.Text
	objects []fyne.CanvasObject
}

func (r *boardRenderer) Layout(size fyne.Size) {
	r.b.view.size = size
	r.bg.Resize(size)
	r.place()
}

func (r *boardRenderer) MinSize() fyne.Size { return fyne.NewSize(320, 240) }

func (r *boardRenderer) Objects() []fyne.CanvasObject { return r.objects }

func (r *boardRenderer) Destroy() {}

func (r *boardRenderer) Refresh() {
	snap := r.b.snap
	if snap.Image == nil {
		r.img = nil
	} else if r.img == nil || r.img.Image != snap.Image {
		r.img = canvas.NewImageFromImage(snap.Image)
		r.img.FillMode = canvas.ImageFillStretch
	}

	emojis := snap.Model.Emojis()
	r.texts = r.texts[:0]
	for _, e := range emojis {
		t := canvas.NewText(e.Text, color.Black)
		t.TextSize = float32(e.Size)
		r.texts = append(r.texts, t)
	}

	r.objects = append(r.objects[:0], r.bg)
	if r.img != nil {
		r.objects = append(r.objects, r.img)
	}
	for _, t := range r.texts {
		r.objects = append(r.objects, t)
	}
	r.objects = append(r.objects, r.sel)
	r.place()
	canvas.Refresh(r.b)
}

func (r *boardRenderer) place() {
	v := r.b.view
	if r.img != nil {
		bounds := r.img.Image.Bounds()
		size := fyne.NewSize(float32(bounds.Dx())*v.scale, float32(bounds.Dy())*v.scale)
		c := v.center()
		r.img.Resize(size)
		r.img.Move(fyne.NewPos(c.X-size.Width/2, c.Y-size.Height/2))
	}

	r.sel.Hide()
	for i, e := range r.b.snap.Model.Emojis() {
		if i >= len(r.texts) {
			break
		}
		if r.b.dragID == e.ID {
			by := v.offset(r.b.dragBy)
			e.X += by.DX
			e.Y += by.DY
		}
		t := r.texts[i]
		t.TextSize = float32(e.Size) * v.scale
		ms := t.MinSize()
		pos := v.toView(state.Point{X: e.X, Y: e.Y})
		t.Resize(ms)
		t.Move(fyne.NewPos(pos.X-ms.Width/2, pos.Y-ms.Height/2))

		if e.ID == r.b.selected {
			side := float32(e.Size) * v.scale
			r.sel.Resize(fyne.NewSize(side, side))
			r.sel.Move(fyne.NewPos(pos.X-side/2, pos.Y-side/2))
			r.sel.Show()
		}
	}
}
