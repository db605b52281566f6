package document

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"

	"EmojiArt/internal/state"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

type loadResult struct {
	data []byte
	err  error
}

// blockingLoader hands each URL's result out only once the test releases it.
type blockingLoader struct {
	mu      sync.Mutex
	results map[string]chan loadResult
}

func newBlockingLoader() *blockingLoader {
	return &blockingLoader{results: make(map[string]chan loadResult)}
}

func (l *blockingLoader) ch(u string) chan loadResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.results[u]
	if !ok {
		c = make(chan loadResult, 1)
		l.results[u] = c
	}
	return c
}

func (l *blockingLoader) Load(_ context.Context, u string) ([]byte, error) {
	r := <-l.ch(u)
	return r.data, r.err
}

func (l *blockingLoader) release(u string, data []byte, err error) {
	l.ch(u) <- loadResult{data: data, err: err}
}

// newTestController returns a controller whose fetch completions are
// announced on the returned channel after being applied.
func newTestController(t *testing.T, m state.Model, loader Loader) (*Controller, <-chan struct{}) {
	t.Helper()
	delivered := make(chan struct{}, 16)
	c := New(m, Options{
		Loader: loader,
		Logger: quietLogger(),
		Dispatch: func(fn func()) {
			fn()
			delivered <- struct{}{}
		},
	})
	t.Cleanup(c.Close)
	return c, delivered
}

func encode(t *testing.T, m state.Model) []byte {
	t.Helper()
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestController_Scenario(t *testing.T) {
	c, _ := newTestController(t, state.New(), nil)
	um := state.NewUndoStack()

	e, err := c.AddEmoji("😀", state.Point{X: 0, Y: 0}, 40, um)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.ID != 1 || e.Text != "😀" || e.X != 0 || e.Y != 0 || e.Size != 40 {
		t.Fatalf("added: %+v", e)
	}
	if got := um.UndoActionName(); got != "Add 😀" {
		t.Errorf("label: got %q", got)
	}

	c.MoveEmoji(1, state.Offset{DX: 10, DY: -5}, um)
	if got, _ := c.Model().Emoji(1); got.X != 10 || got.Y != -5 {
		t.Errorf("after move: %+v", got)
	}
	if got := um.UndoActionName(); got != "Move" {
		t.Errorf("label: got %q", got)
	}

	c.ScaleEmoji(1, 2.0, um)
	if got, _ := c.Model().Emoji(1); got.Size != 80 {
		t.Errorf("after scale: %+v", got)
	}
	if got := um.UndoActionName(); got != "Scale" {
		t.Errorf("label: got %q", got)
	}

	for i := 0; i < 3; i++ {
		if !um.Undo() {
			t.Fatalf("undo %d failed", i)
		}
	}
	if !bytes.Equal(encode(t, c.Model()), encode(t, state.New())) {
		t.Errorf("expected blank document, got %s", encode(t, c.Model()))
	}
}

func TestController_UndoRestoresExactly(t *testing.T) {
	embedded := pngBytes(t, 2, 2)
	intents := map[string]func(*Controller, UndoManager){
		"add":       func(c *Controller, um UndoManager) { c.AddEmoji("🐶", state.Point{X: 3, Y: 4}, 12, um) },
		"move":      func(c *Controller, um UndoManager) { c.MoveEmoji(1, state.Offset{DX: -7, DY: 9}, um) },
		"scale":     func(c *Controller, um UndoManager) { c.ScaleEmoji(1, 0.5, um) },
		"remove":    func(c *Controller, um UndoManager) { c.RemoveEmoji(1, um) },
		"embed":     func(c *Controller, um UndoManager) { c.SetBackground(state.ImageData(embedded), um) },
		"blank out": func(c *Controller, um UndoManager) { c.SetBackground(state.Blank(), um) },
	}
	for name, intent := range intents {
		t.Run(name, func(t *testing.T) {
			start, _ := state.New().AddEmoji("😀", state.Point{X: 1, Y: 2}, 40)
			start = start.WithBackground(state.ImageData(pngBytes(t, 1, 1)))
			c, _ := newTestController(t, start, nil)
			um := state.NewUndoStack()

			before := encode(t, c.Model())
			intent(c, um)
			after := encode(t, c.Model())
			if bytes.Equal(before, after) {
				t.Fatal("intent did not change the document")
			}

			if !um.Undo() {
				t.Fatal("nothing to undo")
			}
			if got := encode(t, c.Model()); !bytes.Equal(got, before) {
				t.Errorf("undo:\nwant %s\ngot  %s", before, got)
			}
			if !um.Redo() {
				t.Fatal("nothing to redo")
			}
			if got := encode(t, c.Model()); !bytes.Equal(got, after) {
				t.Errorf("redo:\nwant %s\ngot  %s", after, got)
			}
		})
	}
}

func TestController_MissingEmojiIsNoop(t *testing.T) {
	start, _ := state.New().AddEmoji("😀", state.Point{}, 40)
	c, _ := newTestController(t, start, nil)
	um := state.NewUndoStack()

	notified := 0
	cancel := c.Subscribe(func(Snapshot) { notified++ })
	defer cancel()

	before := c.Snapshot()
	c.MoveEmoji(42, state.Offset{DX: 1, DY: 1}, um)
	c.ScaleEmoji(42, 3, um)
	c.RemoveEmoji(42, um)
	after := c.Snapshot()

	if !after.Model.Equal(before.Model) {
		t.Error("model changed")
	}
	if after.Status != before.Status {
		t.Errorf("status changed: %v -> %v", before.Status, after.Status)
	}
	if after.Revision != before.Revision {
		t.Error("revision advanced on a no-op")
	}
	if um.CanUndo() {
		t.Error("no-op registered an undo")
	}
	if notified != 0 {
		t.Errorf("observers notified %d times", notified)
	}
}

func TestController_AddEmojiInvalid(t *testing.T) {
	c, _ := newTestController(t, state.New(), nil)
	um := state.NewUndoStack()
	if _, err := c.AddEmoji("", state.Point{}, 10, um); !errors.Is(err, state.ErrInvalidEmoji) {
		t.Fatalf("err: %v", err)
	}
	if um.CanUndo() || c.Model().Len() != 0 {
		t.Error("invalid add must leave no trace")
	}
}

func TestController_NilUndoManager(t *testing.T) {
	c, _ := newTestController(t, state.New(), nil)
	if _, err := c.AddEmoji("😀", state.Point{}, 10, nil); err != nil {
		t.Fatal(err)
	}
	if c.Model().Len() != 1 {
		t.Error("intent without undo manager must still apply")
	}
}

func TestController_FetchFailure(t *testing.T) {
	loader := newBlockingLoader()
	c, delivered := newTestController(t, state.New(), loader)
	um := state.NewUndoStack()

	const u = "http://x/img.png"
	c.SetBackground(state.URL(u), um)
	if got := c.FetchStatus(); got != (FetchStatus{State: Fetching, URL: u}) {
		t.Fatalf("status while fetching: %v", got)
	}

	loader.release(u, nil, errors.New("connection refused"))
	<-delivered

	if got := c.FetchStatus(); got != (FetchStatus{State: Failed, URL: u}) {
		t.Errorf("status: got %v", got)
	}
	if c.BackgroundImage() != nil {
		t.Error("image should be absent after failure")
	}
}

func TestController_FetchUndecodable(t *testing.T) {
	loader := newBlockingLoader()
	c, delivered := newTestController(t, state.New(), loader)

	const u = "http://x/notanimage"
	c.SetBackground(state.URL(u), nil)
	loader.release(u, []byte("<html>nope</html>"), nil)
	<-delivered

	if got := c.FetchStatus(); got.State != Failed || got.URL != u {
		t.Errorf("status: got %v", got)
	}
}

func TestController_FetchSuccessNotifies(t *testing.T) {
	loader := newBlockingLoader()
	c, delivered := newTestController(t, state.New(), loader)

	snaps := make(chan Snapshot, 4)
	defer c.Subscribe(func(s Snapshot) { snaps <- s })()

	const u = "http://x/ok.png"
	c.SetBackground(state.URL(u), nil)
	if s := <-snaps; s.Status.State != Fetching {
		t.Errorf("first snapshot status: %v", s.Status)
	}

	loader.release(u, pngBytes(t, 3, 2), nil)
	<-delivered
	s := <-snaps
	if s.Status.State != Idle || s.Image == nil {
		t.Fatalf("final snapshot: %v image=%v", s.Status, s.Image != nil)
	}
	if b := s.Image.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("image bounds: %v", b)
	}
}

func TestController_FetchFreshness(t *testing.T) {
	const url1, url2 = "http://x/one.png", "http://x/two.png"

	t.Run("stale completes last", func(t *testing.T) {
		loader := newBlockingLoader()
		c, delivered := newTestController(t, state.New(), loader)

		c.SetBackground(state.URL(url1), nil)
		c.SetBackground(state.URL(url2), nil)

		loader.release(url2, pngBytes(t, 2, 2), nil)
		<-delivered
		loader.release(url1, nil, errors.New("late failure"))
		<-delivered

		if got := c.FetchStatus(); got.State != Idle {
			t.Errorf("status: got %v, want idle", got)
		}
		if img := c.BackgroundImage(); img == nil || img.Bounds().Dx() != 2 {
			t.Error("image should come from url2")
		}
	})

	t.Run("stale completes first", func(t *testing.T) {
		loader := newBlockingLoader()
		c, delivered := newTestController(t, state.New(), loader)

		c.SetBackground(state.URL(url1), nil)
		c.SetBackground(state.URL(url2), nil)

		loader.release(url1, pngBytes(t, 5, 5), nil)
		<-delivered
		if got := c.FetchStatus(); got != (FetchStatus{State: Fetching, URL: url2}) {
			t.Errorf("stale result leaked: %v", got)
		}
		if c.BackgroundImage() != nil {
			t.Error("stale image applied")
		}

		loader.release(url2, nil, errors.New("boom"))
		<-delivered
		if got := c.FetchStatus(); got != (FetchStatus{State: Failed, URL: url2}) {
			t.Errorf("status: got %v", got)
		}
	})
}

func TestController_ResettingSameURLRestartsFetch(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	loader := LoaderFunc(func(context.Context, string) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil, errors.New("offline")
	})
	c, delivered := newTestController(t, state.New(), loader)

	c.SetBackground(state.URL("http://x/a.png"), nil)
	<-delivered
	c.SetBackground(state.URL("http://x/a.png"), nil)
	<-delivered

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("loads: got %d, want 2", calls)
	}
}

func TestController_EmbeddedBackground(t *testing.T) {
	c, _ := newTestController(t, state.New().WithBackground(state.ImageData(pngBytes(t, 4, 4))), nil)
	if c.BackgroundImage() == nil {
		t.Fatal("embedded image should decode synchronously on construction")
	}
	if c.FetchStatus().State != Idle {
		t.Errorf("status: %v", c.FetchStatus())
	}

	c.SetBackground(state.ImageData([]byte("corrupt")), nil)
	if c.BackgroundImage() != nil {
		t.Error("corrupt embedded bytes should leave no image")
	}
	if c.FetchStatus().State != Idle {
		t.Errorf("corrupt embedded status: %v", c.FetchStatus())
	}

	c.SetBackground(state.Blank(), nil)
	if c.BackgroundImage() != nil || c.FetchStatus().State != Idle {
		t.Error("blank should clear the image")
	}
}

func TestController_BlankCancelsFetch(t *testing.T) {
	loader := newBlockingLoader()
	c, delivered := newTestController(t, state.New(), loader)

	c.SetBackground(state.URL("http://x/slow.png"), nil)
	c.SetBackground(state.Blank(), nil)
	loader.release("http://x/slow.png", pngBytes(t, 1, 1), nil)
	<-delivered

	if c.BackgroundImage() != nil || c.FetchStatus().State != Idle {
		t.Errorf("late fetch overwrote blank background: %v", c.FetchStatus())
	}
}

func TestController_UndoBackgroundRefetches(t *testing.T) {
	loader := newBlockingLoader()
	c, delivered := newTestController(t, state.New(), loader)
	um := state.NewUndoStack()

	c.SetBackground(state.URL("http://x/1.png"), um)
	loader.release("http://x/1.png", pngBytes(t, 1, 1), nil)
	<-delivered
	c.SetBackground(state.Blank(), um)

	um.Undo()
	if got := c.FetchStatus(); got.State != Fetching || got.URL != "http://x/1.png" {
		t.Fatalf("undo should restart the fetch, status %v", got)
	}
	loader.release("http://x/1.png", pngBytes(t, 1, 1), nil)
	<-delivered
	if c.BackgroundImage() == nil {
		t.Error("image should be back after undo")
	}
}

func TestController_LoadedURLStartsFetch(t *testing.T) {
	loader := newBlockingLoader()
	c, delivered := newTestController(t, state.New().WithBackground(state.URL("http://x/doc.png")), loader)
	if c.FetchStatus().State != Fetching {
		t.Fatalf("status: %v", c.FetchStatus())
	}
	loader.release("http://x/doc.png", pngBytes(t, 1, 1), nil)
	<-delivered
	if c.FetchStatus().State != Idle {
		t.Errorf("status: %v", c.FetchStatus())
	}
}

func TestController_Replace(t *testing.T) {
	c, _ := newTestController(t, state.New(), nil)
	um := state.NewUndoStack()
	next, _ := state.New().AddEmoji("🌵", state.Point{}, 20)
	c.Replace(next)
	if !c.Model().Equal(next) {
		t.Error("replace did not swap the model")
	}
	if um.CanUndo() {
		t.Error("replace must not be undoable")
	}
}

func TestController_SubscribeCancel(t *testing.T) {
	c, _ := newTestController(t, state.New(), nil)
	count := 0
	cancel := c.Subscribe(func(Snapshot) { count++ })
	c.AddEmoji("a", state.Point{}, 1, nil)
	cancel()
	c.AddEmoji("b", state.Point{}, 1, nil)
	if count != 1 {
		t.Errorf("notifications: got %d, want 1", count)
	}
}
