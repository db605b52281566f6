// Package document owns the live collage: it applies user intents to the
// immutable state.Model, records their inverses with an undo manager, and
// keeps the background image in sync with the model's background.
package document

import (
	"image"
	"log/slog"
	"sync"

	"EmojiArt/internal/state"
)

// UndoManager is the LIFO undo coordinator intents register their inverse
// with. state.UndoStack implements it. A nil UndoManager disables undo.
type UndoManager interface {
	RegisterUndo(fn func())
	SetActionName(name string)
}

// Options configures a Controller.
type Options struct {
	Loader   Loader
	Dispatch func(func())
	Logger   *slog.Logger
}

// Snapshot is everything a view needs to draw the document, read atomically.
type Snapshot struct {
	Revision uint64
	Model    state.Model
	Image    image.Image
	Status   FetchStatus
}

// Controller is the single owner of the current document value and its
// background fetch state. All mutations go through its intent methods.
type Controller struct {
	fetcher *Fetcher
	logger  *slog.Logger
	clock   state.Clock

	mu       sync.RWMutex
	model    state.Model
	revision uint64

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObsID int
}

// New creates a controller for model and starts resolving its background.
func New(model state.Model, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Controller{
		logger:    opts.Logger,
		model:     model,
		observers: make(map[int]func(Snapshot)),
	}
	c.revision = c.clock.Tick()
	c.fetcher = NewFetcher(opts.Loader, FetcherOptions{
		Dispatch: opts.Dispatch,
		OnChange: c.backgroundResolved,
		Logger:   opts.Logger.With("component", "fetcher"),
	})
	c.fetcher.Resolve(model.Background())
	return c
}

// --- Intents ---

func (c *Controller) SetBackground(bg state.Background, um UndoManager) {
	c.undoablyPerform("Set Background", um, true, func(m state.Model) (state.Model, bool) {
		return m.WithBackground(bg), true
	})
}

// AddEmoji places a new emoji and returns it with its assigned id.
func (c *Controller) AddEmoji(text string, at state.Point, size int, um UndoManager) (state.Emoji, error) {
	var (
		added state.Emoji
		err   error
	)
	c.undoablyPerform("Add "+text, um, false, func(m state.Model) (state.Model, bool) {
		var next state.Model
		next, err = m.AddEmoji(text, at, size)
		if err != nil {
			return m, false
		}
		emojis := next.Emojis()
		added = emojis[len(emojis)-1]
		return next, true
	})
	return added, err
}

// MoveEmoji shifts an emoji. Unknown ids are ignored.
func (c *Controller) MoveEmoji(id int, by state.Offset, um UndoManager) {
	c.undoablyPerform("Move", um, false, func(m state.Model) (state.Model, bool) {
		return m.MoveEmoji(id, by)
	})
}

// ScaleEmoji resizes an emoji by factor. Unknown ids are ignored.
func (c *Controller) ScaleEmoji(id int, factor float64, um UndoManager) {
	c.undoablyPerform("Scale", um, false, func(m state.Model) (state.Model, bool) {
		return m.ScaleEmoji(id, factor)
	})
}

// RemoveEmoji deletes an emoji. Unknown ids are ignored.
func (c *Controller) RemoveEmoji(id int, um UndoManager) {
	e, ok := c.Model().Emoji(id)
	if !ok {
		return
	}
	c.undoablyPerform("Remove "+e.Text, um, false, func(m state.Model) (state.Model, bool) {
		return m.RemoveEmoji(id)
	})
}

// Replace swaps in a whole new document without recording undo, e.g. after
// a revert or when mirroring a shared document.
func (c *Controller) Replace(model state.Model) {
	c.mu.Lock()
	old := c.model
	c.model = model
	c.revision = c.clock.Tick()
	if !old.Background().Equal(model.Background()) {
		c.fetcher.Resolve(model.Background())
	}
	c.mu.Unlock()
	c.publish()
}

// undoablyPerform applies mutate to the current model and, if it accepted
// the change, registers an undo that performs this same transaction with a
// mutation restoring the captured value. Undoing that undo re-registers the
// forward change, which is how redo works.
func (c *Controller) undoablyPerform(operation string, um UndoManager, refetch bool, mutate func(state.Model) (state.Model, bool)) bool {
	c.mu.Lock()
	old := c.model
	next, ok := mutate(old)
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.model = next
	c.revision = c.clock.Tick()
	if refetch || !old.Background().Equal(next.Background()) {
		c.fetcher.Resolve(next.Background())
	}
	c.mu.Unlock()

	if um != nil {
		um.RegisterUndo(func() {
			c.undoablyPerform(operation, um, false, func(state.Model) (state.Model, bool) {
				return old, true
			})
		})
		um.SetActionName(operation)
	}
	c.logger.Debug("document changed", "operation", operation, "emojis", next.Len())
	c.publish()
	return true
}

// --- Observable state ---

func (c *Controller) Model() state.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Controller) Emojis() []state.Emoji { return c.Model().Emojis() }

func (c *Controller) Background() state.Background { return c.Model().Background() }

func (c *Controller) BackgroundImage() image.Image { return c.fetcher.Image() }

func (c *Controller) FetchStatus() FetchStatus { return c.fetcher.Status() }

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, status := c.fetcher.State()
	return Snapshot{
		Revision: c.revision,
		Model:    c.model,
		Image:    img,
		Status:   status,
	}
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func unregisters it. Observers run outside the controller's locks
// and may call back into it.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Controller) backgroundResolved() {
	c.mu.Lock()
	c.revision = c.clock.Tick()
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) publish() {
	snap := c.Snapshot()
	c.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Encode serializes the current document.
func (c *Controller) Encode() ([]byte, error) {
	return c.Model().Encode()
}

// Wait blocks until outstanding background fetches have completed.
func (c *Controller) Wait() { c.fetcher.Wait() }

func (c *Controller) Close() { c.fetcher.Close() }
