package document

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"EmojiArt/internal/state"
)

// FetchState is the phase of background image resolution.
type FetchState int

const (
	Idle FetchState = iota
	Fetching
	Failed
)

// FetchStatus is the observable fetch state. URL is set for Fetching and
// Failed and names the background reference the state refers to.
type FetchStatus struct {
	State FetchState
	URL   string
}

func (s FetchStatus) String() string {
	switch s.State {
	case Fetching:
		return "fetching " + s.URL
	case Failed:
		return "failed " + s.URL
	default:
		return "idle"
	}
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// Dispatch delivers fetch completions to the context that reads the
	// fetcher's state, e.g. a UI main loop. Default: run inline.
	Dispatch func(func())
	// OnChange is called after an asynchronous completion was applied.
	OnChange func()
	Logger   *slog.Logger
}

// Fetcher resolves a document background into a decoded image. At most one
// remote fetch is outstanding: every Resolve takes a new generation from the
// clock and completions carrying an older generation are dropped.
type Fetcher struct {
	loader   Loader
	dispatch func(func())
	onChange func()
	logger   *slog.Logger
	clock    state.Clock
	wg       sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	image      image.Image
	status     FetchStatus
	closed     bool
}

func NewFetcher(loader Loader, opts FetcherOptions) *Fetcher {
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { fn() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher{
		loader:   loader,
		dispatch: opts.Dispatch,
		onChange: opts.OnChange,
		logger:   opts.Logger,
	}
}

// Resolve moves the fetcher to the state matching bg. Blank and embedded
// backgrounds resolve synchronously; a URL starts an asynchronous fetch and
// leaves the status at Fetching. Resolve itself never calls OnChange.
func (f *Fetcher) Resolve(bg state.Background) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.generation = f.clock.Tick()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.image = nil

	switch bg.Kind() {
	case state.BackgroundBlank:
		f.status = FetchStatus{State: Idle}

	case state.BackgroundImageData:
		f.status = FetchStatus{State: Idle}
		img, format, err := decodeImage(bg.ImageData())
		if err != nil {
			// Corrupt embedded bytes are a data problem: no image, still idle.
			f.logger.Warn("embedded background not decodable", "error", err)
			return
		}
		f.image = img
		f.logger.Debug("embedded background decoded", "format", format)

	case state.BackgroundURL:
		u := bg.URL()
		f.status = FetchStatus{State: Fetching, URL: u}
		if f.closed || f.loader == nil {
			f.status = FetchStatus{State: Failed, URL: u}
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		f.cancel = cancel
		f.wg.Add(1)
		go f.fetch(ctx, f.generation, u)
		f.logger.Info("background fetch started", "url", u, "generation", f.generation)
	}
}

func (f *Fetcher) fetch(ctx context.Context, generation uint64, u string) {
	defer f.wg.Done()
	data, err := f.loader.Load(ctx, u)
	var img image.Image
	if err == nil {
		img, _, err = decodeImage(data)
	}
	f.dispatch(func() { f.complete(generation, u, img, err) })
}

func (f *Fetcher) complete(generation uint64, u string, img image.Image, err error) {
	f.mu.Lock()
	if generation != f.generation {
		f.mu.Unlock()
		f.logger.Debug("stale background fetch dropped", "url", u, "generation", generation)
		return
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if err != nil {
		f.image = nil
		f.status = FetchStatus{State: Failed, URL: u}
		f.logger.Warn("background fetch failed", "url", u, "error", err)
	} else {
		f.image = img
		f.status = FetchStatus{State: Idle}
		f.logger.Info("background fetch done", "url", u)
	}
	onChange := f.onChange
	f.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// State returns the image and status as one consistent pair.
func (f *Fetcher) State() (image.Image, FetchStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.image, f.status
}

func (f *Fetcher) Image() image.Image {
	img, _ := f.State()
	return img
}

func (f *Fetcher) Status() FetchStatus {
	_, st := f.State()
	return st
}

// Wait blocks until every started fetch has handed its result to Dispatch.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// Close cancels the outstanding fetch and drops any late completion.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.generation = f.clock.Tick()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
