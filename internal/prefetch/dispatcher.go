package prefetch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/skim/internal/debuglog"
)

const resultBuffer = 64

// Task is one unit of background work. The set is closed: PullPage,
// ResolveContent and DecodeImage.
type Task interface {
	task()
}

// PullPage fetches the page after Cursor from Source.
type PullPage struct {
	Source Provider
	Cursor Cursor
}

// ResolveContent resolves Item to a payload using Source. Ticket is the
// cache entry the result is meant for and is echoed back unchanged.
type ResolveContent struct {
	Source Provider
	Item   *Item
	Ticket Ticket
}

// DecodeImage decodes Raw into pixels for the entry at Index.
type DecodeImage struct {
	Raw    []byte
	Index  Index
	Ticket Ticket
}

func (PullPage) task()       {}
func (ResolveContent) task() {}
func (DecodeImage) task()    {}

// Outcome is the result a worker reports back. The set is closed:
// PageReady, ContentReady, ImageDecoded and Failed.
type Outcome interface {
	outcome()
}

type PageReady struct {
	Items     []Item
	Next      Cursor
	Exhausted bool
}

type ContentReady struct {
	Index   Index
	Ticket  Ticket
	Payload Payload
}

type ImageDecoded struct {
	Index  Index
	Ticket Ticket
	Image  *Image
}

// Failed reports a task that ended in error. It still counts as the task's
// single outcome so the in-flight counter always settles.
type Failed struct {
	Task Task
	Err  error
}

func (PageReady) outcome()    {}
func (ContentReady) outcome() {}
func (ImageDecoded) outcome() {}
func (Failed) outcome()       {}

type delivery struct {
	generation uint64
	outcome    Outcome
}

// Dispatcher runs each task on its own goroutine and funnels outcomes back
// through a single channel. Dispatch, Poll, Advance and InFlight must be
// called from the owning goroutine only; workers touch nothing but the channel.
type Dispatcher struct {
	ctx     context.Context
	cancel  context.CancelFunc
	decoder Decoder
	results chan delivery
	workers errgroup.Group

	generation uint64
	inFlight   int
}

func NewDispatcher(ctx context.Context, decoder Decoder) *Dispatcher {
	if decoder == nil {
		decoder = NewImageDecoder()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Dispatcher{
		ctx:     ctx,
		cancel:  cancel,
		decoder: decoder,
		results: make(chan delivery, resultBuffer),
	}
}

// Dispatch starts task in the background and returns immediately.
func (d *Dispatcher) Dispatch(t Task) {
	d.inFlight++
	gen := d.generation
	d.workers.Go(func() error {
		out := d.run(t)
		select {
		case d.results <- delivery{generation: gen, outcome: out}:
		case <-d.ctx.Done():
		}
		// Failures travel as Failed outcomes; the group only tracks lifetimes.
		return nil
	})
}

func (d *Dispatcher) run(t Task) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed{Task: t, Err: fmt.Errorf("task panicked: %v", r)}
		}
	}()

	switch t := t.(type) {
	case PullPage:
		page, err := t.Source.PullPage(d.ctx, t.Cursor)
		if err != nil {
			return Failed{Task: t, Err: fmt.Errorf("%w: pulling page: %w", ErrProvider, err)}
		}
		return PageReady{Items: page.Items, Next: page.Next, Exhausted: page.Exhausted}
	case ResolveContent:
		payload, err := t.Source.Resolve(d.ctx, t.Item)
		if err != nil {
			return Failed{Task: t, Err: fmt.Errorf("%w: resolving item %d: %w", ErrProvider, t.Item.Index, err)}
		}
		return ContentReady{Index: t.Item.Index, Ticket: t.Ticket, Payload: payload}
	case DecodeImage:
		img, err := d.decoder.Decode(t.Raw)
		if err != nil {
			return Failed{Task: t, Err: fmt.Errorf("%w: item %d: %w", ErrDecode, t.Index, err)}
		}
		return ImageDecoded{Index: t.Index, Ticket: t.Ticket, Image: img}
	default:
		return Failed{Task: t, Err: fmt.Errorf("unknown task %T", t)}
	}
}

// Poll drains at most one outcome without blocking. Outcomes from an earlier
// generation are discarded and reported as nothing received.
func (d *Dispatcher) Poll() (Outcome, bool) {
	select {
	case dl := <-d.results:
		if dl.generation != d.generation {
			debuglog.Debugf("dispatcher: dropped %T from generation %d", dl.outcome, dl.generation)
			return nil, false
		}
		d.inFlight--
		return dl.outcome, true
	default:
		return nil, false
	}
}

// Advance starts a new generation. Work dispatched earlier keeps running but
// its outcomes will be discarded, and the in-flight counter restarts at zero.
func (d *Dispatcher) Advance() uint64 {
	d.generation++
	d.inFlight = 0
	return d.generation
}

// InFlight is the number of tasks of the current generation whose outcome
// has not been consumed yet.
func (d *Dispatcher) InFlight() int {
	return d.inFlight
}

func (d *Dispatcher) Generation() uint64 {
	return d.generation
}

// Close cancels the context handed to providers and waits for workers.
// Workers that are blocked on a full result channel give up their outcome.
func (d *Dispatcher) Close() {
	d.cancel()
	_ = d.workers.Wait()
}
