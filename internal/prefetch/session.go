package prefetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/pders01/skim/internal/debuglog"
)

// Options tune a Session. Zero values fall back to the defaults.
type Options struct {
	BufferSize    int
	FrontRatio    float64
	CacheCapacity int
	// PageAhead pulls the next page once fewer than this many visible items
	// remain past the focus.
	PageAhead int
	// Strict panics on protocol violations instead of logging them.
	Strict  bool
	Decoder Decoder
}

func DefaultOptions() Options {
	return Options{
		BufferSize:    DefaultBufferSize,
		FrontRatio:    DefaultFrontRatio,
		CacheCapacity: DefaultCacheCapacity,
		PageAhead:     DefaultBufferSize,
	}
}

func (o Options) normalized() Options {
	if o.BufferSize == 0 {
		o.BufferSize = DefaultBufferSize
	}
	o.BufferSize = ClampBufferSize(o.BufferSize)
	o.FrontRatio = ClampFrontRatio(o.FrontRatio)
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = DefaultCacheCapacity
	}
	// A window larger than the cache would evict its own entries every tick.
	o.CacheCapacity = max(o.CacheCapacity, o.BufferSize)
	if o.PageAhead <= 0 {
		o.PageAhead = o.BufferSize
	}
	return o
}

// Session owns the item store, the content cache and the dispatcher for one
// interactive client. All methods must be called from the same goroutine.
type Session struct {
	opts       Options
	provider   Provider
	dispatcher *Dispatcher
	store      *Store
	cache      *Cache
	filters    map[string]Filter
	// fetching counts resolve and decode tasks per index whose outcome has
	// not been applied yet.
	fetching map[Index]int

	focus     int
	cursor    Cursor
	pulling   bool
	exhausted bool
	// stalled stops automatic page pulls after a failure until More is called.
	stalled bool

	onAppend []func([]*Item)
}

func NewSession(ctx context.Context, provider Provider, opts Options) (*Session, error) {
	if provider == nil {
		return nil, fmt.Errorf("session requires a provider")
	}
	opts = opts.normalized()
	cache, err := NewCache(opts.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("creating content cache: %w", err)
	}
	return &Session{
		opts:       opts,
		provider:   provider,
		dispatcher: NewDispatcher(ctx, opts.Decoder),
		store:      NewStore(),
		cache:      cache,
		filters:    make(map[string]Filter),
		fetching:   make(map[Index]int),
	}, nil
}

// OnAppend registers fn to run, on the owning goroutine, whenever a page of
// items has been appended.
func (s *Session) OnAppend(fn func([]*Item)) {
	s.onAppend = append(s.onAppend, fn)
}

// Tick applies at most one finished outcome, then refreshes the prefetch
// window and requests more items if the focus is close to the end.
// It reports whether work is still outstanding.
func (s *Session) Tick() bool {
	if out, ok := s.dispatcher.Poll(); ok {
		s.apply(out)
	}
	s.Buffer()
	s.ensurePages()
	return s.Busy()
}

// Busy reports whether dispatched tasks have not yet reported back.
func (s *Session) Busy() bool {
	return s.dispatcher.InFlight() > 0
}

// Buffer dispatches a content fetch for every position in the current window
// that has no cache entry yet. Calling it again without moving the focus
// dispatches nothing.
func (s *Session) Buffer() int {
	visible := s.Visible()
	w := Select(len(visible), s.focus, s.opts.BufferSize, s.opts.FrontRatio)
	dispatched := 0
	for _, item := range visible[w.Lo:w.Hi] {
		if s.cache.Contains(item.Index) {
			continue
		}
		s.cache.MarkPending(item.Index)
		ticket, _ := s.cache.Ticket(item.Index)
		s.fetching[item.Index]++
		s.dispatcher.Dispatch(ResolveContent{Source: s.provider, Item: item, Ticket: ticket})
		dispatched++
	}
	if dispatched > 0 {
		debuglog.Debugf("buffer: window [%d,%d) dispatched %d", w.Lo, w.Hi, dispatched)
	}
	return dispatched
}

func (s *Session) ensurePages() {
	if s.pulling || s.exhausted || s.stalled {
		return
	}
	if remaining := len(s.Visible()) - s.focus - 1; remaining >= s.opts.PageAhead {
		return
	}
	s.pullNext()
}

// More requests the next page unless a pull is already in flight or the
// provider is exhausted.
func (s *Session) More() bool {
	if s.pulling || s.exhausted {
		return false
	}
	s.stalled = false
	s.pullNext()
	return true
}

func (s *Session) pullNext() {
	s.pulling = true
	s.dispatcher.Dispatch(PullPage{Source: s.provider, Cursor: s.cursor})
}

func (s *Session) apply(out Outcome) {
	switch out := out.(type) {
	case PageReady:
		s.pulling = false
		s.cursor = out.Next
		s.exhausted = out.Exhausted
		added := s.store.Append(out.Items)
		debuglog.Debugf("page: appended %d items (total %d, exhausted %t)", len(added), s.store.Len(), s.exhausted)
		for _, fn := range s.onAppend {
			fn(added)
		}
	case ContentReady:
		s.fetchDone(out.Index)
		s.applyContent(out)
	case ImageDecoded:
		s.fetchDone(out.Index)
		s.resolve(out.Index, out.Ticket, out.Image)
	case Failed:
		switch t := out.Task.(type) {
		case PullPage:
			s.pulling = false
			s.stalled = true
		case ResolveContent:
			s.fetchDone(t.Item.Index)
		case DecodeImage:
			s.fetchDone(t.Index)
		}
		debuglog.Warnf("task failed: %v", out.Err)
	}
}

func (s *Session) fetchDone(i Index) {
	if s.fetching[i] <= 1 {
		delete(s.fetching, i)
		return
	}
	s.fetching[i]--
}

func (s *Session) applyContent(out ContentReady) {
	cur, ok := s.cache.Ticket(out.Index)
	switch {
	case !ok:
		debuglog.Debugf("content for evicted item %d dropped", out.Index)
		return
	case cur != out.Ticket:
		debuglog.Debugf("content for item %d ticket %d dropped, entry has %d", out.Index, out.Ticket, cur)
		return
	case s.cache.State(out.Index) == Resolved:
		s.violation(fmt.Errorf("%w: content for already resolved item %d", ErrProtocol, out.Index))
		return
	}

	p := out.Payload
	switch p.Kind {
	case PayloadImage:
		s.fetching[out.Index]++
		s.dispatcher.Dispatch(DecodeImage{Raw: p.Raw, Index: out.Index, Ticket: out.Ticket})
	case PayloadMarkup:
		s.resolve(out.Index, out.Ticket, Unsupported{URL: p.URL, Summary: p.Text})
	default:
		s.resolve(out.Index, out.Ticket, Text{Body: p.Text})
	}
}

func (s *Session) resolve(i Index, t Ticket, c Content) {
	err := s.cache.Settle(i, t, c)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotCached), errors.Is(err, ErrStaleTicket):
		debuglog.Debugf("result for replaced or evicted item %d dropped: %v", i, err)
	default:
		s.violation(fmt.Errorf("%w: %w", ErrProtocol, err))
	}
}

func (s *Session) violation(err error) {
	if s.opts.Strict {
		panic(err)
	}
	debuglog.Errorf("%v", err)
}

// Replace switches to a new provider. Items, cached content and in-flight
// accounting are reset, and late results from the old feed are discarded.
func (s *Session) Replace(provider Provider) {
	if provider != nil {
		s.provider = provider
	}
	gen := s.dispatcher.Advance()
	s.store.Reset()
	s.cache.Purge()
	clear(s.fetching)
	s.focus = 0
	s.cursor = ""
	s.pulling = false
	s.exhausted = false
	s.stalled = false
	debuglog.Infof("session reset to generation %d", gen)
}

// Visible returns the filtered item sequence the focus refers to.
func (s *Session) Visible() []*Item {
	return s.store.Visible(s.filters)
}

// SetFilter installs or replaces a named predicate. The focus is clamped to
// the new visible sequence.
func (s *Session) SetFilter(name string, f Filter) {
	if f == nil {
		delete(s.filters, name)
	} else {
		s.filters[name] = f
	}
	s.SetFocus(s.focus)
}

func (s *Session) ClearFilters() {
	clear(s.filters)
	s.SetFocus(s.focus)
}

func (s *Session) Focus() int {
	return s.focus
}

// SetFocus moves the focus to pos, clamped to the visible range.
func (s *Session) SetFocus(pos int) {
	n := len(s.Visible())
	s.focus = min(max(pos, 0), max(n-1, 0))
}

// Move shifts the focus by delta positions.
func (s *Session) Move(delta int) {
	s.SetFocus(s.focus + delta)
}

// Focused returns the item under the focus.
func (s *Session) Focused() (*Item, bool) {
	return s.At(s.focus)
}

// At returns the visible item at pos.
func (s *Session) At(pos int) (*Item, bool) {
	visible := s.Visible()
	if pos < 0 || pos >= len(visible) {
		return nil, false
	}
	return visible[pos], true
}

// Content returns whatever is resolved for the visible item at pos.
// A false result means the caller should show a loading placeholder.
func (s *Session) Content(pos int) (Content, bool) {
	item, ok := s.At(pos)
	if !ok {
		return nil, false
	}
	return s.cache.Get(item.Index)
}

// State reports the cache state of the visible item at pos.
func (s *Session) State(pos int) EntryState {
	item, ok := s.At(pos)
	if !ok {
		return Absent
	}
	return s.cache.State(item.Index)
}

// Retry forgets the cache entry of the item at pos so the next Buffer
// fetches it again. This is the only way out of a permanently pending entry.
// A pending entry whose fetch is still outstanding is left alone.
func (s *Session) Retry(pos int) bool {
	item, ok := s.At(pos)
	if !ok {
		return false
	}
	if s.cache.State(item.Index) == Pending && s.fetching[item.Index] > 0 {
		debuglog.Debugf("retry of item %d ignored, fetch still outstanding", item.Index)
		return false
	}
	return s.cache.Remove(item.Index)
}

// Stats is a snapshot for status lines and logging.
type Stats struct {
	Items      int
	Visible    int
	Cached     int
	InFlight   int
	Evictions  int
	Generation uint64
	Exhausted  bool
	Stalled    bool
}

func (s *Session) Stats() Stats {
	return Stats{
		Items:      s.store.Len(),
		Visible:    len(s.Visible()),
		Cached:     s.cache.Len(),
		InFlight:   s.dispatcher.InFlight(),
		Evictions:  s.cache.Evictions(),
		Generation: s.dispatcher.Generation(),
		Exhausted:  s.exhausted,
		Stalled:    s.stalled,
	}
}

// Close stops background work.
func (s *Session) Close() {
	s.dispatcher.Close()
}
