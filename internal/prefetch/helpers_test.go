package prefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeProvider serves fixed pages and per-item payloads. Resolve blocks on
// gate when it is set.
type fakeProvider struct {
	mu         sync.Mutex
	pages      [][]Item
	payloads   map[string]Payload
	resolveErr error
	pullErr    error
	panicOn    string
	gate       chan struct{}
	resolved   map[string]int
	pulls      int
}

func newFakeProvider(pages ...[]Item) *fakeProvider {
	return &fakeProvider{
		pages:    pages,
		payloads: make(map[string]Payload),
		resolved: make(map[string]int),
	}
}

func (p *fakeProvider) PullPage(_ context.Context, cursor Cursor) (Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pulls++
	if p.pullErr != nil {
		return Page{}, p.pullErr
	}
	i := 0
	if cursor != "" {
		n, err := strconv.Atoi(string(cursor))
		if err != nil {
			return Page{}, err
		}
		i = n
	}
	if i >= len(p.pages) {
		return Page{Exhausted: true}, nil
	}
	return Page{
		Items:     p.pages[i],
		Next:      Cursor(strconv.Itoa(i + 1)),
		Exhausted: i == len(p.pages)-1,
	}, nil
}

func (p *fakeProvider) Resolve(ctx context.Context, item *Item) (Payload, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Payload{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved[item.ID]++
	if item.ID == p.panicOn {
		panic("boom")
	}
	if p.resolveErr != nil {
		return Payload{}, p.resolveErr
	}
	if payload, ok := p.payloads[item.ID]; ok {
		return payload, nil
	}
	return Payload{Kind: PayloadText, Text: "body of " + item.ID}, nil
}

func (p *fakeProvider) resolveCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolved[id]
}

func (p *fakeProvider) totalResolves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.resolved {
		n += c
	}
	return n
}

var errFake = errors.New("fake failure")

func makeItems(prefix string, n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:    fmt.Sprintf("%s-%d", prefix, i),
			Title: fmt.Sprintf("%s item %d", prefix, i),
			Score: i,
		}
	}
	return items
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// tickUntil ticks s until cond holds or the deadline passes.
func tickUntil(t *testing.T, s *Session, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.Tick()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline; stats %+v", s.Stats())
}

// pollUntil polls d until an outcome arrives.
func pollUntil(t *testing.T, d *Dispatcher) Outcome {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if out, ok := d.Poll(); ok {
			return out
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no outcome before deadline")
	return nil
}

func (p *fakeProvider) pullCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pulls
}

func (p *fakeProvider) setResolveErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolveErr = err
}

func (p *fakeProvider) setPullErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pullErr = err
}
