package browsertest

import (
	"context"
	"errors"
	"sync"

	"pin-relay/internal/browser"
)

// Browser hands out pages produced by PageFunc
type Browser struct {
	PageFunc func() *Page
	CloseErr error

	mu           sync.Mutex
	pages        []*Page
	closed       bool
	disconnected chan struct{}
	once         sync.Once
}

func NewBrowser(pageFunc func() *Page) *Browser {
	return &Browser{PageFunc: pageFunc, disconnected: make(chan struct{})}
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("browser closed")
	}
	p := b.PageFunc()
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

func (b *Browser) Disconnected() <-chan struct{} { return b.disconnected }

// Crash simulates the browser process dying
func (b *Browser) Crash() {
	b.once.Do(func() { close(b.disconnected) })
}

func (b *Browser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.Crash()
	return b.CloseErr
}

func (b *Browser) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Driver launches fake browsers and counts launches
type Driver struct {
	LaunchErr error
	PageFunc  func() *Page

	mu       sync.Mutex
	launched []*Browser
}

func (d *Driver) Name() string { return "fake" }

func (d *Driver) Launch(ctx context.Context) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.LaunchErr != nil {
		return nil, d.LaunchErr
	}
	pageFunc := d.PageFunc
	if pageFunc == nil {
		pageFunc = func() *Page { return NewPage("<html><body></body></html>") }
	}
	b := NewBrowser(pageFunc)
	d.launched = append(d.launched, b)
	return b, nil
}

func (d *Driver) Launched() []*Browser {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Browser(nil), d.launched...)
}
