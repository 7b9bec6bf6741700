// Package roddriver implements browser.Driver on go-rod over the Chrome
// DevTools Protocol.
package roddriver

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"pin-relay/internal/browser"
	"pin-relay/internal/config"
)

const heartbeatInterval = 2 * time.Second

type Driver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

func New(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	return &Driver{cfg: cfg, logger: logger}
}

func (d *Driver) Name() string { return "rod" }

func (d *Driver) Launch(ctx context.Context) (browser.Browser, error) {
	l := launcher.New().
		Headless(d.cfg.Headless).
		NoSandbox(true).
		Set("ignore-certificate-errors").
		Set("disable-setuid-sandbox")
	if d.cfg.ExecutablePath != "" {
		l = l.Bin(d.cfg.ExecutablePath)
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	rb := rod.New().ControlURL(controlURL)
	if err := rb.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}
	if err := rb.IgnoreCertErrors(true); err != nil {
		d.logger.Warn("Could not disable certificate checks", zap.Error(err))
	}

	b := &Browser{
		browser:      rb,
		launcher:     l,
		disconnected: make(chan struct{}),
		stop:         make(chan struct{}),
	}
	go b.heartbeat()
	return b, nil
}

type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher

	disconnected chan struct{}
	stop         chan struct{}
	discOnce     sync.Once
	stopOnce     sync.Once
}

// heartbeat polls Browser.getVersion; the first failure marks the browser gone
func (b *Browser) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if _, err := (proto.BrowserGetVersion{}).Call(b.browser); err != nil {
				b.markDisconnected()
				return
			}
		}
	}
}

func (b *Browser) markDisconnected() {
	b.discOnce.Do(func() { close(b.disconnected) })
}

func (b *Browser) Disconnected() <-chan struct{} { return b.disconnected }

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	// Detach the page from the creation context.
	return &Page{page: page.Context(context.Background())}, nil
}

func (b *Browser) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	err := b.browser.Close()
	b.launcher.Kill()
	b.markDisconnected()
	return err
}

type Page struct {
	page *rod.Page
}

func (p *Page) Goto(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitDOMStable(300*time.Millisecond, 0)
}

// WaitForNetworkIdle returns once no request has been in flight for half a
// second, or when timeout elapses.
func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := p.page.Context(wctx).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	wait()
	return wctx.Err()
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	return err
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out, nil
}

func (p *Page) VisibleText(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *Page) TypeText(ctx context.Context, text string) error {
	return p.page.Context(ctx).InsertText(text)
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard.Press(k)
}

var keys = map[string]input.Key{
	browser.KeyEnter: input.Enter,
	"Tab":            input.Tab,
	"Escape":         input.Escape,
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	data, err := p.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (p *Page) Close() error {
	return p.page.Close()
}

type Element struct {
	el *rod.Element
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`function() { return this.textContent || "" }`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *Element) Value(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`function() { return this.value == null ? "" : String(this.value) }`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

const fillJS = `function(v) {
	this.focus();
	this.value = "";
	this.value = v;
	this.dispatchEvent(new Event("input", { bubbles: true }));
	this.dispatchEvent(new Event("change", { bubbles: true }));
}`

func (e *Element) Fill(ctx context.Context, value string) error {
	_, err := e.el.Context(ctx).Eval(fillJS, value)
	return err
}

func (e *Element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *Element) Focus(ctx context.Context) error {
	return e.el.Context(ctx).Focus()
}
