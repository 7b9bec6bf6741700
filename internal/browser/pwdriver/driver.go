// Package pwdriver implements browser.Driver on playwright-go (Chromium).
package pwdriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"pin-relay/internal/browser"
	"pin-relay/internal/config"
)

var launchArgs = []string{
	"--ignore-certificate-errors",
	"--no-sandbox",
	"--disable-setuid-sandbox",
}

type Driver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	installOnce sync.Once
}

func New(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	return &Driver{cfg: cfg, logger: logger}
}

func (d *Driver) Name() string { return "playwright" }

func (d *Driver) Launch(ctx context.Context) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		d.install()
		if pw, err = playwright.Run(); err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.cfg.Headless),
		Args:     launchArgs,
	}
	if d.cfg.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(d.cfg.ExecutablePath)
	}

	b, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	out := &Browser{
		pw:           pw,
		browser:      b,
		disconnected: make(chan struct{}),
	}
	b.OnDisconnected(func(playwright.Browser) { out.markDisconnected() })
	return out, nil
}

func (d *Driver) install() {
	d.installOnce.Do(func() {
		d.logger.Info("Installing playwright driver and chromium (one-time setup)")
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			d.logger.Warn("Playwright install failed", zap.Error(err))
		}
	})
}

type Browser struct {
	pw           *playwright.Playwright
	browser      playwright.Browser
	disconnected chan struct{}
	once         sync.Once
}

func (b *Browser) markDisconnected() {
	b.once.Do(func() { close(b.disconnected) })
}

func (b *Browser) Disconnected() <-chan struct{} { return b.disconnected }

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &Page{bctx: bctx, page: page}, nil
}

func (b *Browser) Close() error {
	err := b.browser.Close()
	if stopErr := b.pw.Stop(); err == nil {
		err = stopErr
	}
	b.markDisconnected()
	return err
}

type Page struct {
	bctx playwright.BrowserContext
	page playwright.Page
}

// timeoutMillis bounds d by the context deadline, in playwright's milliseconds
func timeoutMillis(ctx context.Context, d time.Duration) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *Page) Goto(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeoutMillis(ctx, 60*time.Second),
	})
	return err
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: timeoutMillis(ctx, timeout),
	})
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: timeoutMillis(ctx, timeout),
	})
	return err
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, len(handles))
	for i, h := range handles {
		out[i] = &Element{handle: h}
	}
	return out, nil
}

func (p *Page) VisibleText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.InnerText("body")
}

func (p *Page) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard().Type(text)
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard().Press(key)
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (p *Page) Close() error {
	err := p.page.Close()
	if ctxErr := p.bctx.Close(); err == nil {
		err = ctxErr
	}
	return err
}

type Element struct {
	handle playwright.ElementHandle
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := e.handle.Evaluate(`(el, name) => el.getAttribute(name)`, name)
	if err != nil {
		return "", false, err
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.handle.TextContent()
}

func (e *Element) Value(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.handle.Evaluate(`el => (el.value === undefined || el.value === null) ? "" : String(el.value)`)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Fill clears then types the value through playwright, which fires input;
// change is dispatched explicitly.
func (e *Element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.handle.Fill(""); err != nil {
		return err
	}
	if err := e.handle.Fill(value); err != nil {
		return err
	}
	return e.handle.DispatchEvent("change")
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Click()
}

func (e *Element) Focus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Focus()
}
