// Package browsertest provides an in-memory browser.Page over static HTML,
// parsed with goquery, for exercising the automation core without Chromium.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"pin-relay/internal/browser"
)

// Action is one page interaction recorded by the fake
type Action struct {
	Kind   string // goto, fill, click, focus, type, press, screenshot
	Target string
	Value  string
}

type Page struct {
	// FillHook runs before a fill is applied; a non-nil error fails the fill.
	FillHook func(el *Element, value string) error
	// DropFill makes fills report success without changing the value.
	DropFill func(el *Element) bool
	// ClickHook runs after a click is recorded.
	ClickHook func(p *Page, el *Element) error
	// KeyHook runs after a key press is recorded.
	KeyHook func(p *Page, key string) error

	mu      sync.Mutex
	doc     *goquery.Document
	values  map[*html.Node]string
	focused *html.Node
	actions []Action
	closed  bool
	url     string
}

func NewPage(markup string) *Page {
	p := &Page{}
	p.SetHTML(markup)
	return p
}

// SetHTML replaces the document, as a navigation would
func (p *Page) SetHTML(markup string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		panic(fmt.Sprintf("browsertest: bad markup: %v", err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	p.values = make(map[*html.Node]string)
	p.focused = nil
}

// Actions returns a copy of the interaction log
func (p *Page) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Action(nil), p.actions...)
}

// ActionsOf filters the log by kind
func (p *Page) ActionsOf(kind string) []Action {
	var out []Action
	for _, a := range p.Actions() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// ValueOf returns the current value of the first element matching selector
func (p *Page) ValueOf(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return p.valueLocked(sel.Get(0))
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) record(a Action) {
	p.mu.Lock()
	p.actions = append(p.actions, a)
	p.mu.Unlock()
}

func (p *Page) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	p.record(Action{Kind: "goto", Value: url})
	return ctx.Err()
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("timeout waiting for %q", selector)
	}
	return nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []browser.Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{page: p, node: s.Get(0)})
	})
	return out, nil
}

func (p *Page) VisibleText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find("body").Text(), nil
}

// TypeText appends to the focused element's value
func (p *Page) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	target := ""
	if p.focused != nil {
		p.values[p.focused] = p.valueLocked(p.focused) + text
		target = describe(p.focused)
	}
	p.mu.Unlock()
	p.record(Action{Kind: "type", Target: target, Value: text})
	return nil
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record(Action{Kind: "press", Value: key})
	if p.KeyHook != nil {
		return p.KeyHook(p, key)
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	p.record(Action{Kind: "screenshot", Value: path})
	return ctx.Err()
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *Page) valueLocked(n *html.Node) string {
	if v, ok := p.values[n]; ok {
		return v
	}
	if n.Data == "textarea" {
		return goquery.NewDocumentFromNode(n).Text()
	}
	return attr(n, "value")
}

// Element is a node of the fake document
type Element struct {
	page *Page
	node *html.Node
}

// ID returns the element id, handy in hooks
func (e *Element) ID() string { return attr(e.node, "id") }

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return goquery.NewDocumentFromNode(e.node).Text(), nil
}

func (e *Element) Value(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.valueLocked(e.node), nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.page.FillHook != nil {
		if err := e.page.FillHook(e, value); err != nil {
			return err
		}
	}
	e.page.record(Action{Kind: "fill", Target: describe(e.node), Value: value})
	if e.page.DropFill != nil && e.page.DropFill(e) {
		return nil
	}
	e.page.mu.Lock()
	e.page.values[e.node] = value
	e.page.mu.Unlock()
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record(Action{Kind: "click", Target: describe(e.node)})
	if e.page.ClickHook != nil {
		return e.page.ClickHook(e.page, e)
	}
	return nil
}

func (e *Element) Focus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch e.node.Data {
	case "input", "textarea", "button", "select":
	default:
		return fmt.Errorf("%s is not focusable", describe(e.node))
	}
	e.page.mu.Lock()
	e.page.focused = e.node
	e.page.mu.Unlock()
	e.page.record(Action{Kind: "focus", Target: describe(e.node)})
	return nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// describe names a node by id, then name, then tag
func describe(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		return "#" + id
	}
	if name := attr(n, "name"); name != "" {
		return n.Data + "[name=" + name + "]"
	}
	return n.Data
}
