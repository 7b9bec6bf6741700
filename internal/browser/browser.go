// Package browser defines the narrow browser surface the automation core
// drives, plus the session manager that owns the single browser instance.
package browser

import (
	"context"
	"errors"
	"time"
)

const KeyEnter = "Enter"

// ErrNoElement is returned by drivers when a single-element lookup finds nothing
var ErrNoElement = errors.New("element not found")

// Driver launches browser processes
type Driver interface {
	Name() string
	Launch(ctx context.Context) (Browser, error)
}

// Browser is one live browser process
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// Disconnected is closed once the browser goes away, whether closed or crashed.
	Disconnected() <-chan struct{}
	Close() error
}

// Page is one tab. Query results are in document order.
type Page interface {
	Goto(ctx context.Context, url string) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	VisibleText(ctx context.Context) (string, error)
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}

type Element interface {
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Text is the element's rendered text content.
	Text(ctx context.Context) (string, error)
	// Value is the live value property of form controls.
	Value(ctx context.Context) (string, error)
	// Fill replaces the value and fires input and change events.
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	Focus(ctx context.Context) error
}
