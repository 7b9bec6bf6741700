package poller

import (
	"context"

	"pin-relay/internal/browser"
	"pin-relay/internal/browser/browsertest"
	"pin-relay/internal/config"
)

type sessionsFunc func(ctx context.Context) (*browsertest.Browser, error)

func (f sessionsFunc) Acquire(ctx context.Context) (browser.Browser, error) {
	b, err := f(ctx)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func loginConfig() config.LoginConfig {
	return config.LoginConfig{Marker: "Welcome to Apollo", Username: "admin", Password: "admin"}
}
