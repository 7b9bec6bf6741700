package automation

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"pin-relay/internal/browser"
	"pin-relay/internal/config"
)

type GateResult int

const (
	GateNotLogin GateResult = iota
	GateSuccess
	GateFailure
)

func (g GateResult) String() string {
	switch g {
	case GateSuccess:
		return "success"
	case GateFailure:
		return "failure"
	default:
		return "not-login"
	}
}

type GateTiming struct {
	FieldDelay  time.Duration
	Settle      time.Duration
	IdleTimeout time.Duration
	RemedyPause time.Duration
}

var DefaultGateTiming = GateTiming{
	FieldDelay:  time.Second,
	Settle:      5 * time.Second,
	IdleTimeout: 10 * time.Second,
	RemedyPause: 3 * time.Second,
}

// LoginGate clears the credential interstitial shown before the PIN form
type LoginGate struct {
	locator *Locator
	login   config.LoginConfig
	timing  GateTiming
	logger  *zap.Logger
}

func NewLoginGate(locator *Locator, login config.LoginConfig, timing GateTiming, logger *zap.Logger) *LoginGate {
	return &LoginGate{locator: locator, login: login, timing: timing, logger: logger}
}

func (g *LoginGate) Handle(ctx context.Context, page browser.Page) GateResult {
	text, err := page.VisibleText(ctx)
	if err != nil {
		g.logger.Warn("Could not read page text, assuming no login screen", zap.Error(err))
		return GateNotLogin
	}
	if !strings.Contains(text, g.login.Marker) {
		g.logger.Debug("No login screen detected")
		return GateNotLogin
	}

	g.logger.Info("Login screen detected, signing in")

	if !g.locator.LocateAndAct(ctx, page, RoleUsername, ActionFill, g.login.Username) {
		g.logger.Warn("Username could not be entered")
	}
	_ = sleep(ctx, g.timing.FieldDelay)

	if !g.locator.LocateAndAct(ctx, page, RolePassword, ActionFill, g.login.Password) {
		g.logger.Warn("Password could not be entered")
	}
	_ = sleep(ctx, g.timing.FieldDelay)

	if !g.locator.LocateAndAct(ctx, page, RoleSubmit, ActionClick, "") {
		g.logger.Warn("Login button could not be pressed")
	}

	_ = sleep(ctx, g.timing.Settle)
	if err := page.WaitForNetworkIdle(ctx, g.timing.IdleTimeout); err != nil {
		g.logger.Warn("Network did not settle after login", zap.Error(err))
	}

	if !g.passwordFieldPresent(ctx, page) {
		g.logger.Info("Login completed")
		return GateSuccess
	}

	g.logger.Warn("Password field still present after login, pressing Enter")
	if err := page.PressKey(ctx, browser.KeyEnter); err != nil {
		g.logger.Warn("Enter key press failed", zap.Error(err))
	}
	_ = sleep(ctx, g.timing.RemedyPause)

	g.logger.Error("Login did not complete")
	return GateFailure
}

func (g *LoginGate) passwordFieldPresent(ctx context.Context, page browser.Page) bool {
	els, err := page.QueryAll(ctx, "input[type=password]")
	if err != nil {
		g.logger.Warn("Could not check for password field", zap.Error(err))
		return true
	}
	return len(els) > 0
}
