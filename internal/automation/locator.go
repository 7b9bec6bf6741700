package automation

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"pin-relay/internal/browser"
)

var errValueMismatch = errors.New("value did not stick")

// Locator finds the control for a FieldRole through a fixed cascade:
// reserved id, attribute keywords, position, then raw keyboard input.
// Positional picks are a best-effort guess and may hit the wrong control.
type Locator struct {
	logger *zap.Logger
}

func NewLocator(logger *zap.Logger) *Locator {
	return &Locator{logger: logger}
}

type strategy struct {
	name string
	find func(ctx context.Context, page browser.Page, p roleProfile) ([]browser.Element, error)
}

var strategies = []strategy{
	{name: "reserved-id", find: findByReservedID},
	{name: "attribute-pattern", find: findByAttributes},
	{name: "positional", find: findByPosition},
}

// LocateAndAct fills or clicks the control for role and reports whether the
// action was confirmed. It never returns an error; failed strategies fall
// through to the next one.
func (l *Locator) LocateAndAct(ctx context.Context, page browser.Page, role FieldRole, action Action, value string) bool {
	p, ok := profiles[role]
	if !ok {
		l.logger.Error("Unknown field role", zap.Int("role", int(role)))
		return false
	}
	if action == ActionFill && value == "" {
		l.logger.Warn("Refusing to fill with an empty value", zap.Stringer("role", role))
		return false
	}

	log := l.logger.With(zap.Stringer("role", role), zap.Stringer("action", action))

	for _, s := range strategies {
		if ctx.Err() != nil {
			return false
		}
		els, err := s.find(ctx, page, p)
		if err != nil {
			log.Debug("Strategy lookup failed", zap.String("strategy", s.name), zap.Error(err))
			continue
		}
		if len(els) == 0 {
			continue
		}
		if err := act(ctx, els[0], action, value); err != nil {
			log.Warn("Strategy matched but action failed", zap.String("strategy", s.name), zap.Error(err))
			continue
		}
		log.Info("Field handled", zap.String("strategy", s.name))
		return true
	}

	return l.keyboardFallback(ctx, page, p, action, value, log)
}

func act(ctx context.Context, el browser.Element, action Action, value string) error {
	if action == ActionClick {
		return el.Click(ctx)
	}
	if err := el.Fill(ctx, value); err != nil {
		return err
	}
	got, err := el.Value(ctx)
	if err != nil {
		return err
	}
	if got != value {
		return errValueMismatch
	}
	return nil
}

func findByReservedID(ctx context.Context, page browser.Page, p roleProfile) ([]browser.Element, error) {
	if p.reservedID == "" {
		return nil, nil
	}
	return page.QueryAll(ctx, `[id="`+p.reservedID+`"]`)
}

func findByAttributes(ctx context.Context, page browser.Page, p roleProfile) ([]browser.Element, error) {
	els, err := page.QueryAll(ctx, p.scan)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if inputType(ctx, el) == "hidden" {
			continue
		}
		if matchesKeywords(ctx, el, p) || (p.extra != nil && p.extra(ctx, el)) {
			return []browser.Element{el}, nil
		}
	}
	return nil, nil
}

func matchesKeywords(ctx context.Context, el browser.Element, p roleProfile) bool {
	var haystack []string
	for _, name := range matchAttributes {
		if v, ok, err := el.Attribute(ctx, name); err == nil && ok {
			haystack = append(haystack, v)
		}
	}
	if p.matchLabel {
		if text, err := el.Text(ctx); err == nil {
			haystack = append(haystack, text)
		}
		if v, ok, err := el.Attribute(ctx, "value"); err == nil && ok {
			haystack = append(haystack, v)
		}
	}

	for _, h := range haystack {
		h = strings.ToLower(h)
		for _, kw := range p.keywords {
			if strings.Contains(h, kw) {
				return true
			}
		}
	}
	return false
}

func findByPosition(ctx context.Context, page browser.Page, p roleProfile) ([]browser.Element, error) {
	els := p.positional(ctx, page)
	if len(els) == 0 {
		return nil, nil
	}
	return els[:1], nil
}

func (l *Locator) keyboardFallback(ctx context.Context, page browser.Page, p roleProfile, action Action, value string, log *zap.Logger) bool {
	if action == ActionClick {
		if err := page.PressKey(ctx, browser.KeyEnter); err != nil {
			log.Warn("Keyboard fallback failed", zap.Error(err))
			return false
		}
		log.Info("Field handled", zap.String("strategy", "keyboard"))
		return true
	}

	candidates := p.positional(ctx, page)
	if all, err := page.QueryAll(ctx, inputSelector); err == nil {
		candidates = append(candidates, all...)
	}

	var focused browser.Element
	for _, el := range candidates {
		if err := el.Focus(ctx); err == nil {
			focused = el
			break
		}
	}

	if err := page.TypeText(ctx, value); err != nil {
		log.Warn("Keyboard fallback failed", zap.Error(err))
		return false
	}
	if focused == nil {
		log.Warn("Keyboard fallback typed with nothing focused")
		return false
	}

	got, err := focused.Value(ctx)
	if err != nil || got != value {
		log.Warn("Keyboard fallback could not be confirmed", zap.Error(err))
		return false
	}
	log.Info("Field handled", zap.String("strategy", "keyboard"))
	return true
}
