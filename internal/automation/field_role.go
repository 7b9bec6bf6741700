package automation

import (
	"context"
	"strings"

	"pin-relay/internal/browser"
)

// FieldRole is the semantic purpose of a form control
type FieldRole int

const (
	RoleUsername FieldRole = iota
	RolePassword
	RolePIN
	RoleDeviceName
	RoleSubmit
)

func (r FieldRole) String() string {
	switch r {
	case RoleUsername:
		return "username"
	case RolePassword:
		return "password"
	case RolePIN:
		return "pin"
	case RoleDeviceName:
		return "device-name"
	case RoleSubmit:
		return "submit"
	default:
		return "unknown"
	}
}

type Action int

const (
	ActionFill Action = iota
	ActionClick
)

func (a Action) String() string {
	if a == ActionClick {
		return "click"
	}
	return "fill"
}

const (
	inputSelector  = "input"
	submitSelector = "button, input[type=submit]"
)

// roleProfile holds the per-role data driving the locator cascade.
// reservedID is set only where the target markup carries a fixed id.
type roleProfile struct {
	reservedID string
	scan       string
	keywords   []string
	// matchLabel also tests keywords against the visible label or value.
	matchLabel bool
	extra      func(ctx context.Context, el browser.Element) bool
	positional func(ctx context.Context, page browser.Page) []browser.Element
}

var profiles = map[FieldRole]roleProfile{
	RoleUsername: {
		reservedID: "usernameInput",
		scan:       inputSelector,
		keywords:   []string{"user", "usuario", "login"},
		positional: nthTextInput(0),
	},
	RolePassword: {
		reservedID: "passwordInput",
		scan:       inputSelector,
		keywords:   []string{"password", "senha"},
		extra:      attrEquals("type", "password"),
		positional: passwordInputs,
	},
	RolePIN: {
		scan:     inputSelector,
		keywords: []string{"pin"},
		extra: func(ctx context.Context, el browser.Element) bool {
			return attrEquals("type", "number")(ctx, el) || attrEquals("maxlength", "4")(ctx, el)
		},
		positional: nthTextInput(0),
	},
	RoleDeviceName: {
		scan:       inputSelector,
		keywords:   []string{"device", "nome", "name"},
		positional: nthTextInput(1),
	},
	RoleSubmit: {
		scan:       submitSelector,
		keywords:   []string{"send", "submit", "enviar", "login"},
		matchLabel: true,
		extra: func(ctx context.Context, el browser.Element) bool {
			return attrContains("class", "btn-primary")(ctx, el) || attrEquals("type", "submit")(ctx, el)
		},
		positional: firstButton,
	},
}

var matchAttributes = []string{"placeholder", "name", "id", "class"}

func attrEquals(name, want string) func(context.Context, browser.Element) bool {
	return func(ctx context.Context, el browser.Element) bool {
		v, ok, err := el.Attribute(ctx, name)
		return err == nil && ok && strings.EqualFold(strings.TrimSpace(v), want)
	}
}

func attrContains(name, want string) func(context.Context, browser.Element) bool {
	return func(ctx context.Context, el browser.Element) bool {
		v, ok, err := el.Attribute(ctx, name)
		return err == nil && ok && strings.Contains(strings.ToLower(v), want)
	}
}

func inputType(ctx context.Context, el browser.Element) string {
	v, _, err := el.Attribute(ctx, "type")
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v))
}

func isTextInput(ctx context.Context, el browser.Element) bool {
	switch inputType(ctx, el) {
	case "", "text", "number", "tel", "search":
		return true
	}
	return false
}

func textInputs(ctx context.Context, page browser.Page) []browser.Element {
	all, err := page.QueryAll(ctx, inputSelector)
	if err != nil {
		return nil
	}
	var out []browser.Element
	for _, el := range all {
		if isTextInput(ctx, el) {
			out = append(out, el)
		}
	}
	return out
}

func nthTextInput(n int) func(context.Context, browser.Page) []browser.Element {
	return func(ctx context.Context, page browser.Page) []browser.Element {
		inputs := textInputs(ctx, page)
		if len(inputs) <= n {
			return nil
		}
		return inputs[n:]
	}
}

func passwordInputs(ctx context.Context, page browser.Page) []browser.Element {
	els, err := page.QueryAll(ctx, "input[type=password]")
	if err != nil {
		return nil
	}
	return els
}

func firstButton(ctx context.Context, page browser.Page) []browser.Element {
	if buttons, err := page.QueryAll(ctx, "button"); err == nil && len(buttons) > 0 {
		return buttons
	}
	inputs, err := page.QueryAll(ctx, "input[type=submit]")
	if err != nil {
		return nil
	}
	return inputs
}
