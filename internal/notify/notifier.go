// Package notify raises desktop notifications for the automation client.
package notify

import (
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap/zapcore"
)

type Notifier interface {
	Notify(title, message string) error
}

// Desktop shows native notifications through beeep
type Desktop struct{}

func NewDesktop(appName string) *Desktop {
	beeep.AppName = appName
	return &Desktop{}
}

func (d *Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

type Noop struct{}

func (Noop) Notify(string, string) error { return nil }

// ErrorHook returns a zap entry hook that notifies on ERROR and above.
// Bursts are collapsed to one notification per minInterval.
func ErrorHook(n Notifier, minInterval time.Duration) func(zapcore.Entry) {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func(e zapcore.Entry) {
		if e.Level < zapcore.ErrorLevel {
			return
		}
		mu.Lock()
		if !last.IsZero() && e.Time.Sub(last) < minInterval {
			mu.Unlock()
			return
		}
		last = e.Time
		mu.Unlock()

		// Notification failures must not feed back into the logger.
		_ = n.Notify("PIN relay error", e.Message)
	}
}
