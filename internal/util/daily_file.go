package util

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// DailyFileWriter appends to the file named by pathFor for the current local
// date and reopens when the date rolls over.
type DailyFileWriter struct {
	pathFor func(day time.Time) string
	now     func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewDailyFileWriter(pathFor func(day time.Time) string) *DailyFileWriter {
	return &DailyFileWriter{pathFor: pathFor, now: time.Now}
}

func (w *DailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if day := now.Format(dayLayout); w.file == nil || day != w.day {
		if err := w.openLocked(now); err != nil {
			return 0, err
		}
		w.day = day
	}
	return w.file.Write(p)
}

func (w *DailyFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *DailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *DailyFileWriter) openLocked(now time.Time) error {
	path := w.pathFor(now)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if w.file != nil {
		_ = w.file.Close()
	}
	w.file = f
	return nil
}
