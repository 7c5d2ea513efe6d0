package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const dayLayout = "2006-01-02"

// DailyWriter is a log file writer rotating the file on the first write of every new local day.
// Rotated files are kept as timestamped backups, old ones are removed beyond maxBackups.
type DailyWriter struct {
	lj  *lumberjack.Logger
	now func() time.Time

	mu  sync.Mutex
	day string // day of the current file content
}

// NewDailyWriter creates the log directory if missing and returns a writer for the given file
func NewDailyWriter(path string, maxBackups int) (*DailyWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &DailyWriter{
		lj: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes, safety net for a single day
			MaxBackups: maxBackups,
			LocalTime:  true,
		},
		now: time.Now,
	}, nil
}

// Write appends p to the current file, rotating it first if the day changed
func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := w.now().Format(dayLayout)
	if w.day == "" {
		w.day = today
		// file left from a previous run on another day
		if fi, err := os.Stat(w.lj.Filename); err == nil && fi.Size() > 0 {
			w.day = fi.ModTime().Format(dayLayout)
		}
	}

	if w.day != today {
		if err := w.lj.Rotate(); err != nil {
			return 0, fmt.Errorf("rotate log file: %w", err)
		}
		w.day = today
	}

	return w.lj.Write(p)
}

// Close closes the current log file
func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lj.Close()
}
