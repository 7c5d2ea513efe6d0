// Package logging builds the application logger writing to console and a daily rotated file.
package logging

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
)

// Options defines logger settings
type Options struct {
	Debug      bool
	NoColor    bool
	File       string    // log file path, no file output if empty
	MaxBackups int       // rotated files to keep
	Secrets    []string  // values masked in every output
	Console    io.Writer // defaults to os.Stdout
}

// Logger sends every record to the console and to the log file
type Logger struct {
	console lgr.L
	file    lgr.L
	writer  *DailyWriter
}

// New makes a logger for the given options
func New(opts Options) (*Logger, error) {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}

	common := []lgr.Option{lgr.LevelBraces}
	if opts.Debug {
		common = append(common, lgr.Debug, lgr.Msec)
	}
	var secrets []string
	for _, s := range opts.Secrets {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		common = append(common, lgr.Secret(secrets...))
	}

	consoleOpts := append([]lgr.Option{lgr.Out(opts.Console), lgr.Err(io.Discard)}, common...)
	if opts.Debug {
		// Logf adds one frame between the call site and lgr
		consoleOpts = append(consoleOpts, lgr.CallerFunc, lgr.CallerDepth(1))
	}
	if !opts.NoColor {
		consoleOpts = append(consoleOpts, lgr.Map(colorizer()))
	}

	res := &Logger{console: lgr.New(consoleOpts...), file: lgr.NoOp}
	if opts.File != "" {
		w, err := NewDailyWriter(opts.File, opts.MaxBackups)
		if err != nil {
			return nil, err
		}
		res.writer = w
		res.file = lgr.New(append([]lgr.Option{lgr.Out(w), lgr.Err(io.Discard)}, common...)...)
	}
	return res, nil
}

// Logf implements lgr.L
func (l *Logger) Logf(format string, args ...any) {
	l.console.Logf(format, args...)
	l.file.Logf(format, args...)
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

func colorizer() lgr.Mapper {
	return lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
}
