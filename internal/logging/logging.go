// Package logging wraps a rotated file sink for the daemon's
// process-wide logger (SPEC_FULL.md's AMBIENT STACK logging section).
package logging

import (
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotated log file.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

func (o Options) withDefaults() Options {
	if o.MaxSizeMB == 0 {
		o.MaxSizeMB = 10
	}
	if o.MaxAgeDays == 0 {
		o.MaxAgeDays = 28
	}
	if o.MaxBackups == 0 {
		o.MaxBackups = 5
	}
	return o
}

// New builds a *log.Logger writing to a lumberjack-rotated file at
// opts.Path, mirroring the teacher's terse, lower-case, no-punctuation
// message texture ("sync: push failed, queuing retry").
func New(opts Options) *log.Logger {
	opts = opts.withDefaults()
	sink := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
	}
	return log.New(sink, "", log.LstdFlags|log.Lmicroseconds)
}

// NewStderr returns a logger writing to stderr, for callers that have
// no rotated file path.
func NewStderr() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}

// Adapter satisfies syncmgr.Logger and any other package expecting
// Warnf/Infof around a *log.Logger.
type Adapter struct {
	L *log.Logger
}

func (a Adapter) Warnf(format string, args ...any) {
	a.L.Printf("warn: "+format, args...)
}

func (a Adapter) Infof(format string, args ...any) {
	a.L.Printf("info: "+format, args...)
}
