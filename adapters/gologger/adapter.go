package gologger

import (
	"io"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// NewConsoleLogger returns a text logger writing to out at level. The result
// is both a Logger and a LoggerProvider. Fatal logs without exiting.
func NewConsoleLogger(level string, out io.Writer) *glog.BaseLogger {
	level = strings.TrimSpace(level)
	if level == "" {
		level = glog.DefaultLogLevel
	}
	return glog.NewLogger(
		glog.WithLevel(level),
		glog.WithWriter(out),
		glog.WithLoggerTypeConsole(),
		glog.WithFatalBehavior(glog.FatalBehaviorLogOnly),
	)
}
