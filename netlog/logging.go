// Package netlog is the logging facade used throughout netshell. It wraps
// github.com/op/go-logging behind a small interface so packages depend on
// a contract rather than the concrete backend.
package netlog

import (
	"os"

	"github.com/op/go-logging"
)

// Logger is the logging contract every netshell package depends on.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warning(args ...interface{})
	Warningf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
}

// Log is the package-level default logger, matching the teacher's
// package-var convention (logger.Log in the source repo).
var Log Logger

func init() {
	format := logging.MustStringFormatter(
		`%{color}%{time:15:04:05.000} %{shortfile} %{shortfunc} ▶ %{level:.4s} %{id:03x}%{color:reset} %{message}`,
	)

	backend := logging.NewLogBackend(os.Stderr, "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(backendFormatter)
	leveled.SetLevel(levelFromEnv(), "")
	logging.SetBackend(leveled)

	Log = logging.MustGetLogger("netshell")
}

// levelFromEnv reads NETSHELL_LOG, the module's analogue of a
// RUST_LOG-style variable, defaulting to INFO when unset or invalid.
func levelFromEnv() logging.Level {
	v := os.Getenv("NETSHELL_LOG")
	if v == "" {
		return logging.INFO
	}
	lvl, err := logging.LogLevel(v)
	if err != nil {
		return logging.INFO
	}
	return lvl
}

// MaskHidden returns replacement if hidden is true, otherwise value. Every
// call site that might log interactive-engine input runs it through this
// so hidden Send events never reach a log line, matching the contract that
// hidden inputs must not appear in command strings or logs.
func MaskHidden(value string, hidden bool) string {
	if hidden {
		return "<hidden>"
	}
	return value
}
