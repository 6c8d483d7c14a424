package mlog

import (
	"fmt"
	"strings"
)

// Logger is the common interface for log implementation.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Infoln(args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)
	Errorln(args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnln(args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugln(args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Fatalln(args ...any)

	WithFields(fields ...any) Logger

	Sync() error
}

// LogLevel represents the level of log system (fatal, error, warn, info and debug).
type LogLevel int8

// These are the different log levels. You can set the logging level to log.
const (
	// FatalLevel level. Logs and then exits. It will exit even if the
	// logging level is set to Panic.
	FatalLevel LogLevel = iota
	// ErrorLevel level. Logs. Used for errors that should definitely be noted.
	ErrorLevel
	// WarnLevel level. Non-critical entries that deserve eyes.
	WarnLevel
	// InfoLevel level. General operational entries about what's going on inside the
	// application.
	InfoLevel
	// DebugLevel level. Usually only enabled when debugging. Very verbose logging.
	DebugLevel
)

// ParseLevel takes a string level and returns a LogLevel constant.
func ParseLevel(lvl string) (LogLevel, error) {
	switch strings.ToLower(lvl) {
	case "fatal":
		return FatalLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}

	var l LogLevel

	return l, fmt.Errorf("not a valid LogLevel: %q", lvl)
}
