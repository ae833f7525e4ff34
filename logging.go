package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel labels plain log lines.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelDebug LogLevel = "DEBUG"
)

// Logger is the printf-style logging surface shared by the crawler components.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// StdoutLogger writes plain "timestamp [LEVEL] message" lines, to stdout
// unless Out is set. Debug lines are dropped unless Verbose is set.
type StdoutLogger struct {
	Out     io.Writer
	Verbose bool
}

// NewPlainLogger builds a StdoutLogger writing to w.
func NewPlainLogger(w io.Writer, verbose bool) *StdoutLogger {
	return &StdoutLogger{Out: w, Verbose: verbose}
}

func (l *StdoutLogger) log(level LogLevel, msg string, args ...interface{}) {
	if level == LevelDebug && !l.Verbose {
		return
	}
	out := l.Out
	if out == nil {
		out = os.Stdout
	}
	timestamp := time.Now().UTC().Format(time.RFC3339)
	fmt.Fprintf(out, "%s [%s] %s\n", timestamp, level, fmt.Sprintf(msg, args...))
}

func (l *StdoutLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

func (l *StdoutLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

func (l *StdoutLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

func (l *StdoutLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// SlogLogger routes Logger calls into a structured slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger builds a text slog logger writing to w. Verbose enables debug output.
func NewSlogLogger(w io.Writer, verbose bool) *SlogLogger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &SlogLogger{logger: slog.New(handler)}
}

func (l *SlogLogger) log(level slog.Level, msg string, args ...interface{}) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, fmt.Sprintf(msg, args...))
}

func (l *SlogLogger) Info(msg string, args ...interface{}) {
	l.log(slog.LevelInfo, msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...interface{}) {
	l.log(slog.LevelWarn, msg, args...)
}

func (l *SlogLogger) Error(msg string, args ...interface{}) {
	l.log(slog.LevelError, msg, args...)
}

func (l *SlogLogger) Debug(msg string, args ...interface{}) {
	l.log(slog.LevelDebug, msg, args...)
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Debug(string, ...interface{}) {}
