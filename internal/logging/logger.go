// Package logging provides the structured Logger every internal component
// logs through, plus the separate BoltLogger used for raw wire tracing.
package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

// Logger is used throughout the driver. name is the logging component
// ("pool", "router", "bolt") and id identifies the specific instance
// ("bolt-123@host:7687").
type Logger interface {
	Error(name, id string, err error)
	Errorf(name, id, msg string, args ...any)
	Warnf(name, id, msg string, args ...any)
	Infof(name, id, msg string, args ...any)
	Debugf(name, id, msg string, args ...any)
}

// Void discards everything, the default when the caller configures no
// logger.
type Void struct{}

func (Void) Error(string, string, error)          {}
func (Void) Errorf(string, string, string, ...any) {}
func (Void) Warnf(string, string, string, ...any)  {}
func (Void) Infof(string, string, string, ...any)  {}
func (Void) Debugf(string, string, string, ...any) {}

const timeFormat = "2006-01-02 15:04:05.000"

// Console writes each enabled level to stdout/stderr, gated per level so a
// caller can run with e.g. errors and warnings only.
type Console struct {
	Errors bool
	Warns  bool
	Infos  bool
	Debugs bool
}

func (c *Console) Error(name, id string, err error) {
	if !c.Errors {
		return
	}
	fmt.Fprintf(os.Stderr, "%s  ERROR  %s: %s\n", time.Now().Format(timeFormat), logId(name, id), err)
}

func (c *Console) Errorf(name, id, msg string, args ...any) {
	if !c.Errors {
		return
	}
	fmt.Fprintf(os.Stderr, "%s  ERROR  %s: %s\n", time.Now().Format(timeFormat), logId(name, id), fmt.Sprintf(msg, args...))
}

func (c *Console) Warnf(name, id, msg string, args ...any) {
	if !c.Warns {
		return
	}
	fmt.Fprintf(os.Stdout, "%s   WARN  %s: %s\n", time.Now().Format(timeFormat), logId(name, id), fmt.Sprintf(msg, args...))
}

func (c *Console) Infof(name, id, msg string, args ...any) {
	if !c.Infos {
		return
	}
	fmt.Fprintf(os.Stdout, "%s   INFO  %s: %s\n", time.Now().Format(timeFormat), logId(name, id), fmt.Sprintf(msg, args...))
}

func (c *Console) Debugf(name, id, msg string, args ...any) {
	if !c.Debugs {
		return
	}
	fmt.Fprintf(os.Stdout, "%s  DEBUG  %s: %s\n", time.Now().Format(timeFormat), logId(name, id), fmt.Sprintf(msg, args...))
}

func logId(name, id string) string {
	if id == "" {
		return name
	}
	return fmt.Sprintf("%s %s", name, id)
}

// VoidBoltLogger discards wire-level traces.
type VoidBoltLogger struct{}

func (VoidBoltLogger) LogClientMessage(string, string, ...any) {}
func (VoidBoltLogger) LogServerMessage(string, string, ...any) {}

// ConsoleBoltLogger prints every client/server Bolt message as it's
// encoded/decoded, useful when diagnosing a protocol mismatch.
type ConsoleBoltLogger struct{}

func (ConsoleBoltLogger) LogClientMessage(id, msg string, args ...any) {
	logBoltMessage("C", id, msg, args)
}

func (ConsoleBoltLogger) LogServerMessage(id, msg string, args ...any) {
	logBoltMessage("S", id, msg, args)
}

func logBoltMessage(src, id, msg string, args []any) {
	fmt.Fprintf(os.Stdout, "%s   BOLT  %s%s: %s\n", time.Now().Format(timeFormat), formatId(id), src, fmt.Sprintf(msg, args...))
}

func formatId(id string) string {
	if id == "" {
		return ""
	}
	return fmt.Sprintf("[%s] ", id)
}

var _ dbtype.BoltLogger = VoidBoltLogger{}
var _ dbtype.BoltLogger = ConsoleBoltLogger{}
