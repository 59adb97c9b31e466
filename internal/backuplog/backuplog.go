// Package backuplog is a small leveled logger for the backuptool commands.
// It follows the shape of the classic go-ethereum log package: package-level
// Debug/Info/Warn/Error/Crit calls taking a message plus alternating
// key/value context, with coloring and terminal detection handled the same
// way that package wired go-stack, go-isatty, go-colorable and fatih/color
// together.
package backuplog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
)

// Lvl is a log severity level, ordered so that a smaller value is more
// severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	default:
		return "???"
	}
}

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
}

// Logger writes leveled records to an output stream, colorizing the level
// tag when the stream is attached to a terminal.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	minLvl   Lvl
}

var std = New(os.Stderr)

// New builds a Logger over w, auto-detecting terminal coloring for *os.File
// destinations by checking isatty and switching to a colorable writer.
func New(w io.Writer) *Logger {
	colorize := false
	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		colorize = true
		out = colorable.NewColorable(f)
	}
	return &Logger{out: out, colorize: colorize, minLvl: LvlInfo}
}

// SetLevel controls the minimum severity that reaches the output stream.
func (l *Logger) SetLevel(lvl Lvl) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLvl = lvl
}

func (l *Logger) log(lvl Lvl, msg string, ctx []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl > l.minLvl {
		return
	}
	tag := lvl.String()
	if l.colorize {
		tag = levelColor[lvl].Sprint(tag)
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05Z")

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", ts, tag, msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(&b, " %v=%v", ctx[i], ctx[i+1])
	}
	if lvl <= LvlWarn {
		// Attach the immediate caller frame for anything warning-or-worse,
		// to help triage which call site raised it.
		if frame := callerFrame(); frame != "" {
			fmt.Fprintf(&b, " caller=%s", frame)
		}
	}
	fmt.Fprintln(l.out, b.String())
}

func callerFrame() string {
	// Skip callerFrame, log, and the Debug/Info/... wrapper to land on the
	// application call site.
	c := stack.Caller(3)
	return fmt.Sprintf("%+v", c)
}

func (l *Logger) Debug(msg string, ctx ...interface{}) { l.log(LvlDebug, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.log(LvlInfo, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.log(LvlWarn, msg, ctx) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.log(LvlError, msg, ctx) }
func (l *Logger) Crit(msg string, ctx ...interface{})  { l.log(LvlCrit, msg, ctx) }

// Package-level helpers delegate to a default stderr logger, for callers
// that don't need their own Logger instance. They call log directly so the
// caller frame sits at the same stack depth as for the Logger methods.
func Debug(msg string, ctx ...interface{}) { std.log(LvlDebug, msg, ctx) }
func Info(msg string, ctx ...interface{})  { std.log(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { std.log(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { std.log(LvlError, msg, ctx) }
func Crit(msg string, ctx ...interface{})  { std.log(LvlCrit, msg, ctx) }

// SetLevel adjusts the default logger's minimum severity.
func SetLevel(lvl Lvl) { std.SetLevel(lvl) }
