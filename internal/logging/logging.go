package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Level represents log severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = [...]string{Debug: "debug", Info: "info", Warn: "warn", Error: "error"}

func (v Level) String() string {
	if v < Debug || v > Error {
		return "info"
	}
	return levelNames[v]
}

// ParseLevel maps a config or flag value to a Level. Unknown values mean Info.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == s {
			return Level(i)
		}
	}
	return Info
}

// sink is shared by a logger and everything derived from it with With.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

type Logger struct {
	min       Level
	json      bool
	component string
	sink      *sink
}

// New logs to stderr so stdout stays free for digests and reports.
func New(level string, jsonOut bool) *Logger {
	return NewWriter(os.Stderr, level, jsonOut)
}

func NewWriter(w io.Writer, level string, jsonOut bool) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{min: ParseLevel(level), json: jsonOut, sink: &sink{out: w}}
}

// Discard returns a logger that drops everything.
func Discard() *Logger { return NewWriter(io.Discard, "error", false) }

// With returns a logger that tags every line with component. Lines from
// both loggers are never interleaved mid-line.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	c := *l
	if l.component != "" {
		component = l.component + "." + component
	}
	c.component = component
	return &c
}

func (l *Logger) Enabled(v Level) bool { return l != nil && v >= l.min }

func (l *Logger) Debugf(format string, a ...any) { l.log(Debug, format, a...) }
func (l *Logger) Infof(format string, a ...any)  { l.log(Info, format, a...) }
func (l *Logger) Warnf(format string, a ...any)  { l.log(Warn, format, a...) }
func (l *Logger) Errorf(format string, a ...any) { l.log(Error, format, a...) }

func (l *Logger) log(level Level, format string, a ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, a...)
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.json {
		payload := map[string]any{
			"ts":    time.Now().Format(time.RFC3339Nano),
			"level": level.String(),
			"msg":   msg,
		}
		if l.component != "" {
			payload["component"] = l.component
		}
		_ = json.NewEncoder(l.sink.out).Encode(payload)
		return
	}
	if l.component != "" {
		msg = l.component + ": " + msg
	}
	fmt.Fprintf(l.sink.out, "%s\t%s\n", strings.ToUpper(level.String()), msg)
}
