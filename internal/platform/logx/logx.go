// internal/platform/logx/logx.go
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// EnvLevel es la variable de entorno que fija el nivel por defecto.
const EnvLevel = "BAYKUS_LOG_LEVEL"

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "off"
	}
}

type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Err(err error, kv ...any)
	With(kv ...any) Logger
	SetLevel(lvl Level)
}

// sink es compartido entre un logger y todos sus hijos creados con With.
type sink struct {
	mu  sync.Mutex
	lvl atomic.Int32
	lg  *log.Logger
	now func() time.Time
}

type simpleLogger struct {
	out   *sink
	scope []string // pares key=value fijos
}

// New crea un logger a stderr con el nivel de BAYKUS_LOG_LEVEL.
func New() Logger {
	return NewWriter(os.Stderr, ParseLevel(os.Getenv(EnvLevel)))
}

// NewWithLevel creates a stderr logger with a specific level.
func NewWithLevel(lvl Level) Logger {
	return NewWriter(os.Stderr, lvl)
}

// NewWriter creates a logger writing to w.
func NewWriter(w io.Writer, lvl Level) Logger {
	s := &sink{lg: log.New(w, "", 0), now: time.Now}
	s.lvl.Store(int32(lvl))
	return &simpleLogger{out: s}
}

// NewSilent only outputs errors (used while the progress UI owns the terminal).
func NewSilent() Logger {
	return NewWithLevel(LevelError)
}

// Discard drops everything. Mostly for tests.
func Discard() Logger {
	return NewWriter(io.Discard, LevelOff)
}

func (s *simpleLogger) With(kv ...any) Logger {
	return &simpleLogger{
		out:   s.out,
		scope: append(append([]string{}, s.scope...), kvPairs(kv...)...),
	}
}

// SetLevel afecta al logger raíz y a todos los derivados.
func (s *simpleLogger) SetLevel(lvl Level) {
	s.out.lvl.Store(int32(lvl))
}

func (s *simpleLogger) Debug(msg string, kv ...any) { s.log(LevelDebug, "DBG", msg, kv...) }
func (s *simpleLogger) Info(msg string, kv ...any)  { s.log(LevelInfo, "INF", msg, kv...) }
func (s *simpleLogger) Warn(msg string, kv ...any)  { s.log(LevelWarn, "WRN", msg, kv...) }
func (s *simpleLogger) Err(err error, kv ...any) {
	if err == nil {
		return
	}
	kv = append([]any{"error", err.Error()}, kv...)
	s.log(LevelError, "ERR", "", kv...)
}

func (s *simpleLogger) log(l Level, tag, msg string, kv ...any) {
	if int32(l) < s.out.lvl.Load() {
		return
	}
	fields := append([]string{}, s.scope...)
	fields = append(fields, kvPairs(kv...)...)

	var b strings.Builder
	b.WriteString(s.out.now().Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(tag)
	if strings.TrimSpace(msg) != "" {
		b.WriteByte(' ')
		b.WriteString(msg)
	}
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f)
	}

	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	s.out.lg.Println(b.String())
}

func kvPairs(kv ...any) []string {
	out := make([]string, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		var v any = "(missing)"
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		out = append(out, fmt.Sprintf("%v=%v", kv[i], v))
	}
	return out
}

// ParseLevel acepta debug|info|warn|error|off y sus abreviaturas. Vacío o desconocido es info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "dbg":
		return LevelDebug
	case "warn", "warning", "wrn":
		return LevelWarn
	case "err", "error":
		return LevelError
	case "off", "none", "silent":
		return LevelOff
	default:
		return LevelInfo
	}
}
