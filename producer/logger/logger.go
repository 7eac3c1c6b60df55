package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes leveled, namespaced entries with structured context.
type Logger interface {
	Ctx() Ctx
	WithCtx(Ctx) Logger
	WithNamespace(namespace string) Logger
	WithNamespaceAppended(namespace string) Logger
	WithConfig(config Config) Logger
	WithWriter(w io.Writer, format Format) Logger

	Namespace() string
	Level() Level
	IsLevelEnabled(level Level) bool

	Trace(message string, ctx Ctx)
	Debug(message string, ctx Ctx)
	Info(message string, ctx Ctx)
	Warn(message string, ctx Ctx)
	Error(message string, err error, ctx Ctx)
}

// Format selects how entries are rendered.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// FormatFromString returns FormatJSON for "json" and FormatConsole for
// anything else.
func FormatFromString(str string) Format {
	if strings.EqualFold(str, string(FormatJSON)) {
		return FormatJSON
	}

	return FormatConsole
}

func init() {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

type logger struct {
	config    Config
	ctx       Ctx
	namespace string
	zl        zerolog.Logger
}

var _ Logger = &logger{}

// New returns a disabled console Logger writing to stderr. Call WithConfig
// to enable namespaces.
func New() Logger {
	return &logger{
		config: LevelDisabled,
		zl:     newZerolog(os.Stderr, FormatConsole),
	}
}

// NewFromEnv reads the level configuration from the environment variable
// key and the output format from key + "_FORMAT".
func NewFromEnv(key string) Logger {
	format := FormatFromString(os.Getenv(key + "_FORMAT"))

	return New().
		WithWriter(os.Stderr, format).
		WithConfig(NewConfigMapFromString(os.Getenv(key)))
}

func newZerolog(w io.Writer, format Format) zerolog.Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	// Filtering happens in IsLevelEnabled, so the zerolog level stays at the
	// most verbose setting.
	return zerolog.New(w).Level(zerolog.TraceLevel).With().Timestamp().Logger()
}

func (l *logger) clone() *logger {
	c := *l

	return &c
}

func (l *logger) Ctx() Ctx {
	return l.ctx
}

func (l *logger) WithCtx(ctx Ctx) Logger {
	c := l.clone()
	c.ctx = l.ctx.WithCtx(ctx)

	return c
}

func (l *logger) WithNamespace(namespace string) Logger {
	c := l.clone()
	c.namespace = namespace

	return c
}

func (l *logger) WithNamespaceAppended(namespace string) Logger {
	if l.namespace != "" {
		namespace = fmt.Sprintf("%s:%s", l.namespace, namespace)
	}

	return l.WithNamespace(namespace)
}

func (l *logger) WithConfig(config Config) Logger {
	if config == nil {
		return l
	}

	c := l.clone()
	c.config = config

	return c
}

func (l *logger) WithWriter(w io.Writer, format Format) Logger {
	c := l.clone()
	c.zl = newZerolog(w, format)

	return c
}

func (l *logger) Namespace() string {
	return l.namespace
}

func (l *logger) Level() Level {
	return l.config.LevelForNamespace(l.namespace)
}

func (l *logger) IsLevelEnabled(level Level) bool {
	configured := l.Level()

	return configured > LevelDisabled && level > LevelDisabled && level <= configured
}

func (l *logger) Trace(message string, ctx Ctx) {
	l.log(LevelTrace, message, nil, ctx)
}

func (l *logger) Debug(message string, ctx Ctx) {
	l.log(LevelDebug, message, nil, ctx)
}

func (l *logger) Info(message string, ctx Ctx) {
	l.log(LevelInfo, message, nil, ctx)
}

func (l *logger) Warn(message string, ctx Ctx) {
	l.log(LevelWarn, message, nil, ctx)
}

func (l *logger) Error(message string, err error, ctx Ctx) {
	l.log(LevelError, message, err, ctx)
}

func (l *logger) log(level Level, message string, err error, ctx Ctx) {
	if !l.IsLevelEnabled(level) {
		return
	}

	event := l.zl.WithLevel(level.zerolog())
	if event == nil {
		return
	}

	if l.namespace != "" {
		event = event.Str("ns", l.namespace)
	}

	merged := l.ctx.WithCtx(ctx)

	for _, key := range merged.sortedKeys() {
		event = event.Interface(key, merged[key])
	}

	if err != nil {
		event = event.Str("error", fmt.Sprintf("%+v", err))
	}

	event.Msg(message)
}
