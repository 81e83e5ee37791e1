package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/crytic/contest/logging/colors"
	"github.com/rs/zerolog"
)

// GlobalLogger describes a Logger that is disabled by default and is configured once the CLI reads its project
// config. Each package should derive its own sub-logger from it so that output is grep-able by module.
var GlobalLogger = NewLogger(zerolog.Disabled)

// Logger describes a custom logging object that can log events to any number of writers, each of which may receive
// structured (JSON) output, unstructured output, or unstructured colorized output.
type Logger struct {
	// level describes the log level
	level zerolog.Level

	// context describes the key-value pairs attached to every event emitted by this logger.
	context map[string]string

	// structuredLogger, unstructuredLogger and unstructuredColorLogger emit to their respective writer sets.
	structuredLogger        zerolog.Logger
	unstructuredLogger      zerolog.Logger
	unstructuredColorLogger zerolog.Logger

	// structuredWriters describes the writers receiving JSON output.
	structuredWriters []io.Writer

	// unstructuredWriters describes the writers receiving unstructured output with no ANSI coloring.
	unstructuredWriters []io.Writer

	// unstructuredColorWriters describes the writers receiving unstructured output with ANSI coloring.
	unstructuredColorWriters []io.Writer
}

// LogFormat describes what format to log in
type LogFormat string

const (
	// STRUCTURED describes that logging should be done in structured JSON format
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED describes that logging should be done in an unstructured format
	UNSTRUCTURED LogFormat = "unstructured"
)

// StructuredLogInfo describes a key-value mapping that can be used to log structured data
type StructuredLogInfo map[string]any

// NewLogger will create a new Logger object with a specific log level. The returned logger has no writers; use
// AddWriter to attach outputs.
func NewLogger(level zerolog.Level) *Logger {
	l := &Logger{
		level:                    level,
		context:                  make(map[string]string),
		structuredWriters:        make([]io.Writer, 0),
		unstructuredWriters:      make([]io.Writer, 0),
		unstructuredColorWriters: make([]io.Writer, 0),
	}
	l.rebuild()
	return l
}

// NewSubLogger will create a new Logger with unique context in the form of a key-value pair. The sub-logger shares
// the writers of its parent at the time of creation.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	sub := &Logger{
		level:                    l.level,
		context:                  make(map[string]string, len(l.context)+1),
		structuredWriters:        append([]io.Writer(nil), l.structuredWriters...),
		unstructuredWriters:      append([]io.Writer(nil), l.unstructuredWriters...),
		unstructuredColorWriters: append([]io.Writer(nil), l.unstructuredColorWriters...),
	}
	for k, v := range l.context {
		sub.context[k] = v
	}
	sub.context[key] = value
	sub.rebuild()
	return sub
}

// AddWriter will add a writer to the list of channels where log output will be sent. Adding a writer that is already
// registered for the given format is a no-op.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat, colored bool) {
	writers := l.writerSet(format, colored)
	for _, w := range *writers {
		if w == writer {
			return
		}
	}
	*writers = append(*writers, writer)
	l.rebuild()
}

// RemoveWriter will remove a writer from the list of writers that the logger manages. If the writer does not exist,
// this function is a no-op.
func (l *Logger) RemoveWriter(writer io.Writer, format LogFormat, colored bool) {
	writers := l.writerSet(format, colored)
	for i, w := range *writers {
		if w == writer {
			*writers = append((*writers)[:i], (*writers)[i+1:]...)
			l.rebuild()
			return
		}
	}
}

// Level will get the log level of the Logger
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel will update the log level of the Logger
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.rebuild()
}

// Trace is a wrapper function that will log a trace event
func (l *Logger) Trace(args ...any) {
	l.emit(zerolog.TraceLevel, args...)
}

// Debug is a wrapper function that will log a debug event
func (l *Logger) Debug(args ...any) {
	l.emit(zerolog.DebugLevel, args...)
}

// Info is a wrapper function that will log an info event
func (l *Logger) Info(args ...any) {
	l.emit(zerolog.InfoLevel, args...)
}

// Warn is a wrapper function that will log a warning event
func (l *Logger) Warn(args ...any) {
	l.emit(zerolog.WarnLevel, args...)
}

// Error is a wrapper function that will log an error event
func (l *Logger) Error(args ...any) {
	l.emit(zerolog.ErrorLevel, args...)
}

// Panic is a wrapper function that will log a panic event to every writer and then panic.
func (l *Logger) Panic(args ...any) {
	_, plainMsg, err, _ := buildMsgs(args...)
	l.emit(zerolog.ErrorLevel, args...)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", plainMsg, err))
	}
	panic(plainMsg)
}

// writerSet returns a pointer to the writer list for the given output flavor.
func (l *Logger) writerSet(format LogFormat, colored bool) *[]io.Writer {
	if format == STRUCTURED {
		return &l.structuredWriters
	}
	if colored {
		return &l.unstructuredColorWriters
	}
	return &l.unstructuredWriters
}

// rebuild recreates the underlying zerolog loggers from the current writers, level and context.
func (l *Logger) rebuild() {
	build := func(writers []io.Writer, wrap func(io.Writer) io.Writer, timestamp bool) zerolog.Logger {
		if len(writers) == 0 {
			return zerolog.Nop()
		}
		wrapped := make([]io.Writer, 0, len(writers))
		for _, w := range writers {
			wrapped = append(wrapped, wrap(w))
		}
		ctx := zerolog.New(zerolog.MultiLevelWriter(wrapped...)).Level(l.level).With()
		if timestamp {
			ctx = ctx.Timestamp()
		}
		for k, v := range l.context {
			ctx = ctx.Str(k, v)
		}
		return ctx.Logger()
	}

	l.structuredLogger = build(l.structuredWriters, func(w io.Writer) io.Writer { return w }, true)
	l.unstructuredLogger = build(l.unstructuredWriters, func(w io.Writer) io.Writer {
		return setupDefaultFormatting(zerolog.ConsoleWriter{Out: w, NoColor: true}, l.level, false)
	}, false)
	l.unstructuredColorLogger = build(l.unstructuredColorWriters, func(w io.Writer) io.Writer {
		return setupDefaultFormatting(zerolog.ConsoleWriter{Out: w, NoColor: !colors.Enabled()}, l.level, true)
	}, false)
}

// emit sends a single log event at the given level to every writer set.
func (l *Logger) emit(level zerolog.Level, args ...any) {
	coloredMsg, plainMsg, err, info := buildMsgs(args...)
	withStack := l.level <= zerolog.DebugLevel

	send := func(logger *zerolog.Logger, msg string) {
		event := logger.WithLevel(level)
		if event == nil {
			return
		}
		if err != nil {
			event = event.Err(err)
			if withStack {
				event = event.Stack()
			}
		}
		if info != nil {
			event = event.Any("info", info)
		}
		event.Msg(msg)
	}

	send(&l.structuredLogger, plainMsg)
	send(&l.unstructuredLogger, plainMsg)
	send(&l.unstructuredColorLogger, coloredMsg)
}

// buildMsgs takes a variadic list of arguments of any type and returns a colorized message, a plain message and,
// optionally, an error and a StructuredLogInfo object found among the arguments.
func buildMsgs(args ...any) (string, string, error, StructuredLogInfo) {
	if len(args) == 0 {
		return "", "", nil, nil
	}

	colorCtx := colors.Reset
	colored := make([]string, 0, len(args))
	plain := make([]string, 0, len(args))
	var info StructuredLogInfo
	var err error

	for _, arg := range args {
		switch t := arg.(type) {
		case colors.ColorFunc:
			colorCtx = t
		case StructuredLogInfo:
			// Only one structured log info is kept per message.
			info = t
		case error:
			// Only one error is kept per message.
			err = t
		case *LogBuffer:
			c, p, _, _ := buildMsgs(t.Args()...)
			colored = append(colored, c)
			plain = append(plain, p)
		default:
			colored = append(colored, colorCtx(t))
			plain = append(plain, fmt.Sprintf("%v", t))
		}
	}

	return strings.Join(colored, ""), strings.Join(plain, ""), err, info
}

// setupDefaultFormatting will update the console writer's formatting to the project standard. Level glyphs are
// only colorized if colored is set.
func setupDefaultFormatting(writer zerolog.ConsoleWriter, level zerolog.Level, colored bool) zerolog.ConsoleWriter {
	paint := func(f colors.ColorFunc, s string) string {
		if colored {
			return f(s)
		}
		return s
	}

	writer.FormatTimestamp = func(i any) string {
		return ""
	}

	writer.FormatLevel = func(i any) string {
		levelStr, _ := i.(string)
		parsed, err := zerolog.ParseLevel(levelStr)
		if err != nil {
			return levelStr
		}

		switch parsed {
		case zerolog.TraceLevel:
			return paint(colors.CyanBold, zerolog.LevelTraceValue)
		case zerolog.DebugLevel:
			return paint(colors.BlueBold, zerolog.LevelDebugValue)
		case zerolog.InfoLevel:
			return paint(colors.GreenBold, colors.LEFT_ARROW)
		case zerolog.WarnLevel:
			return paint(colors.YellowBold, zerolog.LevelWarnValue)
		case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
			return paint(colors.RedBold, levelStr)
		default:
			return levelStr
		}
	}

	// Above debug level the module field is noise on the console
	if level > zerolog.DebugLevel {
		writer.FieldsExclude = []string{"module"}
	}

	return writer
}
