package reactor

import (
	"time"

	"github.com/joeycumines/logiface"
)

// logifaceEvent is a minimal logiface.Event implementation that buffers
// fields and the message into a LogEntry, for delivery to a Logger. It
// carries no backend of its own (no JSON, no formatting) — it exists
// purely to let logifaceLogger speak the fluent Build/Field/Log API while
// actually recording into this module's own LogEntry shape.
type logifaceEvent struct {
	logiface.UnimplementedEvent
	entry LogEntry
}

func (e *logifaceEvent) Level() logiface.Level {
	return toLogifaceLevel(e.entry.Level)
}

func (e *logifaceEvent) AddField(key string, val any) {
	if e.entry.Context == nil {
		e.entry.Context = make(map[string]any, 1)
	}
	e.entry.Context[key] = val
}

func (e *logifaceEvent) AddMessage(msg string) bool {
	e.entry.Message = msg
	return true
}

func (e *logifaceEvent) AddError(err error) bool {
	e.entry.Err = err
	return true
}

// logifaceWriter delivers a logifaceEvent's buffered LogEntry to the
// wrapped Logger once the fluent builder chain calls Log/Logf/LogFunc.
type logifaceWriter struct {
	target Logger
}

func (w logifaceWriter) Write(event *logifaceEvent) error {
	if event.entry.Timestamp.IsZero() {
		event.entry.Timestamp = time.Now()
	}
	w.target.Log(event.entry)
	return nil
}

// toLogifaceLevel maps this module's 4-level LogLevel onto logiface's
// syslog-derived Level scale. There is no natural 1:1 mapping, since
// logiface models 9 severities and this module models 4; each LogLevel
// is mapped to the logiface level its name most directly corresponds to.
func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelDisabled
	}
}

// fromLogifaceLevel is the inverse of toLogifaceLevel, used to decide
// whether a LogLevel is enabled against a logiface-configured threshold.
// Severities logiface supports but this module doesn't name (Emergency,
// Alert, Critical, Notice, Trace) collapse onto the nearest LogLevel that
// preserves IsEnabled's ordering: more severe than Error stays enabled
// whenever Error is, and Notice/Trace fall in alongside Info/Debug.
func fromLogifaceLevel(level logiface.Level) LogLevel {
	switch {
	case level <= logiface.LevelDisabled:
		return LevelError + 1 // one past the most severe level: nothing is enabled
	case level <= logiface.LevelError:
		return LevelError
	case level <= logiface.LevelWarning:
		return LevelWarn
	case level <= logiface.LevelNotice || level == logiface.LevelInformational:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// logifaceLogger implements this module's Logger interface by routing
// each LogEntry through an internal *logiface.Logger whose Writer is a
// logifaceWriter, so every entry ends up back at a target Logger after
// passing through logiface's fluent builder API.
type logifaceLogger struct {
	logger *logiface.Logger[*logifaceEvent]
}

// NewLogifaceLogger builds a Logger backed by an internal logiface.Logger
// (level threshold Trace, so every LogLevel is enabled) whose Writer
// delivers each rebuilt entry to target. Category and the non-zero ID
// fields reach target as Context keys ("category", "reactor_id",
// "task_id", "token_id", "timer_id"), not as the LogEntry fields of the
// same name. It does not accept a caller-constructed logiface.Logger or
// logiface Writer.
func NewLogifaceLogger(target Logger) Logger {
	logger := logiface.New[*logifaceEvent](
		logiface.WithLevel[*logifaceEvent](logiface.LevelTrace),
		logiface.WithEventFactory[*logifaceEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *logifaceEvent {
			return &logifaceEvent{entry: LogEntry{Level: fromLogifaceLevel(level)}}
		})),
		logiface.WithWriter[*logifaceEvent](logifaceWriter{target: target}),
	)
	return &logifaceLogger{logger: logger}
}

func (l *logifaceLogger) IsEnabled(level LogLevel) bool {
	return l.logger.Build(toLogifaceLevel(level)).Enabled()
}

func (l *logifaceLogger) Log(entry LogEntry) {
	b := l.logger.Build(toLogifaceLevel(entry.Level))
	if !b.Enabled() {
		b.Release()
		return
	}
	if entry.Category != "" {
		b.Str("category", entry.Category)
	}
	if entry.ReactorID != 0 {
		b.Int64("reactor_id", entry.ReactorID)
	}
	if entry.TaskID != 0 {
		b.Int64("task_id", entry.TaskID)
	}
	if entry.TokenID != 0 {
		b.Int64("token_id", entry.TokenID)
	}
	if entry.TimerID != 0 {
		b.Int64("timer_id", entry.TimerID)
	}
	for k, v := range entry.Context {
		b.Field(k, v)
	}
	if entry.Err != nil {
		b.Err(entry.Err)
	}
	b.Log(entry.Message)
}
