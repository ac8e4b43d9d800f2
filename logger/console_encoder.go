package logger

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// consoleEncoder renders calm, single-line human output:
//
//	15:04:05 INFO  fungen  voltage set  feature=voltage value=1.5V
//
// It flattens structured fields into key=value pairs after the message and
// keeps warnings and errors visually distinct with a level column.
type consoleEncoder struct {
	zapcore.Encoder
	fields []zapcore.Field
}

func newConsoleEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	return &consoleEncoder{Encoder: zapcore.NewJSONEncoder(cfg)}
}

func (e *consoleEncoder) Clone() zapcore.Encoder {
	clone := &consoleEncoder{Encoder: e.Encoder.Clone()}
	clone.fields = append(clone.fields, e.fields...)
	return clone
}

func (e *consoleEncoder) AddString(key, value string) {
	e.fields = append(e.fields, zapcore.Field{Key: key, Type: zapcore.StringType, String: value})
	e.Encoder.AddString(key, value)
}

func (e *consoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := bufferPool.Get()

	line.AppendString(entry.Time.Format(time.TimeOnly))
	line.AppendString(" ")
	line.AppendString(fmt.Sprintf("%-5s", levelLabel(entry.Level)))
	if entry.LoggerName != "" {
		line.AppendString(" ")
		line.AppendString(entry.LoggerName)
	}
	line.AppendString("  ")
	line.AppendString(entry.Message)

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range append(e.fields, fields...) {
		f.AddTo(enc)
	}
	for _, k := range sortedKeys(enc.Fields) {
		line.AppendString("  ")
		line.AppendString(k)
		line.AppendString("=")
		line.AppendString(fmt.Sprint(enc.Fields[k]))
	}

	line.AppendString("\n")
	return line, nil
}

func levelLabel(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return "DEBUG"
	case zapcore.InfoLevel:
		return "INFO"
	case zapcore.WarnLevel:
		return "WARN"
	case zapcore.ErrorLevel:
		return "ERROR"
	default:
		return l.CapitalString()
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
