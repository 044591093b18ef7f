package adapters

import (
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"car-advisor/internal/logging/types"
)

// ZapAdapter writes entries through a zap core. The stdout and file adapters are
// ZapAdapters over different write syncers.
type ZapAdapter struct {
	name   string
	core   zapcore.Core
	closer io.Closer
}

// NewWriterAdapter creates an adapter encoding entries to w as json or text
func NewWriterAdapter(name, format string, colorized bool, w io.Writer) *ZapAdapter {
	return newZapAdapter(name, newEncoder(format, colorized), zapcore.AddSync(w), nil)
}

func newZapAdapter(name string, enc zapcore.Encoder, ws zapcore.WriteSyncer, closer io.Closer) *ZapAdapter {
	// level filtering happens in MultiLogger; the core accepts everything
	core := zapcore.NewCore(enc, zapcore.Lock(ws), zapcore.DebugLevel)
	return &ZapAdapter{name: name, core: core, closer: closer}
}

func newEncoder(format string, colorized bool) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	if strings.EqualFold(format, "text") || strings.EqualFold(format, "console") {
		if colorized {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

// Write encodes one entry
func (a *ZapAdapter) Write(entry *types.LogEntry) error {
	ent := zapcore.Entry{
		Level:   toZapLevel(entry.Level),
		Time:    entry.Timestamp,
		Message: entry.Message,
	}
	return a.core.Write(ent, toZapFields(entry.Fields))
}

func (a *ZapAdapter) Sync() error {
	return a.core.Sync()
}

func (a *ZapAdapter) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *ZapAdapter) Name() string {
	return a.name
}

func toZapLevel(level types.LogLevel) zapcore.Level {
	switch level {
	case types.DebugLevel:
		return zapcore.DebugLevel
	case types.WarnLevel:
		return zapcore.WarnLevel
	case types.ErrorLevel:
		return zapcore.ErrorLevel
	case types.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// toZapFields converts a field map into zap fields in key order
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.String(k, err.Error()))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
