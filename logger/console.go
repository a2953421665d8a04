package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Console palette (everforest).
const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorFg     = "\x1b[38;5;223m"
	colorTime   = "\x1b[38;5;107m"
	colorName   = "\x1b[38;5;208m"
	colorID     = "\x1b[38;5;109m"
	colorNumber = "\x1b[38;5;108m"
	colorDim    = "\x1b[38;5;243m"
	colorWarn   = "\x1b[38;5;179m"
	colorWarnBg = "\x1b[48;5;58m"
	colorErr    = "\x1b[38;5;167m"
	colorErrBg  = "\x1b[48;5;52m"
)

var bufferPool = buffer.NewPool()

// consoleEncoder writes one compact line per entry:
//
//	13:04:35  WARN  index  ⇢ Unexpected container edge count  original_id=7Hq… count=2
//
// Every field is rendered as key=value; context fields added with With come
// first, sorted by key. A symbol field prefixes the message instead.
type consoleEncoder struct {
	*zapcore.MapObjectEncoder
}

func newConsoleEncoder() *consoleEncoder {
	return &consoleEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	clone := newConsoleEncoder()
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (enc *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := bufferPool.Get()

	line.AppendString(colorTime)
	line.AppendString(ent.Time.Format("15:04:05"))
	line.AppendString(colorReset)

	if lvl := levelString(ent.Level); lvl != "" {
		line.AppendString("  ")
		line.AppendString(lvl)
	}

	if ent.LoggerName != "" {
		line.AppendString("  ")
		line.AppendString(colorName)
		line.AppendString(abbreviateName(ent.LoggerName))
		line.AppendString(colorReset)
	}

	keys, values := enc.collect(fields)

	line.AppendString("  ")
	if symbol, ok := values[FieldSymbol]; ok {
		line.AppendString(fmt.Sprint(symbol))
		line.AppendByte(' ')
	}
	line.AppendString(colorFg)
	line.AppendString(ent.Message)
	line.AppendString(colorReset)

	for _, k := range keys {
		if k == FieldSymbol {
			continue
		}
		line.AppendString("  ")
		line.AppendString(colorDim)
		line.AppendString(k)
		line.AppendByte('=')
		line.AppendString(colorReset)
		line.AppendString(formatValue(k, values[k]))
	}

	if ent.Stack != "" {
		line.AppendByte('\n')
		line.AppendString(ent.Stack)
	}
	line.AppendByte('\n')
	return line, nil
}

// collect merges context and entry fields, context keys first.
func (enc *consoleEncoder) collect(fields []zapcore.Field) ([]string, map[string]interface{}) {
	values := make(map[string]interface{}, len(enc.Fields)+len(fields))
	keys := make([]string, 0, len(enc.Fields)+len(fields))

	for k, v := range enc.Fields {
		values[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// zap.Error also adds errorVerbose; only the field's own key is shown
	entry := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(entry)
		v, ok := entry.Fields[f.Key]
		if !ok {
			continue
		}
		if _, seen := values[f.Key]; !seen {
			keys = append(keys, f.Key)
		}
		values[f.Key] = v
	}
	return keys, values
}

func formatValue(key string, v interface{}) string {
	s := fmt.Sprint(v)
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return colorNumber + s + colorReset
	}
	if key == FieldID || strings.HasSuffix(key, "_id") {
		return colorID + s + colorReset
	}
	return s
}

func levelString(level zapcore.Level) string {
	switch level {
	case zapcore.InfoLevel:
		return ""
	case zapcore.DebugLevel:
		return colorDim + "DEBUG" + colorReset
	case zapcore.WarnLevel:
		return colorBold + colorWarnBg + colorWarn + "WARN" + colorReset
	default:
		return colorBold + colorErrBg + colorErr + level.CapitalString() + colorReset
	}
}

// abbreviateName shortens dotted logger names: orbits.index -> o.index
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}
