package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/orbits/errors"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func encode(t *testing.T, enc zapcore.Encoder, ent zapcore.Entry, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(ent, fields)
	require.NoError(t, err)
	defer buf.Free()
	return ansi.ReplaceAllString(buf.String(), "")
}

func TestConsoleEncoderKeepsEveryField(t *testing.T) {
	ent := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Date(2024, 5, 1, 13, 4, 35, 0, time.UTC),
		LoggerName: "orbits.index",
		Message:    "Orbit created",
	}

	out := encode(t, newConsoleEncoder(), ent,
		zap.String(FieldOriginalID, "7Hq"),
		zap.Int(FieldCount, 2),
		zap.Bool("stale", false),
		zap.Float64("ratio", 0.5),
		zap.Strings("tags", []string{"a", "b"}),
		zap.Error(nil),
		zap.Error(errors.New("boom")),
	)

	assert.True(t, strings.HasPrefix(out, "13:04:35  o.index  Orbit created"), out)
	for _, want := range []string{"original_id=7Hq", "count=2", "stale=false", "ratio=0.5", "tags=[a b]", "error=boom"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "errorVerbose")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestConsoleEncoderLevelsAndSymbol(t *testing.T) {
	ent := zapcore.Entry{Level: zapcore.WarnLevel, Time: time.Now(), Message: "Unexpected container edge count"}

	out := encode(t, newConsoleEncoder(), ent, zap.String(FieldSymbol, "⇢"), zap.Int(FieldCount, 0))
	assert.Contains(t, out, "WARN  ⇢ Unexpected container edge count")
	assert.NotContains(t, out, "symbol=")

	ent.Level = zapcore.InfoLevel
	assert.NotContains(t, encode(t, newConsoleEncoder(), ent), "INFO")
}

func TestConsoleEncoderContextFields(t *testing.T) {
	base := newConsoleEncoder()
	base.AddString(FieldAgent, "alice")

	clone := base.Clone()
	clone.AddString(FieldComponent, "resolve")

	ent := zapcore.Entry{Level: zapcore.InfoLevel, Time: time.Now(), Message: "walk"}

	out := encode(t, clone, ent, zap.Int(FieldDepth, 3))
	assert.Regexp(t, `agent=alice  component=resolve  depth=3`, out)

	// the clone's context does not leak back
	assert.NotContains(t, encode(t, base, ent), "component=")
}

func TestAbbreviateName(t *testing.T) {
	assert.Equal(t, "o.index", abbreviateName("orbits.index"))
	assert.Equal(t, "sqlite", abbreviateName("sqlite"))
	assert.Equal(t, ".x", abbreviateName(".x"))
}
