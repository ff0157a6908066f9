package log

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name  string
		input []any
		keys  []string
	}{
		{"empty input", []any{}, nil},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}, []string{"a", "b", "c"}},
		{"time type", []any{"t", now}, []string{"t"}},
		{"float type", []any{"pi", 3.14}, []string{"pi"}},
		{"bytes", []any{"data", []byte("xyz")}, []string{"data"}},
		{"strings", []any{"hwids", []string{`PCI\VEN_10DE`}}, []string{"hwids"}},
		{"error only", []any{err}, []string{"error"}},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}, []string{"msg", "x", "num"}},
		{"odd number of args", []any{"key1", "val1", "key2"}, []string{"key1", "arg#2"}},
		{"non-string key", []any{123, "value"}, []string{"invalid_key_1"}},
		{"stringer", []any{"ip", net.IPv4(10, 0, 0, 1)}, []string{"ip"}},
		{"nil values", []any{"a", nil, "b", (*int)(nil)}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)

			keys := make([]string, 0, len(fields))
			for _, f := range fields {
				keys = append(keys, f.Key)
			}
			if tt.keys == nil {
				assert.Empty(t, keys)
				return
			}
			assert.Equal(t, tt.keys, keys)
		})
	}
}

func TestToFieldsTypes(t *testing.T) {
	fields := toFields("n", 3, "d", 2*time.Second, "ok", true)
	require.Len(t, fields, 3)
	assert.Equal(t, zapcore.Int64Type, fields[0].Type)
	assert.Equal(t, zapcore.DurationType, fields[1].Type)
	assert.Equal(t, zapcore.BoolType, fields[2].Type)
}

func TestLoggerWritesStructuredEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromCore(core).WithName("catalog").WithValues("base", "http://repo:5000")

	l.Info("Catalog refreshed", "entries", 3)
	l.Error(errors.New("timeout"), "Catalog fetch failed")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "catalog", entries[0].LoggerName)
	assert.Equal(t, "Catalog refreshed", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "http://repo:5000", ctx["base"])
	assert.EqualValues(t, 3, ctx["entries"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "timeout", entries[1].ContextMap()["error"])
}

func TestLogrBridge(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewFromCore(core).Logr().Info("via logr", "k", "v")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "via logr", logs.All()[0].Message)
}

func TestOptionsValidate(t *testing.T) {
	assert.Empty(t, NewOptions().Validate())

	o := NewOptions()
	o.Level = "loud"
	o.Format = "xml"
	o.CallerSkip = -1
	assert.Len(t, o.Validate(), 3)
}
