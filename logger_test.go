package pqcodec

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hupe1980/pqcodec/quantization"
	"github.com/stretchr/testify/assert"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf).WithDimension(128).WithCount(10).WithVersion(3)

	l.Info("hello")

	out := buf.String()
	assert.Contains(t, out, `"dimension":128`)
	assert.Contains(t, out, `"count":10`)
	assert.Contains(t, out, `"version":3`)
}

func TestLogger_LogTrain(t *testing.T) {
	ctx := context.Background()
	cfg := quantization.Config{Dimension: 4, SubvectorDim: 2, NBits: 2}

	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		newBufferLogger(&buf).LogTrain(ctx, cfg, &quantization.TrainReport{Vectors: 7}, nil)
		assert.Contains(t, buf.String(), `"msg":"training completed"`)
		assert.Contains(t, buf.String(), `"vectors":7`)
	})

	t.Run("warnings", func(t *testing.T) {
		var buf bytes.Buffer
		report := &quantization.TrainReport{Vectors: 1, Warnings: []quantization.Warning{{}}}
		newBufferLogger(&buf).LogTrain(ctx, cfg, report, nil)
		assert.Contains(t, buf.String(), `"level":"WARN"`)
		assert.Contains(t, buf.String(), `"warnings":1`)
	})

	t.Run("failure", func(t *testing.T) {
		var buf bytes.Buffer
		newBufferLogger(&buf).LogTrain(ctx, cfg, nil, errors.New("boom"))
		assert.Contains(t, buf.String(), `"msg":"training failed"`)
		assert.Contains(t, buf.String(), `"error":"boom"`)
	})
}

func TestLogger_Registry(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.LogPublish(ctx, 2, "codecs/000002.pqc", nil)
	l.LogLoad(ctx, 0, errors.New("missing"))

	out := buf.String()
	assert.Contains(t, out, `"artifact":"codecs/000002.pqc"`)
	assert.Contains(t, out, `"msg":"load failed"`)
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.NotPanics(t, func() {
		l.LogCapabilities(context.Background())
		l.LogEncodeBatch(context.Background(), 1, nil)
	})
}
