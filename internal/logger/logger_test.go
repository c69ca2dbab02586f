package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and restores the
// previous settings on cleanup.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	prevOut, prevColor := output, useColor
	output, useColor = buf, false
	mu.Unlock()

	prevLevel := GetLevel()
	prevFormat, _ := currentFormat.Load().(string)
	reconfigure()

	t.Cleanup(func() {
		mu.Lock()
		output, useColor = prevOut, prevColor
		mu.Unlock()
		currentLevel.Store(int32(prevLevel))
		currentFormat.Store(prevFormat)
		reconfigure()
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
		skip  []string
	}{
		{"DEBUG", []string{"dbg", "inf", "wrn", "err"}, nil},
		{"INFO", []string{"inf", "wrn", "err"}, []string{"dbg"}},
		{"WARN", []string{"wrn", "err"}, []string{"dbg", "inf"}},
		{"ERROR", []string{"err"}, []string{"dbg", "inf", "wrn"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureOutput(t)
			SetLevel(tt.level)

			Debug("dbg")
			Info("inf")
			Warn("wrn")
			Error("err")

			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, "] "+w)
			}
			for _, s := range tt.skip {
				assert.NotContains(t, out, "] "+s)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"ERROR", LevelError, true},
		{"0", LevelError, true},
		{"1", LevelWarn, true},
		{"2", LevelInfo, true},
		{"3", LevelInfo, true},
		{"4", LevelDebug, true},
		{"9", LevelDebug, true},
		{"-1", 0, false},
		{"TRACE", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestSetLevelIgnoresInvalid(t *testing.T) {
	captureOutput(t)
	SetLevel("WARN")
	SetLevel("LOUD")
	assert.Equal(t, LevelWarn, GetLevel())
}

func TestTextFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	Info("minor opened", "path", "/dev/sdb", "size", int64(1024), "note", "two words", Err(nil))

	line := buf.String()
	assert.Contains(t, line, "[INFO] minor opened")
	assert.Contains(t, line, "path=/dev/sdb")
	assert.Contains(t, line, "size=1024")
	assert.Contains(t, line, `note="two words"`)
	assert.NotContains(t, line, "error=")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestTextGroupsAndWith(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")

	With("component", "nd").WithGroup("req").Info("served", "blkno", 7)

	line := buf.String()
	assert.Contains(t, line, "component=nd")
	assert.Contains(t, line, "req.blkno=7")
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("DEBUG")
	SetFormat("json")

	Debug("read fragment", KeyCaddr, 1024, KeyCcount, 512)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "read fragment", rec["msg"])
	assert.Equal(t, float64(1024), rec[KeyCaddr])
}

func TestContextLogging(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("DEBUG")
	SetFormat("text")

	lc := NewLogContext("10.0.0.5").WithRequest("READ", 2, 99).WithTrace("abc", "def")
	ctx := WithContext(context.Background(), lc)

	WarnCtx(ctx, "validation failed", KeyErrno, "EIO")

	line := buf.String()
	for _, want := range []string{"trace_id=abc", "span_id=def", "op=READ", "minor=2", "client_ip=10.0.0.5", "seq=99", "errno=EIO"} {
		assert.Contains(t, line, want)
	}

	buf.Reset()
	InfoCtx(context.Background(), "no context")
	assert.NotContains(t, buf.String(), "client_ip")
}

func TestLogContext(t *testing.T) {
	lc := NewLogContext("192.0.2.1")
	assert.Equal(t, -1, lc.Minor)
	assert.Empty(t, lc.fields()[2:], "only client ip before a request is decoded")

	req := lc.WithRequest("WRITE", 0, 1)
	assert.Equal(t, "", lc.Op, "original untouched")
	assert.Equal(t, "WRITE", req.Op)
	assert.Equal(t, 0, req.Minor)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Nil(t, nilCtx.WithTrace("a", "b"))
	assert.Zero(t, nilCtx.DurationMs())
	assert.Nil(t, FromContext(context.Background()))
}

func TestInitFileOutput(t *testing.T) {
	captureOutput(t)
	path := filepath.Join(t.TempDir(), "ndd.log")

	require.NoError(t, Init(Config{Level: "INFO", Format: "json", Output: path}))
	Info("to file")
	t.Cleanup(func() {
		mu.Lock()
		if closer != nil {
			_ = closer.Close()
			closer = nil
		}
		mu.Unlock()
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}

func TestInitErrors(t *testing.T) {
	captureOutput(t)
	assert.Error(t, Init(Config{Level: "LOUD"}))
	assert.Error(t, Init(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")}))
}

func TestConcurrentLogging(t *testing.T) {
	buf := &lockedBuffer{}
	mu.Lock()
	prevOut := output
	output = buf
	mu.Unlock()
	reconfigure()
	t.Cleanup(func() {
		mu.Lock()
		output = prevOut
		mu.Unlock()
		reconfigure()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Error("concurrent", Err(errors.New("boom")))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, strings.Count(buf.String(), "\n"))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
