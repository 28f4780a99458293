package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memeswap.log")
	l, err := New(&Config{File: path, MaxSize: 1})
	require.NoError(t, err)

	l.WithAttempt("attempt-1").Info("Swap submitted", zap.String("signature", "sig"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "Swap submitted", rec["msg"])
	assert.Equal(t, "attempt-1", rec["attempt_id"])
	assert.Equal(t, "sig", rec["signature"])
	assert.Contains(t, rec, "timestamp")
}

func TestNewRequiresOutput(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestDevelopmentEnablesDebug(t *testing.T) {
	buf := NewBuffer(10)
	l, err := New(&Config{Buffer: buf, Development: true})
	require.NoError(t, err)
	l.Debug("debug line")

	prod, err := New(&Config{Buffer: NewBuffer(10)})
	require.NoError(t, err)
	prod.Debug("hidden")

	assert.Len(t, buf.Recent(0), 1)
	assert.Empty(t, prod.config.Buffer.Recent(0))
}

func TestBufferCoreCapturesFields(t *testing.T) {
	buf := NewBuffer(10)
	l, err := New(&Config{Buffer: buf})
	require.NoError(t, err)

	l.Named("orchestrator").With(zap.String("attempt_id", "a1")).Warn("Fee unreliable", zap.Int("missing", 1))

	entries := buf.Recent(0)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "WARN", e.Level)
	assert.Equal(t, "orchestrator", e.Logger)
	assert.Equal(t, "Fee unreliable", e.Message)
	assert.Equal(t, "a1", e.Fields["attempt_id"])
	assert.EqualValues(t, 1, e.Fields["missing"])
}

func TestBufferRecentOrder(t *testing.T) {
	buf := NewBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Add(Entry{Message: fmt.Sprint(i)})
	}

	msgs := func(es []Entry) []string {
		out := make([]string, len(es))
		for i, e := range es {
			out[i] = e.Message
		}
		return out
	}
	assert.Equal(t, []string{"2", "3", "4"}, msgs(buf.Recent(0)))
	assert.Equal(t, []string{"3", "4"}, msgs(buf.Recent(2)))
	assert.EqualValues(t, 5, buf.Total())

	small := NewBuffer(5)
	small.Add(Entry{Message: "a"})
	small.Add(Entry{Message: "b"})
	assert.Equal(t, []string{"a", "b"}, msgs(small.Recent(10)))
	assert.Equal(t, []string{"b"}, msgs(small.Recent(1)))
}

func TestBufferConcurrentAccess(t *testing.T) {
	buf := NewBuffer(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf.Add(Entry{Message: fmt.Sprintf("%d-%d", id, j)})
				_ = buf.Recent(5)
			}
		}(g)
	}
	wg.Wait()

	assert.EqualValues(t, 800, buf.Total())
	assert.Len(t, buf.Recent(0), 50)
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "So11...1112", ShortenAddress("So11111111111111111111111111111111111111112"))
	assert.Equal(t, "abc", ShortenAddress("abc"))
	assert.Equal(t, "12345678...abcdefgh", ShortenSignature("12345678xxxxxxxxxxabcdefgh"))
}
