package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestShutdownLIFO(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)
	var order []string
	for _, name := range []string{"logger", "reconcile", "session"} {
		name := name
		sh.AddFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, sh.Shutdown(context.Background()))
	assert.Equal(t, []string{"session", "reconcile", "logger"}, order)

	// services are released after the first shutdown
	assert.NoError(t, sh.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownJoinsErrors(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)
	boom := errors.New("boom")
	closed := false
	sh.AddFunc("ok", func() error { closed = true; return nil })
	sh.AddFunc("bad", func() error { return boom })

	err := sh.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.True(t, closed)
}

func TestShutdownTimeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 50*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sh.AddFunc("stuck", func() error { <-release; return nil })

	start := time.Now()
	err := sh.Shutdown(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
