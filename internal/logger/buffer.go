package logger

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is a single log record kept in memory.
type Entry struct {
	Time    time.Time
	Level   string
	Logger  string
	Message string
	Fields  map[string]interface{}
}

// Buffer is a thread-safe ring of the most recent log entries. The TUI reads
// it to render its log pane; the file core keeps the full history.
type Buffer struct {
	mu      sync.Mutex
	ring    []Entry
	next    int
	wrapped bool
	total   uint64
}

// NewBuffer creates a ring holding up to size entries.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 100
	}
	return &Buffer{ring: make([]Entry, size)}
}

// Add stores an entry, overwriting the oldest when full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring[b.next] = e
	b.next = (b.next + 1) % len(b.ring)
	if b.next == 0 {
		b.wrapped = true
	}
	b.total++
}

// Recent returns up to limit newest entries, oldest first. limit <= 0
// returns everything held.
func (b *Buffer) Recent(limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := b.next
	start := 0
	if b.wrapped {
		count = len(b.ring)
		start = b.next
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	out := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, b.ring[(start+i)%len(b.ring)])
	}
	return out
}

// Total returns how many entries were ever added.
func (b *Buffer) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Core returns a zapcore.Core that copies entries at or above level into b.
func (b *Buffer) Core(level zapcore.LevelEnabler) zapcore.Core {
	return &bufferCore{buf: b, LevelEnabler: level}
}

type bufferCore struct {
	zapcore.LevelEnabler
	buf    *Buffer
	fields []zapcore.Field
}

func (c *bufferCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &bufferCore{buf: c.buf, LevelEnabler: c.LevelEnabler, fields: merged}
}

func (c *bufferCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *bufferCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	c.buf.Add(Entry{
		Time:    ent.Time,
		Level:   ent.Level.CapitalString(),
		Logger:  ent.LoggerName,
		Message: ent.Message,
		Fields:  enc.Fields,
	})
	return nil
}

func (c *bufferCore) Sync() error { return nil }
