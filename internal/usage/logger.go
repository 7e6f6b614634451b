package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"freeway/internal/observability"
)

// Logger provides async buffered logging with batch writes.
// Entries are collected in a channel and flushed to the store when a batch
// fills up or the flush interval elapses. Write never blocks the caller.
type Logger struct {
	store         UsageStore
	config        Config
	buffer        chan *UsageEntry
	done          chan struct{}
	wg            sync.WaitGroup
	writes        sync.WaitGroup // in-flight Write calls
	flushInterval time.Duration
	closed        atomic.Bool
}

// NewLogger creates a Logger and starts its flush goroutine.
func NewLogger(store UsageStore, cfg Config) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	l := &Logger{
		store:         store,
		config:        cfg,
		buffer:        make(chan *UsageEntry, cfg.BufferSize),
		done:          make(chan struct{}),
		flushInterval: cfg.FlushInterval,
	}

	l.wg.Add(1)
	go l.flushLoop()

	return l
}

// Write queues an entry. If the buffer is full or the logger is closed, the
// entry is dropped.
func (l *Logger) Write(entry *UsageEntry) {
	if entry == nil || l.closed.Load() {
		return
	}

	l.writes.Add(1)
	defer l.writes.Done()

	// Close may have run between the first check and Add.
	if l.closed.Load() {
		return
	}

	select {
	case l.buffer <- entry:
	default:
		observability.UsageEntriesDropped.Inc()
		slog.Warn("usage log buffer full, dropping entry",
			"request_id", entry.RequestID,
			"project_id", entry.ProjectID,
			"model", entry.ModelID,
		)
	}
}

// Config returns the logger configuration
func (l *Logger) Config() Config {
	return l.config
}

// Close stops the logger, flushes what is buffered and closes the store.
// Close is idempotent.
func (l *Logger) Close() error {
	if l.closed.Swap(true) {
		return nil
	}

	l.writes.Wait()
	close(l.done)
	l.wg.Wait()

	return l.store.Close()
}

func (l *Logger) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	batch := make([]*UsageEntry, 0, BatchFlushThreshold)

	for {
		select {
		case entry := <-l.buffer:
			batch = append(batch, entry)
			if len(batch) >= BatchFlushThreshold {
				l.flushBatch(batch)
				batch = make([]*UsageEntry, 0, BatchFlushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.flushBatch(batch)
				batch = make([]*UsageEntry, 0, BatchFlushThreshold)
			}

		case <-l.done:
			// closed is already set, so no Write can send any more
			close(l.buffer)
			for entry := range l.buffer {
				batch = append(batch, entry)
			}
			if len(batch) > 0 {
				l.flushBatch(batch)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := l.store.Flush(ctx); err != nil {
				slog.Error("failed to flush usage store", "error", err)
			}
			cancel()
			return
		}
	}
}

func (l *Logger) flushBatch(batch []*UsageEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := l.store.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write usage batch",
			"error", err,
			"count", len(batch),
		)
	}
}

// NoopLogger is used when usage tracking is disabled.
type NoopLogger struct{}

func (l *NoopLogger) Write(_ *UsageEntry) {}

func (l *NoopLogger) Config() Config {
	return Config{Enabled: false}
}

func (l *NoopLogger) Close() error {
	return nil
}

// LoggerInterface is implemented by Logger and NoopLogger.
type LoggerInterface interface {
	Write(entry *UsageEntry)
	Config() Config
	Close() error
}
