package sse

import (
	"log/slog"
	"time"
)

// KeepAliveWriter is the slice of Writer the keep-alive loop needs.
type KeepAliveWriter interface {
	WriteKeepAlive() error
}

// KeepAlive sends periodic SSE comments until stopped or until a write
// fails, which means the client went away.
type KeepAlive struct {
	interval time.Duration
	done     chan struct{}
}

func NewKeepAlive(interval time.Duration) *KeepAlive {
	return &KeepAlive{interval: interval, done: make(chan struct{})}
}

// Start launches the ping loop. The returned channel closes when the loop
// exits, either from Stop or from a failed write.
func (k *KeepAlive) Start(writer KeepAliveWriter, logger *slog.Logger) <-chan struct{} {
	stopped := make(chan struct{})
	ticker := time.NewTicker(k.interval)

	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					logger.Debug("keepalive write failed, client gone", "error", err)
					return
				}
			case <-k.done:
				return
			}
		}
	}()
	return stopped
}

// Stop ends the ping loop. Safe to call more than once.
func (k *KeepAlive) Stop() {
	select {
	case <-k.done:
	default:
		close(k.done)
	}
}
