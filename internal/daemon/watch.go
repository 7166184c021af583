package daemon

import (
	"github.com/matheus3301/wpparchive/internal/bus"
	"github.com/matheus3301/wpparchive/internal/status"
	"go.uber.org/zap"
)

// watchStatus logs every state transition of the archiver until the returned
// stop function is called. It is an observer: transitions published while it
// lags behind are skipped rather than slowing the machine down.
func watchStatus(b *bus.Bus, logger *zap.Logger) func() {
	ch, unsub := b.Subscribe(status.KindStatusChanged, 16)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case evt := <-ch:
				change, ok := evt.Payload.(status.StatusChange)
				if !ok {
					continue
				}
				logger.Info("state changed",
					zap.String("from", string(change.From)),
					zap.String("to", string(change.To)),
					zap.String("event_id", evt.ID))
			case <-done:
				return
			}
		}
	}()

	return func() {
		unsub()
		close(done)
		<-stopped
	}
}
