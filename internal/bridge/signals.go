package bridge

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WatchSignals forwards SIGINT/SIGTERM/SIGQUIT into the bridge's loop
// flags, per spec.md §4.I, and stops forwarding when ctx is canceled. The
// forwarding goroutine never touches cfg.Mem; it only stores atomic
// flags, which the loop in Run reads at the next cycle boundary. Signal
// delivery itself is handled by the Go runtime (signal.Notify), so unlike
// a C-level handler this goroutine has no async-signal-safety
// restrictions of its own; the constraint from spec.md §9 ("handlers must
// be async-signal-safe") is satisfied by construction.
func (b *Bridge) WatchSignals(ctx context.Context) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				switch sig {
				case syscall.SIGINT:
					b.flags.ResetRequested.Store(true)
				case syscall.SIGTERM:
					b.flags.Quit.Store(true)
				case syscall.SIGQUIT:
					b.flags.UploadRequested.Store(true)
				}
			}
		}
	}()
}
