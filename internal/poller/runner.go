// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run drives cycles until ctx is done and emits each PollResult on out.
// The pause before the next cycle starts only after the previous result
// was taken: no overlap, no backlog on a slow device.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		res := p.Cycle()

		select {
		case <-ctx.Done():
			return
		case out <- res:
		}

		timer.Reset(p.cfg.Interval)
	}
}
