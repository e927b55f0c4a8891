// cmd/tenma-bridge/orchestrator.go
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/tenma-bridge/internal/api"
	"github.com/tamzrod/tenma-bridge/internal/datalog"
	"github.com/tamzrod/tenma-bridge/internal/poller"
	"github.com/tamzrod/tenma-bridge/internal/status"
	"github.com/tamzrod/tenma-bridge/internal/writer"
)

type cycleObserver interface {
	ObserveCycle(res poller.PollResult)
}

// orchestrator owns the health snapshot and delivers every cycle result
// to the data log, the API and the exporters. It runs on one goroutine.
type orchestrator struct {
	api     *api.Server
	datalog *datalog.Log
	metrics cycleObserver
	writer  writer.Writer // nil when no exporter is configured
	log     logrus.FieldLogger

	snap status.Snapshot
	last poller.PollResult
}

func newOrchestrator(srv *api.Server, dl *datalog.Log, m cycleObserver, w writer.Writer, identity string, log logrus.FieldLogger) *orchestrator {
	return &orchestrator{
		api:     srv,
		datalog: dl,
		metrics: m,
		writer:  w,
		log:     log,
		snap:    status.Snapshot{Health: status.HealthUnknown},
		last:    poller.PollResult{Identity: identity},
	}
}

// run consumes cycle results and seconds ticks until ctx is done.
func (o *orchestrator) run(ctx context.Context, in <-chan poller.PollResult, tick <-chan time.Time) {
	// Full block on start (identity re-assert).
	o.deliver(ctx, nil)

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-in:
			o.handleResult(ctx, res)
		case <-tick:
			o.handleTick(ctx)
		}
	}
}

func (o *orchestrator) handleResult(ctx context.Context, res poller.PollResult) {
	o.datalog.Append(datalog.Entry{
		Time:         res.At,
		OnDurationMs: res.OnDurationMs,
		State:        res.State,
	})
	o.api.SetOnDuration(res.OnDurationMs)
	if o.metrics != nil {
		o.metrics.ObserveCycle(res)
	}

	if res.Err != nil {
		o.log.WithFields(logrus.Fields{
			"skipped": len(res.Errs),
			"err":     res.Err,
		}).Debug("cycle incomplete")
	}

	// NOTE: seconds_in_error increments on the 1Hz ticker only.
	if o.snap.Observe(res.Err) {
		o.log.WithFields(logrus.Fields{
			"health":     o.snap.Health,
			"last_error": o.snap.LastErrorCode,
		}).Info("supply health changed")
	}
	o.last = res

	if o.writer == nil {
		return
	}
	msg, err := json.Marshal(o.api.Message())
	if err != nil {
		o.log.WithField("err", err).Warn("periodic message encode failed")
		return
	}
	o.deliver(ctx, msg)
}

func (o *orchestrator) handleTick(ctx context.Context) {
	if o.snap.Tick() {
		o.deliver(ctx, nil)
	}
}

func (o *orchestrator) deliver(ctx context.Context, msg []byte) {
	if o.writer == nil {
		return
	}
	err := o.writer.Write(ctx, writer.Update{
		Health:  o.snap,
		Result:  o.last,
		Message: msg,
	})
	if err != nil {
		o.log.WithField("err", err).Warn("export failed")
	}
}
