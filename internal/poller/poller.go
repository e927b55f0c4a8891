// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/tenma-bridge/internal/ontime"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	TwoChannel     bool
	Interval       time.Duration
	GuardFirstTick bool
}

// Poller refreshes the whole mirror once per cycle, in a fixed order.
type Poller struct {
	cfg     Config
	client  Client
	tracker *ontime.Tracker
	log     logrus.FieldLogger
	now     func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, client Client, log logrus.FieldLogger) (*Poller, error) {
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		tracker: ontime.New(cfg.GuardFirstTick),
		log:     log,
		now:     time.Now,
	}, nil
}

// PollOnce performs exactly one maintenance cycle:
//
//	ISET1? VSET1? IOUT1? VOUT1? [ISET2? VSET2? IOUT2? VOUT2?] STATUS?
//
// Steps run one at a time and are never reordered. A failed step is
// skipped and the cycle goes on.
func (p *Poller) PollOnce() PollResult {
	start := time.Now()
	var res PollResult

	step := func(name string, fn func() error) {
		res.Captures++
		if err := fn(); err != nil {
			p.log.WithFields(logrus.Fields{
				"step": name,
				"err":  err,
			}).Debug("refresh step skipped")
			res.Errs = append(res.Errs, fmt.Errorf("poller: %s: %w", name, err))
		}
	}

	channels := []int{1}
	if p.cfg.TwoChannel {
		channels = append(channels, 2)
	}

	for _, ch := range channels {
		step(fmt.Sprintf("ISET%d?", ch), func() error {
			_, err := p.client.ReadCurrentSetting(ch)
			return err
		})
		step(fmt.Sprintf("VSET%d?", ch), func() error {
			_, err := p.client.ReadVoltageSetting(ch)
			return err
		})
		step(fmt.Sprintf("IOUT%d?", ch), func() error {
			_, err := p.client.ReadOutputCurrent(ch)
			return err
		})
		step(fmt.Sprintf("VOUT%d?", ch), func() error {
			_, err := p.client.ReadOutputVoltage(ch)
			return err
		})
	}

	step("STATUS?", func() error {
		_, err := p.client.ReadStatus()
		return err
	})

	res.At = p.now()
	res.Took = time.Since(start)
	res.State = p.client.Snapshot()
	res.Identity = p.client.Identity()
	res.Err = errors.Join(res.Errs...)
	return res
}

// Cycle runs one maintenance cycle and folds the output flag into the
// on-duration tracker. Only the cycle driver calls it.
func (p *Poller) Cycle() PollResult {
	res := p.PollOnce()
	res.OnDurationMs = p.tracker.Tick(res.At, res.OutputEnabled())
	return res
}
