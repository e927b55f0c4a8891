// Package serializer runs device captures strictly one at a time.
//
// Responses on the wire are told apart only by the window they arrive in,
// so two overlapping captures would corrupt each other. Every producer
// (maintenance cycle, API commands, startup) enqueues here; a single worker
// drains the queue in arrival order.
package serializer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/tenma-bridge/internal/transport"
)

// DefaultDwell is used when neither the request nor the config sets one.
const DefaultDwell = 50 * time.Millisecond

// CodeClosed is the numeric code reported for ErrClosed.
const CodeClosed uint16 = 40

// ErrClosed is returned for requests that were not executed because the
// serializer was shut down.
var ErrClosed = closedError{}

type closedError struct{}

func (closedError) Error() string { return "serializer: closed" }
func (closedError) Code() uint16  { return CodeClosed }

// Capturer is the single-flight capture primitive (transport.Stream).
type Capturer interface {
	Capture(payload []byte, binary bool, dwell time.Duration) (transport.Response, error)
}

// Observer receives per-capture outcomes. Optional.
type Observer interface {
	ObserveCapture(command string, resp transport.Response, err error, took time.Duration)
	ObserveQueueDepth(n int)
}

// Request is one pending command.
type Request struct {
	// Command labels the request in logs and metrics, e.g. "VSET1?".
	// It is also the payload when Payload is nil.
	Command string
	Payload []byte
	Binary  bool
	Dwell   time.Duration

	// Apply runs on the worker after a successful capture and before the
	// next request starts. Device state is written only from here.
	Apply func(resp transport.Response) error
}

// Config is the serializer's runtime config.
type Config struct {
	DefaultDwell time.Duration
	Observer     Observer
}

// Future is the pending result of an enqueued request.
type Future struct {
	done chan struct{}
	resp transport.Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) finish(resp transport.Response, err error) {
	f.resp = resp
	f.err = err
	close(f.done)
}

// Done is closed once the request has run (or was rejected).
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the request has run and returns its outcome.
func (f *Future) Wait() (transport.Response, error) {
	<-f.done
	return f.resp, f.err
}

type job struct {
	req Request
	fut *Future
}

// Serializer owns the capturer. Nothing else may call it.
type Serializer struct {
	cap Capturer
	cfg Config
	log logrus.FieldLogger

	mu      sync.Mutex
	queue   []*job
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

// New starts the worker.
func New(c Capturer, cfg Config, log logrus.FieldLogger) *Serializer {
	if cfg.DefaultDwell <= 0 {
		cfg.DefaultDwell = DefaultDwell
	}
	s := &Serializer{
		cap:     c,
		cfg:     cfg,
		log:     log,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue appends req to the FIFO. It never blocks and never drops.
func (s *Serializer) Enqueue(req Request) *Future {
	fut := newFuture()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fut.finish(transport.Response{}, ErrClosed)
		return fut
	}
	s.queue = append(s.queue, &job{req: req, fut: fut})
	depth := len(s.queue)
	s.mu.Unlock()

	s.observeDepth(depth)

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return fut
}

// Do enqueues req and waits for its result.
func (s *Serializer) Do(req Request) (transport.Response, error) {
	return s.Enqueue(req).Wait()
}

// Pending returns the number of queued, not yet started requests.
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops the worker. The in-flight request completes; queued ones fail
// with ErrClosed.
func (s *Serializer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.stopped
		return
	}
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, j := range pending {
		j.fut.finish(transport.Response{}, ErrClosed)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.stopped
	s.observeDepth(0)
}

func (s *Serializer) run() {
	defer close(s.stopped)

	for {
		j, ok := s.next()
		if !ok {
			return
		}
		s.execute(j)
	}
}

func (s *Serializer) next() (*job, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			j := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			depth := len(s.queue)
			s.mu.Unlock()

			s.observeDepth(depth)
			return j, true
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, false
		}
		<-s.wake
	}
}

func (s *Serializer) execute(j *job) {
	req := j.req

	payload := req.Payload
	if payload == nil {
		payload = []byte(req.Command)
	}
	dwell := req.Dwell
	if dwell <= 0 {
		dwell = s.cfg.DefaultDwell
	}

	var (
		resp transport.Response
		err  error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serializer: %s: panic: %v", req.Command, r)
		}
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"command": req.Command,
				"err":     err,
			}).Debug("request failed")
		}
		j.fut.finish(resp, err)
	}()

	start := time.Now()
	resp, err = s.cap.Capture(payload, req.Binary, dwell)
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveCapture(req.Command, resp, err, time.Since(start))
	}
	if err != nil {
		return
	}

	if req.Apply != nil {
		err = req.Apply(resp)
	}
}

func (s *Serializer) observeDepth(n int) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveQueueDepth(n)
	}
}

// IsClosed reports whether err is ErrClosed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
