package notify

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/complaintdesk/backend/internal/logger"
)

// Sink delivers an event to one external channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

type DispatcherOptions struct {
	Workers   int
	QueueSize int
	// Timeout bounds each Send call.
	Timeout time.Duration
}

// Dispatcher queues events and delivers them to every sink from a fixed pool
// of workers. A full queue drops the event rather than blocking the request.
type Dispatcher struct {
	sinks    []Sink
	queue    chan Event
	timeout  time.Duration
	workers  int
	stopChan chan struct{}
	dropped  atomic.Int64
	wg       sync.WaitGroup

	// mu orders enqueues against Close so nothing lands in the queue after
	// the workers have drained it.
	mu      sync.RWMutex
	stopped bool
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(sinks []Sink, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	d := &Dispatcher{
		sinks:    sinks,
		queue:    make(chan Event, opts.QueueSize),
		timeout:  opts.Timeout,
		workers:  opts.Workers,
		stopChan: make(chan struct{}),
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

func (d *Dispatcher) Notify(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		logger.Warn("Notification queue full, dropping event", map[string]interface{}{
			"type":         ev.Type,
			"complaint_id": ev.ComplaintID,
		})
	}
}

// Dropped reports how many events were discarded.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting events, delivers what is already queued and waits
// for the workers to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()

	for _, sink := range d.sinks {
		if closer, ok := sink.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.WithError(err, "notify").WithField("sink", sink.Name()).Warn("Failed to close sink")
			}
		}
	}
}

// worker delivers events from the queue
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stopChan:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					logger.Debug("Notification worker stopping", map[string]interface{}{"worker_id": id})
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Send(ctx, ev)
		cancel()
		if err != nil {
			logger.WithError(err, "notify").WithFields(map[string]interface{}{
				"sink":         sink.Name(),
				"type":         ev.Type,
				"complaint_id": ev.ComplaintID,
			}).Warn("Failed to deliver notification")
		}
	}
}
