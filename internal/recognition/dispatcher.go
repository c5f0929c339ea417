package recognition

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/voxkit/voxd/internal/fsm"
	"github.com/voxkit/voxd/internal/metrics"
)

// CallbackID identifies one registered callback for later removal. IDs are
// unique across all callback categories.
type CallbackID uint64

type eventKind int

const (
	eventText eventKind = iota + 1
	eventAction
	eventPartial
	eventState
)

type event struct {
	kind     eventKind
	payload  string
	from, to fsm.State
}

type stringCallback struct {
	id CallbackID
	fn func(string)
}

type stateCallback struct {
	id CallbackID
	fn func(from, to fsm.State)
}

// Dispatcher fans recognition events out to registered callbacks from a
// single goroutine. Publishing never blocks: the queue is bounded and an
// overflowing event is counted and dropped rather than stalling capture.
// Within a category, callbacks observe events in publish order and are never
// invoked concurrently.
type Dispatcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	queue   chan event
	stop    chan struct{}
	done    chan struct{}
	closing sync.Once

	dropped atomic.Uint64

	mu       sync.Mutex
	nextID   CallbackID
	texts    []stringCallback
	actions  []stringCallback
	partials []stringCallback
	states   []stateCallback
}

// NewDispatcher starts the dispatch goroutine with a queue of the given
// capacity. A capacity below one falls back to 64.
func NewDispatcher(queueSize int, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if queueSize < 1 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		logger:  logger,
		metrics: m,
		queue:   make(chan event, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// OnText registers a callback for finalized, command-processed text.
func (d *Dispatcher) OnText(fn func(text string)) CallbackID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.texts = append(d.texts, stringCallback{id: d.nextID, fn: fn})
	return d.nextID
}

// OnAction registers a callback for extracted action identifiers.
func (d *Dispatcher) OnAction(fn func(action string)) CallbackID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.actions = append(d.actions, stringCallback{id: d.nextID, fn: fn})
	return d.nextID
}

// OnPartial registers a callback for provisional streaming hypotheses.
// Partial text is raw recognizer output; it never passes through command
// extraction.
func (d *Dispatcher) OnPartial(fn func(text string)) CallbackID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.partials = append(d.partials, stringCallback{id: d.nextID, fn: fn})
	return d.nextID
}

// OnState registers a callback for state transitions.
func (d *Dispatcher) OnState(fn func(from, to fsm.State)) CallbackID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.states = append(d.states, stateCallback{id: d.nextID, fn: fn})
	return d.nextID
}

// Off removes a previously registered callback. It reports whether the id
// was found.
func (d *Dispatcher) Off(id CallbackID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if removed, ok := removeString(d.texts, id); ok {
		d.texts = removed
		return true
	}
	if removed, ok := removeString(d.actions, id); ok {
		d.actions = removed
		return true
	}
	if removed, ok := removeString(d.partials, id); ok {
		d.partials = removed
		return true
	}
	for i, cb := range d.states {
		if cb.id == id {
			d.states = append(d.states[:i:i], d.states[i+1:]...)
			return true
		}
	}
	return false
}

func removeString(cbs []stringCallback, id CallbackID) ([]stringCallback, bool) {
	for i, cb := range cbs {
		if cb.id == id {
			return append(cbs[:i:i], cbs[i+1:]...), true
		}
	}
	return cbs, false
}

// Dropped reports how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops the dispatch goroutine after delivering already-queued events.
// Publishing after Close is safe and silently discards.
func (d *Dispatcher) Close() {
	d.closing.Do(func() { close(d.stop) })
	<-d.done
}

func (d *Dispatcher) publishText(text string) {
	d.publish(event{kind: eventText, payload: text})
}

func (d *Dispatcher) publishAction(action string) {
	d.publish(event{kind: eventAction, payload: action})
}

func (d *Dispatcher) publishPartial(text string) {
	d.publish(event{kind: eventPartial, payload: text})
}

func (d *Dispatcher) publishState(from, to fsm.State) {
	d.publish(event{kind: eventState, from: from, to: to})
}

func (d *Dispatcher) publish(ev event) {
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.RecordEventDropped()
		}
		d.logger.Debug("event queue full, dropping", "kind", int(ev.kind))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			// Deliver what is already queued, then exit.
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		case ev := <-d.queue:
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) deliver(ev event) {
	switch ev.kind {
	case eventText:
		for _, cb := range d.snapshotStrings(&d.texts) {
			cb.fn(ev.payload)
		}
	case eventAction:
		for _, cb := range d.snapshotStrings(&d.actions) {
			cb.fn(ev.payload)
		}
	case eventPartial:
		for _, cb := range d.snapshotStrings(&d.partials) {
			cb.fn(ev.payload)
		}
	case eventState:
		d.mu.Lock()
		cbs := append([]stateCallback(nil), d.states...)
		d.mu.Unlock()
		for _, cb := range cbs {
			cb.fn(ev.from, ev.to)
		}
	}
}

func (d *Dispatcher) snapshotStrings(cbs *[]stringCallback) []stringCallback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]stringCallback(nil), *cbs...)
}
