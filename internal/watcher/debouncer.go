package watcher

import (
	"context"
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. A batch is emitted once no
// event arrived for the delay. Within a batch each path appears once: an add
// or unlink is kept over a later change, otherwise the latest event wins.
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	index   map[string]int
	mutex   sync.Mutex

	// done is closed by Stop and releases a flush nobody will receive.
	done     chan struct{}
	stopOnce sync.Once
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		events: make(chan ChangeEvent, 256),
		output: make(chan []ChangeEvent, 16),
		index:  make(map[string]int),
		done:   make(chan struct{}),
	}
}

// Add queues an event. It never blocks.
func (d *Debouncer) Add(event ChangeEvent) {
	select {
	case d.events <- event:
	default:
		// Overflow: record directly rather than dropping a structural change.
		d.addEvent(event)
	}
}

// Output delivers debounced batches.
func (d *Debouncer) Output() <-chan []ChangeEvent { return d.output }

// Run consumes queued events until ctx is cancelled.
func (d *Debouncer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.Stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

// Stop cancels a pending flush. Batches are no longer delivered afterwards.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() { close(d.done) })

	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if i, ok := d.index[event.Path]; ok {
		prev := d.pending[i]
		if !(prev.Kind.Structural() && event.Kind == EventChange) {
			d.pending[i] = event
		}
	} else {
		d.index[event.Path] = len(d.pending)
		d.pending = append(d.pending, event)
	}

	// Reset timer
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.pending) == 0 {
		d.mutex.Unlock()
		return
	}
	events := d.pending
	d.pending = nil
	d.index = make(map[string]int)
	d.mutex.Unlock()

	select {
	case d.output <- events:
	case <-d.done:
	}
}
