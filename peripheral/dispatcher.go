package peripheral

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

// Event is a press or release of a registered button.
type Event struct {
	Key     Key
	Pin     string
	Pressed bool
	At      time.Time
}

// Dispatcher samples every registered input line on a fixed interval and
// publishes each change of pressed state as an Event.
//
// Lines are only read while the dispatcher lock is held, so once Unregister
// returns the driver's line is never touched again and can be closed.
type Dispatcher struct {
	clock    clockwork.Clock
	interval time.Duration
	logger   Logger

	mu      sync.Mutex
	drivers []*ButtonDriver // in registration order

	events  chan Event
	quit    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

const eventBuffer = 16

// NewDispatcher makes a stopped dispatcher polling every interval on clock.
func NewDispatcher(clock clockwork.Clock, interval time.Duration, logger Logger) *Dispatcher {
	return &Dispatcher{
		clock:    clock,
		interval: interval,
		logger:   orDefault(logger),
		events:   make(chan Event, eventBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Events is closed once the dispatcher has stopped.
func (d *Dispatcher) Events() <-chan Event {
	return d.events
}

// Register adds a driver to the poll set. A second driver on the same pin is
// rejected with ErrPinInUse.
func (d *Dispatcher) Register(b *ButtonDriver) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return errors.Wrapf(ErrReleased, "register %s", b.pin)
	}
	for _, cur := range d.drivers {
		if cur.pin == b.pin {
			return errors.Wrapf(ErrPinInUse, "register %s", b.pin)
		}
	}
	d.drivers = append(d.drivers, b)
	return nil
}

// Unregister removes a driver from the poll set.
func (d *Dispatcher) Unregister(b *ButtonDriver) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, cur := range d.drivers {
		if cur == b {
			d.drivers = append(d.drivers[:i], d.drivers[i+1:]...)
			return nil
		}
	}
	return errors.Errorf("unregister %s: not registered", b.pin)
}

// Registered returns how many drivers are in the poll set.
func (d *Dispatcher) Registered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.drivers)
}

// Start launches the poll goroutine. Calling it again does nothing.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	go d.run()
}

// Stop ends the poll goroutine, waits for it and closes Events.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	started := d.started
	close(d.quit)
	d.mu.Unlock()

	if started {
		<-d.done
	}
	close(d.events)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	defer d.logger.Println("exiting dispatcher")

	for {
		for _, ev := range d.poll() {
			select {
			case d.events <- ev:
			case <-d.quit:
				return
			}
		}

		select {
		case <-d.quit:
			return
		case <-d.clock.After(d.interval):
		}
	}
}

// poll reads every line once and returns the transitions seen
func (d *Dispatcher) poll() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	var ret []Event
	for _, b := range d.drivers {
		pressed := b.polarity.pressed(b.line.Read())
		if pressed == b.pressed {
			continue
		}
		b.pressed = pressed
		ret = append(ret, Event{Key: b.key, Pin: b.pin, Pressed: pressed, At: now})
		d.logger.Printf("button %s on %s pressed=%v", b.key, b.pin, pressed)
	}
	return ret
}
