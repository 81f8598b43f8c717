package peripheral

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type driverState int

const (
	driverIdle driverState = iota
	driverRegistered
	driverReleased
)

// ButtonDriver is one input line reporting a key. It goes idle -> registered
// -> released, and is never re-armed once released.
type ButtonDriver struct {
	pin      string
	key      Key
	polarity Polarity
	line     InputLine

	state driverState
	disp  *Dispatcher

	pressed bool // owned by the dispatcher
}

// NewButtonDriver opens pin as an input with the pull its polarity needs.
func NewButtonDriver(backend Backend, pin string, polarity Polarity, key Key) (*ButtonDriver, error) {
	line, err := backend.OpenInput(pin, polarity.pull())
	if err != nil {
		return nil, errors.Wrapf(err, "open input %s", pin)
	}
	return &ButtonDriver{pin: pin, key: key, polarity: polarity, line: line}, nil
}

func (b *ButtonDriver) Pin() string { return b.pin }
func (b *ButtonDriver) Key() Key    { return b.key }

// Register hands the driver to d, which starts reporting its edges.
func (b *ButtonDriver) Register(d *Dispatcher) error {
	switch b.state {
	case driverRegistered:
		return errors.Errorf("button %s already registered", b.pin)
	case driverReleased:
		return errors.Wrapf(ErrReleased, "button %s", b.pin)
	}
	if err := d.Register(b); err != nil {
		return err
	}
	b.disp = d
	b.state = driverRegistered
	return nil
}

// Unregister takes the driver out of its dispatcher. Unregistering a driver
// that is not registered does nothing.
func (b *ButtonDriver) Unregister() error {
	if b.state != driverRegistered {
		return nil
	}
	err := b.disp.Unregister(b)
	b.disp = nil
	b.state = driverIdle
	return err
}

// Close unregisters the driver if needed and closes the line.
func (b *ButtonDriver) Close() error {
	if b.state == driverReleased {
		return nil
	}
	err := b.Unregister()
	b.state = driverReleased
	return multierr.Append(err, b.line.Close())
}

// ButtonRegistry owns the button drivers of a pin table.
type ButtonRegistry struct {
	mu      sync.Mutex
	drivers []*ButtonDriver
	logger  Logger
	closed  bool
}

// NewButtonRegistry opens and registers a driver per binding. If any of them
// fails, the ones already opened are released and the error names the pin.
func NewButtonRegistry(backend Backend, disp *Dispatcher, bindings []Binding, logger Logger) (*ButtonRegistry, error) {
	r := &ButtonRegistry{logger: orDefault(logger)}

	for _, bind := range bindings {
		drv, err := NewButtonDriver(backend, bind.ButtonPin, bind.Polarity, bind.Key)
		if err != nil {
			r.Close()
			return nil, errors.Wrapf(err, "button %s", bind.Key)
		}
		r.drivers = append(r.drivers, drv)

		if err := drv.Register(disp); err != nil {
			r.Close()
			return nil, errors.Wrapf(err, "button %s", bind.Key)
		}
		r.logger.Printf("registered button %s on %s", bind.Key, bind.ButtonPin)
	}

	return r, nil
}

// Drivers returns the registry's drivers in binding order.
func (r *ButtonRegistry) Drivers() []*ButtonDriver {
	return append([]*ButtonDriver(nil), r.drivers...)
}

// Close unregisters every driver and then closes every line. Every step is
// tried even if an earlier one fails; a second Close does nothing.
func (r *ButtonRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	for _, d := range r.drivers {
		if e := d.Unregister(); e != nil {
			r.logger.Printf("unregister %s: %v", d.pin, e)
			err = multierr.Append(err, e)
		}
	}
	for _, d := range r.drivers {
		if e := d.Close(); e != nil {
			r.logger.Printf("close %s: %v", d.pin, e)
			err = multierr.Append(err, e)
		}
	}
	return err
}
