package main

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"dscheirer.com/rainbowpanel/peripheral"
)

// periphBackend addresses pins by their periph names ("GPIO21")
type periphBackend struct {
	mu   sync.Mutex
	held map[string]bool
}

func newPeriphBackend() (*periphBackend, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	return &periphBackend{held: make(map[string]bool)}, nil
}

func (pb *periphBackend) claim(name string) (gpio.PinIO, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Wrapf(peripheral.ErrUnknownPin, "pin %s", name)
	}
	if pb.held[p.Name()] {
		return nil, errors.Wrapf(peripheral.ErrPinInUse, "pin %s", name)
	}
	pb.held[p.Name()] = true
	return p, nil
}

// release halts the pin and gives it back, even if the halt failed
func (pb *periphBackend) release(p gpio.PinIO) error {
	err := p.Halt()

	pb.mu.Lock()
	delete(pb.held, p.Name())
	pb.mu.Unlock()

	return errors.Wrapf(err, "halt %s", p.Name())
}

func (pb *periphBackend) OpenInput(name string, pull gpio.Pull) (peripheral.InputLine, error) {
	p, err := pb.claim(name)
	if err != nil {
		return nil, err
	}
	// edges are found by polling, so no edge detection on the line
	if err := p.In(pull, gpio.NoEdge); err != nil {
		pb.release(p)
		return nil, errors.Wrapf(err, "input %s", name)
	}
	return &periphPin{pb: pb, p: p}, nil
}

func (pb *periphBackend) OpenOutput(name string, initial gpio.Level) (peripheral.OutputLine, error) {
	p, err := pb.claim(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(initial); err != nil {
		pb.release(p)
		return nil, errors.Wrapf(err, "output %s", name)
	}
	return &periphPin{pb: pb, p: p}, nil
}

func (pb *periphBackend) OpenTone(name string) (peripheral.ToneGenerator, error) {
	p, err := pb.claim(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		pb.release(p)
		return nil, errors.Wrapf(err, "buzzer %s", name)
	}
	return &periphTone{periphPin{pb: pb, p: p}}, nil
}

// Pins lists every GPIO the host knows about
func (pb *periphBackend) Pins() []string {
	all := gpioreg.All()
	ret := make([]string, 0, len(all))
	for _, p := range all {
		ret = append(ret, p.Name())
	}
	return ret
}

type periphPin struct {
	pb     *periphBackend
	p      gpio.PinIO
	mu     sync.Mutex
	closed bool
}

func (pp *periphPin) Read() gpio.Level {
	return pp.p.Read()
}

func (pp *periphPin) Out(l gpio.Level) error {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", pp.p.Name())
	}
	return pp.p.Out(l)
}

func (pp *periphPin) Close() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", pp.p.Name())
	}
	pp.closed = true
	return pp.pb.release(pp.p)
}

// periphTone runs the buzzer pin as a 50% duty PWM at the note's frequency
type periphTone struct {
	periphPin
}

func (pt *periphTone) Play(hz float64) error {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", pt.p.Name())
	}
	f := physic.Frequency(hz * float64(physic.Hertz))
	return errors.Wrapf(pt.p.PWM(gpio.DutyHalf, f), "pwm %s at %s", pt.p.Name(), f)
}

// Stop drops the pin low, which ends the PWM
func (pt *periphTone) Stop() error {
	return pt.Out(gpio.Low)
}

// Close silences the buzzer before handing the pin back; the pin is released
// even if it would not go low.
func (pt *periphTone) Close() error {
	var err error
	pt.mu.Lock()
	if !pt.closed {
		err = errors.Wrapf(pt.p.Out(gpio.Low), "silence %s", pt.p.Name())
	}
	pt.mu.Unlock()
	return multierr.Append(err, pt.periphPin.Close())
}
