package main

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio"
	"periph.io/x/conn/v3/gpio"

	"dscheirer.com/rainbowpanel/peripheral"
)

// rpioBackend drives the BCM pins through /dev/gpiomem with go-rpio
type rpioBackend struct {
	mu   sync.Mutex
	held map[int]bool
}

// the pwm clock bottoms out around 4.7kHz, 64 steps per cycle keeps a 100Hz
// note above that
const rpioPwmCycle = 64

func newRpioBackend() (*rpioBackend, error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "rpio open")
	}
	return &rpioBackend{held: make(map[int]bool)}, nil
}

func (rb *rpioBackend) Close() error {
	return rpio.Close()
}

// pinNumber accepts "GPIO17", "BCM17" or "17"
func pinNumber(name string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "GPIO")
	s = strings.TrimPrefix(s, "BCM")
	s = strings.TrimPrefix(s, "_")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 53 {
		return 0, errors.Wrapf(peripheral.ErrUnknownPin, "pin %s", name)
	}
	return n, nil
}

func (rb *rpioBackend) claim(name string) (rpio.Pin, error) {
	n, err := pinNumber(name)
	if err != nil {
		return 0, err
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.held[n] {
		return 0, errors.Wrapf(peripheral.ErrPinInUse, "pin %s", name)
	}
	rb.held[n] = true
	return rpio.Pin(n), nil
}

func (rb *rpioBackend) release(pin rpio.Pin) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	delete(rb.held, int(pin))
}

func (rb *rpioBackend) OpenInput(name string, pull gpio.Pull) (peripheral.InputLine, error) {
	pin, err := rb.claim(name)
	if err != nil {
		return nil, err
	}

	pin.Input()
	switch pull {
	case gpio.PullUp:
		pin.PullUp() // GND => button press
	case gpio.PullDown:
		pin.PullDown() // +V -> button press
	default:
		pin.PullOff()
	}
	return &rpioPin{rb: rb, pin: pin, name: name}, nil
}

func (rb *rpioBackend) OpenOutput(name string, initial gpio.Level) (peripheral.OutputLine, error) {
	pin, err := rb.claim(name)
	if err != nil {
		return nil, err
	}
	pin.Output()
	pin.Write(rpioState(initial))
	return &rpioPin{rb: rb, pin: pin, name: name}, nil
}

func (rb *rpioBackend) OpenTone(name string) (peripheral.ToneGenerator, error) {
	pin, err := rb.claim(name)
	if err != nil {
		return nil, err
	}
	pin.Pwm()
	pin.DutyCycle(0, rpioPwmCycle)
	return &rpioTone{rpioPin{rb: rb, pin: pin, name: name}}, nil
}

func rpioState(l gpio.Level) rpio.State {
	if l == gpio.High {
		return rpio.High
	}
	return rpio.Low
}

type rpioPin struct {
	rb     *rpioBackend
	pin    rpio.Pin
	name   string
	mu     sync.Mutex
	closed bool
}

func (rp *rpioPin) Read() gpio.Level {
	return gpio.Level(rp.pin.Read() == rpio.High)
}

func (rp *rpioPin) Out(l gpio.Level) error {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", rp.name)
	}
	rp.pin.Write(rpioState(l))
	return nil
}

// Close leaves the pin as a floating input, the power-on state
func (rp *rpioPin) Close() error {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", rp.name)
	}
	rp.closed = true
	rp.pin.Input()
	rp.pin.PullOff()
	rp.rb.release(rp.pin)
	return nil
}

type rpioTone struct {
	rpioPin
}

func (tone *rpioTone) Play(hz float64) error {
	tone.mu.Lock()
	defer tone.mu.Unlock()
	if tone.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", tone.name)
	}
	if hz <= 0 {
		return errors.Errorf("pin %s: bad frequency %v", tone.name, hz)
	}
	tone.pin.Freq(int(hz * rpioPwmCycle))
	tone.pin.DutyCycle(rpioPwmCycle/2, rpioPwmCycle)
	return nil
}

func (tone *rpioTone) Stop() error {
	tone.mu.Lock()
	defer tone.mu.Unlock()
	if tone.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", tone.name)
	}
	tone.pin.DutyCycle(0, rpioPwmCycle)
	return nil
}

func (tone *rpioTone) Close() error {
	tone.mu.Lock()
	if !tone.closed {
		tone.pin.DutyCycle(0, rpioPwmCycle)
	}
	tone.mu.Unlock()
	return tone.rpioPin.Close()
}
