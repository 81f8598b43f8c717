package peripheral

import (
	"io"
	"log"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
)

var (
	// ErrPinInUse is returned when a pin is claimed twice
	ErrPinInUse = errors.New("pin already in use")
	// ErrUnknownPin is returned when the backend has no such pin
	ErrUnknownPin = errors.New("unknown pin")
	// ErrReleased is returned when a handle is used after it was closed
	ErrReleased = errors.New("peripheral released")
)

// Polarity says which logic level means "pressed".
type Polarity int

const (
	ActiveLow  Polarity = iota // GND => button press, needs a pull-up
	ActiveHigh                 // +V => button press, needs a pull-down
)

func (p Polarity) pressed(l gpio.Level) bool {
	if p == ActiveLow {
		return l == gpio.Low
	}
	return l == gpio.High
}

func (p Polarity) pull() gpio.Pull {
	if p == ActiveLow {
		return gpio.PullUp
	}
	return gpio.PullDown
}

// InputLine is an open digital input.
type InputLine interface {
	io.Closer
	Read() gpio.Level
}

// OutputLine is an open digital output.
type OutputLine interface {
	io.Closer
	Out(l gpio.Level) error
}

// ToneGenerator drives a buzzer at a given frequency.
type ToneGenerator interface {
	io.Closer
	Play(hz float64) error
	Stop() error
}

// Backend opens hardware lines by name. Each pin can only be held once.
type Backend interface {
	OpenInput(pin string, pull gpio.Pull) (InputLine, error)
	OpenOutput(pin string, initial gpio.Level) (OutputLine, error)
	OpenTone(pin string) (ToneGenerator, error)
}

// Logger is the subset of *log.Logger used here
type Logger interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

func orDefault(l Logger) Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

func level(on bool) gpio.Level {
	return gpio.Level(on)
}
