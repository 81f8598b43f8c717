package peripheral

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type ledOutput struct {
	pin  string
	line OutputLine
	tone float64
}

// OutputController lights a key's LED and plays its tone on a shared buzzer.
type OutputController struct {
	mu     sync.Mutex
	leds   map[Key]*ledOutput
	order  []Key // close order
	buzzer ToneGenerator
	logger Logger
	closed bool
}

// NewOutputController opens an LED per binding and the buzzer on buzzerPin.
// LED pins and tones come from the same rows, so every lit key has a tone.
func NewOutputController(backend Backend, bindings []Binding, buzzerPin string, logger Logger) (*OutputController, error) {
	oc := &OutputController{
		leds:   make(map[Key]*ledOutput, len(bindings)),
		logger: orDefault(logger),
	}

	for _, bind := range bindings {
		if _, ok := oc.leds[bind.Key]; ok {
			oc.Close()
			return nil, errors.Errorf("led %s: key bound twice", bind.Key)
		}
		line, err := backend.OpenOutput(bind.LEDPin, level(bind.LEDInitial))
		if err != nil {
			oc.Close()
			return nil, errors.Wrapf(err, "led %s on %s", bind.Key, bind.LEDPin)
		}
		oc.leds[bind.Key] = &ledOutput{pin: bind.LEDPin, line: line, tone: bind.tone()}
		oc.order = append(oc.order, bind.Key)
	}

	buzzer, err := backend.OpenTone(buzzerPin)
	if err != nil {
		oc.Close()
		return nil, errors.Wrapf(err, "buzzer on %s", buzzerPin)
	}
	oc.buzzer = buzzer

	return oc, nil
}

// ProcessInput reflects a key press or release onto the LED and buzzer. It
// returns false, touching nothing, for keys it does not drive.
//
// A release stops the buzzer whichever key started it, so with two keys held
// releasing either one silences both.
func (oc *OutputController) ProcessInput(key Key, pressed bool) bool {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	if oc.closed {
		return false
	}
	led, ok := oc.leds[key]
	if !ok {
		return false
	}

	if err := led.line.Out(level(pressed)); err != nil {
		oc.logger.Printf("led %s on %s: %v", key, led.pin, err)
	}

	if pressed {
		if err := oc.buzzer.Play(led.tone); err != nil {
			oc.logger.Printf("buzzer play %.1fHz: %v", led.tone, err)
		}
	} else {
		if err := oc.buzzer.Stop(); err != nil {
			oc.logger.Printf("buzzer stop: %v", err)
		}
	}

	return true
}

// Tone returns the frequency played for key.
func (oc *OutputController) Tone(key Key) (float64, bool) {
	led, ok := oc.leds[key]
	if !ok {
		return 0, false
	}
	return led.tone, true
}

// Close releases every LED and then the buzzer, carrying on past failures.
// A second Close does nothing.
func (oc *OutputController) Close() error {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	if oc.closed {
		return nil
	}
	oc.closed = true

	var err error
	for _, k := range oc.order {
		led := oc.leds[k]
		if e := led.line.Close(); e != nil {
			oc.logger.Printf("close led %s on %s: %v", k, led.pin, e)
			err = multierr.Append(err, e)
		}
	}
	if oc.buzzer != nil {
		if e := oc.buzzer.Close(); e != nil {
			oc.logger.Printf("close buzzer: %v", e)
			err = multierr.Append(err, e)
		}
	}
	return err
}
