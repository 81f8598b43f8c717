package main

import (
	"fmt"
	"strings"
	"sync"

	// keyboard for sim mode
	"github.com/nsf/termbox-go"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"

	"dscheirer.com/rainbowpanel/peripheral"
)

// keyBackend simulates the panel in a terminal: a button's letter toggles it
// down or up, LEDs and the buzzer are drawn on screen.
type keyBackend struct {
	mu     sync.Mutex
	keys   map[rune]string // letter -> button pin
	labels map[string]string
	levels map[string]gpio.Level // button pins
	rest   map[string]gpio.Level // released level of each button pin
	leds   map[string]gpio.Level
	order  []string // led pins, in draw order
	held   map[string]bool
	tone   string

	onQuit func()
	done   chan struct{}
}

var ledColors = []termbox.Attribute{termbox.ColorRed, termbox.ColorGreen, termbox.ColorBlue}

func newKeyBackend(bindings []peripheral.Binding, onQuit func()) (*keyBackend, error) {
	kb := &keyBackend{
		keys:   make(map[rune]string),
		labels: make(map[string]string),
		levels: make(map[string]gpio.Level),
		rest:   make(map[string]gpio.Level),
		leds:   make(map[string]gpio.Level),
		held:   make(map[string]bool),
		onQuit: onQuit,
		done:   make(chan struct{}),
	}
	for _, b := range bindings {
		letter := []rune(strings.ToLower(b.Key.String()))[0]
		kb.keys[letter] = b.ButtonPin
		kb.labels[b.ButtonPin] = b.Key.String()
		kb.order = append(kb.order, b.LEDPin)
		kb.labels[b.LEDPin] = b.Key.String()
	}

	if err := termbox.Init(); err != nil {
		return nil, errors.Wrap(err, "termbox init")
	}
	termbox.SetInputMode(termbox.InputEsc)
	kb.draw()

	go kb.pollKeys()
	return kb, nil
}

func (kb *keyBackend) pollKeys() {
	defer close(kb.done)

	for {
		ev := termbox.PollEvent()
		switch ev.Type {
		case termbox.EventKey:
			// add an exit key
			if ev.Key == termbox.KeyCtrlC || ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
				kb.onQuit()
				continue
			}
			kb.toggle(ev.Ch)
		case termbox.EventInterrupt:
			return
		case termbox.EventError:
			kb.onQuit()
			return
		}
	}
}

// toggle flips the button bound to letter, down to up or up to down
func (kb *keyBackend) toggle(letter rune) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	pin, ok := kb.keys[letter]
	if !ok {
		return
	}
	if _, open := kb.levels[pin]; !open {
		return
	}
	kb.levels[pin] = !kb.levels[pin]
	kb.drawLocked()
}

func (kb *keyBackend) claim(pin string) error {
	if kb.held[pin] {
		return errors.Wrapf(peripheral.ErrPinInUse, "pin %s", pin)
	}
	kb.held[pin] = true
	return nil
}

func (kb *keyBackend) release(pin string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if !kb.held[pin] {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", pin)
	}
	delete(kb.held, pin)
	delete(kb.levels, pin)
	kb.drawLocked()
	return nil
}

func (kb *keyBackend) OpenInput(pin string, pull gpio.Pull) (peripheral.InputLine, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if err := kb.claim(pin); err != nil {
		return nil, err
	}
	rest := gpio.Level(pull == gpio.PullUp)
	kb.rest[pin] = rest
	kb.levels[pin] = rest
	kb.drawLocked()
	return &keyInput{kb: kb, pin: pin}, nil
}

func (kb *keyBackend) OpenOutput(pin string, initial gpio.Level) (peripheral.OutputLine, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if err := kb.claim(pin); err != nil {
		return nil, err
	}
	kb.leds[pin] = initial
	if _, ok := kb.labels[pin]; !ok {
		// the status led, or anything else outside the pin table
		kb.order = append(kb.order, pin)
		kb.labels[pin] = pin
	}
	kb.drawLocked()
	return &keyOutput{kb: kb, pin: pin}, nil
}

func (kb *keyBackend) OpenTone(pin string) (peripheral.ToneGenerator, error) {
	kb.mu.Lock()
	err := kb.claim(pin)
	kb.mu.Unlock()
	if err != nil {
		return nil, err
	}
	tg, err := newSimTone(kb, pin)
	if err != nil {
		kb.release(pin)
		return nil, err
	}
	return tg, nil
}

func (kb *keyBackend) setLED(pin string, l gpio.Level) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.leds[pin] = l
	kb.drawLocked()
}

func (kb *keyBackend) showTone(s string) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.tone = s
	kb.drawLocked()
}

func (kb *keyBackend) Pins() []string {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	ret := make([]string, 0, len(kb.keys)+len(kb.order))
	for _, pin := range kb.keys {
		ret = append(ret, pin)
	}
	return append(ret, kb.order...)
}

// Close stops the key reader and gives the terminal back
func (kb *keyBackend) Close() error {
	termbox.Interrupt()
	<-kb.done
	termbox.Close()
	return nil
}

func (kb *keyBackend) draw() {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.drawLocked()
}

func printAt(x, y int, fg termbox.Attribute, s string) int {
	for _, r := range s {
		termbox.SetCell(x, y, r, fg, termbox.ColorDefault)
		x++
	}
	return x
}

func (kb *keyBackend) drawLocked() {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	printAt(0, 0, termbox.ColorDefault, "rainbowpanel: a/b/c toggle a button, q quits")

	x := printAt(0, 2, termbox.ColorDefault, "buttons: ")
	for _, letter := range []rune{'a', 'b', 'c'} {
		pin, ok := kb.keys[letter]
		if !ok {
			continue
		}
		state := "up"
		if lvl, open := kb.levels[pin]; !open {
			state = "--"
		} else if lvl != kb.rest[pin] {
			state = "DOWN"
		}
		x = printAt(x, 2, termbox.ColorDefault, fmt.Sprintf("%s=%-4s ", kb.labels[pin], state))
	}

	x = printAt(0, 3, termbox.ColorDefault, "leds:    ")
	for i, pin := range kb.order {
		color := termbox.ColorWhite
		if i < len(ledColors) {
			color = ledColors[i]
		}
		cell := '○'
		if kb.leds[pin] == gpio.High {
			cell = '●'
		}
		termbox.SetCell(x, 3, cell, color, termbox.ColorDefault)
		x = printAt(x+1, 3, termbox.ColorDefault, " "+kb.labels[pin]+"  ")
	}

	printAt(0, 4, termbox.ColorDefault, "buzzer:  "+kb.tone)
	termbox.Flush()
}

type keyInput struct {
	kb  *keyBackend
	pin string
}

func (ki *keyInput) Read() gpio.Level {
	ki.kb.mu.Lock()
	defer ki.kb.mu.Unlock()
	return ki.kb.levels[ki.pin]
}

func (ki *keyInput) Close() error { return ki.kb.release(ki.pin) }

type keyOutput struct {
	kb     *keyBackend
	pin    string
	closed bool
}

func (ko *keyOutput) Out(l gpio.Level) error {
	if ko.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", ko.pin)
	}
	ko.kb.setLED(ko.pin, l)
	return nil
}

func (ko *keyOutput) Close() error {
	if ko.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", ko.pin)
	}
	ko.closed = true
	ko.kb.setLED(ko.pin, gpio.Low)
	return ko.kb.release(ko.pin)
}
