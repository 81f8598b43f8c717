package peripheral

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
)

// MemoryBackend keeps every pin in memory. It stands in for hardware in tests
// and in the "log" mode of the panel.
type MemoryBackend struct {
	mu sync.Mutex

	pins map[string]*memPin // every pin ever opened, by name
	held map[string]bool    // pins currently claimed

	failOpen  map[string]error
	failClose map[string]error

	audit      []string
	logger     Logger
	disableLog bool
}

type memPin struct {
	name   string
	level  gpio.Level
	pull   gpio.Pull
	closed bool
	closes int

	// tone state
	playing bool
	hz      float64
	plays   int
}

// NewMemoryBackend returns an empty backend; a nil logger means no logging.
func NewMemoryBackend(logger Logger) *MemoryBackend {
	return &MemoryBackend{
		pins:       make(map[string]*memPin),
		held:       make(map[string]bool),
		failOpen:   make(map[string]error),
		failClose:  make(map[string]error),
		logger:     logger,
		disableLog: logger == nil,
	}
}

func (mb *MemoryBackend) logf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	mb.audit = append(mb.audit, msg)
	if !mb.disableLog {
		mb.logger.Println(msg)
	}
}

func (mb *MemoryBackend) claim(pin string) (*memPin, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := mb.failOpen[pin]; err != nil {
		return nil, err
	}
	if mb.held[pin] {
		return nil, errors.Wrapf(ErrPinInUse, "pin %s", pin)
	}
	p := &memPin{name: pin}
	mb.pins[pin] = p
	mb.held[pin] = true
	return p, nil
}

func (mb *MemoryBackend) release(p *memPin) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if p.closed {
		return errors.Wrapf(ErrReleased, "pin %s", p.name)
	}
	p.closes++
	if err := mb.failClose[p.name]; err != nil {
		return err
	}
	p.closed = true
	p.playing = false
	delete(mb.held, p.name)
	mb.logf("Closed %s", p.name)
	return nil
}

// OpenInput claims pin as an input resting at the level its pull gives it.
func (mb *MemoryBackend) OpenInput(pin string, pull gpio.Pull) (InputLine, error) {
	p, err := mb.claim(pin)
	if err != nil {
		return nil, err
	}
	mb.mu.Lock()
	p.pull = pull
	p.level = pull == gpio.PullUp
	mb.mu.Unlock()
	return &memInput{mb: mb, p: p}, nil
}

// OpenOutput claims pin as an output set to initial.
func (mb *MemoryBackend) OpenOutput(pin string, initial gpio.Level) (OutputLine, error) {
	p, err := mb.claim(pin)
	if err != nil {
		return nil, err
	}
	mb.mu.Lock()
	p.level = initial
	mb.mu.Unlock()
	return &memOutput{mb: mb, p: p}, nil
}

// OpenTone claims pin as a stopped tone generator.
func (mb *MemoryBackend) OpenTone(pin string) (ToneGenerator, error) {
	p, err := mb.claim(pin)
	if err != nil {
		return nil, err
	}
	return &memTone{mb: mb, p: p}, nil
}

// FailOpen makes the next opens of pin fail with err; nil clears it.
func (mb *MemoryBackend) FailOpen(pin string, err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if err == nil {
		delete(mb.failOpen, pin)
		return
	}
	mb.failOpen[pin] = err
}

// FailClose makes closing pin fail with err; nil clears it.
func (mb *MemoryBackend) FailClose(pin string, err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if err == nil {
		delete(mb.failClose, pin)
		return
	}
	mb.failClose[pin] = err
}

// SetLevel drives an input pin, as a button would.
func (mb *MemoryBackend) SetLevel(pin string, l gpio.Level) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if p, ok := mb.pins[pin]; ok {
		p.level = l
	}
}

// Level returns the last level of pin.
func (mb *MemoryBackend) Level(pin string) gpio.Level {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if p, ok := mb.pins[pin]; ok {
		return p.level
	}
	return gpio.Low
}

// Tone reports whether the tone generator on pin is playing, and at what frequency.
func (mb *MemoryBackend) Tone(pin string) (bool, float64) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if p, ok := mb.pins[pin]; ok {
		return p.playing, p.hz
	}
	return false, 0
}

// Plays counts how many times the tone on pin was started.
func (mb *MemoryBackend) Plays(pin string) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if p, ok := mb.pins[pin]; ok {
		return p.plays
	}
	return 0
}

// Opened reports whether pin was ever opened.
func (mb *MemoryBackend) Opened(pin string) bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	_, ok := mb.pins[pin]
	return ok
}

// Closed reports whether pin was opened and then released.
func (mb *MemoryBackend) Closed(pin string) bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	p, ok := mb.pins[pin]
	return ok && p.closed
}

// CloseCalls counts close attempts on pin, including failed ones.
func (mb *MemoryBackend) CloseCalls(pin string) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if p, ok := mb.pins[pin]; ok {
		return p.closes
	}
	return 0
}

// Held returns how many pins are currently claimed.
func (mb *MemoryBackend) Held() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.held)
}

// Audit returns a copy of every write made so far.
func (mb *MemoryBackend) Audit() []string {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]string(nil), mb.audit...)
}

// Pins lists every pin ever opened.
func (mb *MemoryBackend) Pins() []string {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	ret := make([]string, 0, len(mb.pins))
	for k := range mb.pins {
		ret = append(ret, k)
	}
	return ret
}

type memInput struct {
	mb *MemoryBackend
	p  *memPin
}

func (mi *memInput) Read() gpio.Level {
	mi.mb.mu.Lock()
	defer mi.mb.mu.Unlock()
	return mi.p.level
}

func (mi *memInput) Close() error { return mi.mb.release(mi.p) }

type memOutput struct {
	mb *MemoryBackend
	p  *memPin
}

func (mo *memOutput) Out(l gpio.Level) error {
	mo.mb.mu.Lock()
	defer mo.mb.mu.Unlock()
	if mo.p.closed {
		return errors.Wrapf(ErrReleased, "pin %s", mo.p.name)
	}
	mo.p.level = l
	mo.mb.logf("Set %s to %v", mo.p.name, l)
	return nil
}

func (mo *memOutput) Close() error { return mo.mb.release(mo.p) }

type memTone struct {
	mb *MemoryBackend
	p  *memPin
}

func (mt *memTone) Play(hz float64) error {
	mt.mb.mu.Lock()
	defer mt.mb.mu.Unlock()
	if mt.p.closed {
		return errors.Wrapf(ErrReleased, "pin %s", mt.p.name)
	}
	mt.p.playing = true
	mt.p.hz = hz
	mt.p.plays++
	mt.mb.logf("Play %s at %.1fHz", mt.p.name, hz)
	return nil
}

func (mt *memTone) Stop() error {
	mt.mb.mu.Lock()
	defer mt.mb.mu.Unlock()
	if mt.p.closed {
		return errors.Wrapf(ErrReleased, "pin %s", mt.p.name)
	}
	mt.p.playing = false
	mt.mb.logf("Stop %s", mt.p.name)
	return nil
}

func (mt *memTone) Close() error { return mt.mb.release(mt.p) }
