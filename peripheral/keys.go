package peripheral

import "fmt"

// Key is a logical key identifier, decoupling the wiring from what a button means.
type Key int

const (
	KeyA Key = iota + 1
	KeyB
	KeyC
)

func (k Key) String() string {
	switch k {
	case KeyA:
		return "A"
	case KeyB:
		return "B"
	case KeyC:
		return "C"
	default:
		return fmt.Sprintf("Key(%d)", int(k))
	}
}

// FallbackToneHz is played for a binding without a tone
const FallbackToneHz = 1000.0

// Binding is one row of the pin table: a button, the LED it lights and the
// tone it plays.
type Binding struct {
	Key        Key
	ButtonPin  string
	Polarity   Polarity
	LEDPin     string
	LEDInitial bool
	ToneHz     float64
}

// tone returns the binding's frequency, or the fallback when unset
func (b Binding) tone() float64 {
	if b.ToneHz <= 0 {
		return FallbackToneHz
	}
	return b.ToneHz
}

// DefaultBuzzerPin is the Rainbow HAT piezo, on a PWM capable line
const DefaultBuzzerPin = "GPIO13"

// Rainbow HAT wiring on a Raspberry Pi header
var defaultBindings = [...]Binding{
	{Key: KeyA, ButtonPin: "GPIO21", Polarity: ActiveLow, LEDPin: "GPIO6", ToneHz: 100.0},
	{Key: KeyB, ButtonPin: "GPIO20", Polarity: ActiveLow, LEDPin: "GPIO19", ToneHz: 440.0},
	{Key: KeyC, ButtonPin: "GPIO16", Polarity: ActiveLow, LEDPin: "GPIO26", ToneHz: 770.0},
}

// DefaultBindings returns a copy of the built-in pin table.
func DefaultBindings() []Binding {
	ret := make([]Binding, len(defaultBindings))
	copy(ret, defaultBindings[:])
	return ret
}
