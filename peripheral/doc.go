// Package peripheral owns the buttons, LEDs and buzzer of the panel.
//
// A ButtonRegistry opens one input per Binding and registers it with a
// Dispatcher, which polls the lines and publishes press/release Events on a
// channel. An OutputController opens the LEDs and the buzzer and turns key
// events into LED levels and tones. Both release their lines on Close, and
// the registry always unregisters a line before closing it.
//
// Hardware is reached through a Backend; MemoryBackend keeps pins in memory.
package peripheral
