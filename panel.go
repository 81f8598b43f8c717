package main

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"

	"dscheirer.com/rainbowpanel/peripheral"
)

// statusMirror keeps one LED lit while any button is held. Only the panel
// loop writes to it, and it is closed after that loop has returned.
type statusMirror struct {
	pin  string
	line peripheral.OutputLine
	held map[peripheral.Key]bool
}

func newStatusMirror(backend peripheral.Backend, pin string) (*statusMirror, error) {
	line, err := backend.OpenOutput(pin, gpio.Low)
	if err != nil {
		return nil, errors.Wrapf(err, "status led on %s", pin)
	}
	return &statusMirror{pin: pin, line: line, held: make(map[peripheral.Key]bool)}, nil
}

func (sm *statusMirror) update(ev peripheral.Event) error {
	if ev.Pressed {
		sm.held[ev.Key] = true
	} else {
		delete(sm.held, ev.Key)
	}
	return sm.line.Out(gpio.Level(len(sm.held) > 0))
}

func (sm *statusMirror) Close() error {
	return sm.line.Close()
}

// runPanel feeds button events to the outputs until quit or the dispatcher stops
func runPanel(rt runtimeConfig, out *peripheral.OutputController, status *statusMirror) {
	defer func() {
		rt.logger.Println("exiting runPanel")
	}()

	comms := rt.comms
	for {
		select {
		case <-comms.quit:
			rt.logger.Println("quit from runPanel")
			return
		case ev, ok := <-comms.events:
			if !ok {
				rt.logger.Println("event channel closed")
				return
			}
			if !out.ProcessInput(ev.Key, ev.Pressed) {
				rt.logger.Printf("Unhandled button %s", ev.Key)
			}
			if status != nil {
				if err := status.update(ev); err != nil {
					rt.logger.Printf("status led: %v", err)
				}
			}
		}
	}
}
