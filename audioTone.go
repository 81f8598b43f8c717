//go:build !noaudio
// +build !noaudio

package main

import (
	"fmt"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"dscheirer.com/rainbowpanel/peripheral"
)

const sampleRate = 44100

// audioTone plays the buzzer through the default sound card
type audioTone struct {
	*portaudio.Stream
	kb  *keyBackend
	pin string

	mu     sync.Mutex
	step   float64 // phase advance per sample
	phase  float64
	level  float64
	closed bool
}

func newSimTone(kb *keyBackend, pin string) (peripheral.ToneGenerator, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "portaudio init")
	}

	at := &audioTone{kb: kb, pin: pin}
	var err error
	at.Stream, err = portaudio.OpenDefaultStream(0, 2, sampleRate, 0, at.processAudio)
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrap(err, "portaudio stream")
	}
	if err := at.Start(); err != nil {
		at.Stream.Close()
		portaudio.Terminate()
		return nil, errors.Wrap(err, "portaudio start")
	}
	kb.showTone("off")
	return at, nil
}

func (at *audioTone) processAudio(out [][]float32) {
	at.mu.Lock()
	defer at.mu.Unlock()
	for i := range out[0] {
		val := float32(math.Sin(2*math.Pi*at.phase) * at.level)
		_, at.phase = math.Modf(at.phase + at.step)
		out[0][i] = val // L
		out[1][i] = val // R
	}
}

func (at *audioTone) Play(hz float64) error {
	at.mu.Lock()
	if at.closed {
		at.mu.Unlock()
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", at.pin)
	}
	at.step = hz / sampleRate
	at.level = 0.5
	at.mu.Unlock()

	at.kb.showTone(fmt.Sprintf("%.1fHz", hz))
	return nil
}

func (at *audioTone) Stop() error {
	at.mu.Lock()
	if at.closed {
		at.mu.Unlock()
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", at.pin)
	}
	at.level = 0
	at.mu.Unlock()

	at.kb.showTone("off")
	return nil
}

func (at *audioTone) Close() error {
	at.mu.Lock()
	if at.closed {
		at.mu.Unlock()
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", at.pin)
	}
	at.closed = true
	at.level = 0
	at.mu.Unlock()

	err := at.Stream.Stop()
	if e := at.Stream.Close(); err == nil {
		err = e
	}
	portaudio.Terminate()
	at.kb.showTone("")
	if e := at.kb.release(at.pin); err == nil {
		err = e
	}
	return err
}
