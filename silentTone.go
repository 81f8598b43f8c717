//go:build noaudio
// +build noaudio

package main

import (
	"fmt"

	"github.com/pkg/errors"

	"dscheirer.com/rainbowpanel/peripheral"
)

// silentTone only shows the note on screen
type silentTone struct {
	kb     *keyBackend
	pin    string
	closed bool
}

func newSimTone(kb *keyBackend, pin string) (peripheral.ToneGenerator, error) {
	kb.showTone("off (no audio)")
	return &silentTone{kb: kb, pin: pin}, nil
}

func (st *silentTone) Play(hz float64) error {
	if st.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", st.pin)
	}
	st.kb.showTone(fmt.Sprintf("%.1fHz (no audio)", hz))
	return nil
}

func (st *silentTone) Stop() error {
	if st.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", st.pin)
	}
	st.kb.showTone("off (no audio)")
	return nil
}

func (st *silentTone) Close() error {
	if st.closed {
		return errors.Wrapf(peripheral.ErrReleased, "pin %s", st.pin)
	}
	st.closed = true
	st.kb.showTone("")
	return st.kb.release(st.pin)
}
