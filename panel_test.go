package main

import (
	"errors"
	"io/ioutil"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"gotest.tools/assert"
	"periph.io/x/conn/v3/gpio"

	"dscheirer.com/rainbowpanel/peripheral"
)

func TestMain(m *testing.M) {
	// keep the worker chatter out of test output
	log.SetOutput(ioutil.Discard)
	os.Exit(m.Run())
}

func testRuntime() (runtimeConfig, clockwork.FakeClock) {
	s := defaultSettings()
	s.settings["logFile"] = ""
	s.settings["statusLed"] = "GPIO5"
	rt := initRuntime(clockwork.NewFakeClock(), s)
	return rt, rt.clock.(clockwork.FakeClock)
}

// waitFor polls cond in real time, the panel loop runs on its own goroutine
func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func runDone(t *testing.T, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
	return nil
}

func TestRunPressAndRelease(t *testing.T) {
	rt, clock := testRuntime()
	mb := peripheral.NewMemoryBackend(nil)
	interval := rt.settings.GetDuration("pollInterval")

	done := make(chan error, 1)
	go func() {
		done <- run(rt, mb, peripheral.DefaultBindings())
	}()
	clock.BlockUntil(1)

	// press A
	mb.SetLevel("GPIO21", gpio.Low)
	clock.Advance(interval)
	waitFor(t, "red led on", func() bool { return mb.Level("GPIO6") == gpio.High })
	waitFor(t, "status led on", func() bool { return mb.Level("GPIO5") == gpio.High })
	waitFor(t, "buzzer on", func() bool {
		playing, _ := mb.Tone(peripheral.DefaultBuzzerPin)
		return playing
	})
	_, hz := mb.Tone(peripheral.DefaultBuzzerPin)
	assert.Equal(t, hz, 100.0)

	// release A
	clock.BlockUntil(1)
	mb.SetLevel("GPIO21", gpio.High)
	clock.Advance(interval)
	waitFor(t, "red led off", func() bool { return mb.Level("GPIO6") == gpio.Low })
	waitFor(t, "status led off", func() bool { return mb.Level("GPIO5") == gpio.Low })
	playing, _ := mb.Tone(peripheral.DefaultBuzzerPin)
	assert.Equal(t, playing, false)

	rt.comms.shutdown()
	assert.NilError(t, runDone(t, done))

	// everything handed back
	for _, b := range peripheral.DefaultBindings() {
		assert.Assert(t, mb.Closed(b.ButtonPin))
		assert.Assert(t, mb.Closed(b.LEDPin))
	}
	assert.Assert(t, mb.Closed(peripheral.DefaultBuzzerPin))
	assert.Assert(t, mb.Closed("GPIO5"))
	assert.Equal(t, mb.Held(), 0)
}

func TestRunStatusMirrorsAnyButton(t *testing.T) {
	rt, clock := testRuntime()
	mb := peripheral.NewMemoryBackend(nil)
	interval := rt.settings.GetDuration("pollInterval")

	done := make(chan error, 1)
	go func() {
		done <- run(rt, mb, peripheral.DefaultBindings())
	}()
	clock.BlockUntil(1)

	mb.SetLevel("GPIO21", gpio.Low)
	mb.SetLevel("GPIO20", gpio.Low)
	clock.Advance(interval)
	waitFor(t, "both leds on", func() bool {
		return mb.Level("GPIO6") == gpio.High && mb.Level("GPIO19") == gpio.High
	})

	// letting go of A keeps the status led lit for B, the buzzer stops anyway
	clock.BlockUntil(1)
	mb.SetLevel("GPIO21", gpio.High)
	clock.Advance(interval)
	waitFor(t, "buzzer off", func() bool {
		playing, _ := mb.Tone(peripheral.DefaultBuzzerPin)
		return !playing
	})
	assert.Equal(t, mb.Level("GPIO6"), gpio.Low)
	assert.Equal(t, mb.Level("GPIO19"), gpio.High)
	assert.Equal(t, mb.Level("GPIO5"), gpio.High)

	rt.comms.shutdown()
	assert.NilError(t, runDone(t, done))
	assert.Equal(t, mb.Held(), 0)
}

func TestRunStartupFailureReleasesAll(t *testing.T) {
	rt, _ := testRuntime()
	mb := peripheral.NewMemoryBackend(nil)
	mb.FailOpen(peripheral.DefaultBuzzerPin, errors.New("no pwm here"))

	err := run(rt, mb, peripheral.DefaultBindings())
	assert.ErrorContains(t, err, "no pwm here")
	assert.ErrorContains(t, err, peripheral.DefaultBuzzerPin)

	for _, b := range peripheral.DefaultBindings() {
		assert.Assert(t, mb.Closed(b.ButtonPin))
		assert.Assert(t, mb.Closed(b.LEDPin))
	}
	assert.Equal(t, mb.Held(), 0)
}

func TestRunStatusLedClash(t *testing.T) {
	rt, _ := testRuntime()
	rt.settings.settings["statusLed"] = "GPIO6"
	mb := peripheral.NewMemoryBackend(nil)

	err := run(rt, mb, peripheral.DefaultBindings())
	assert.Assert(t, errors.Is(err, peripheral.ErrPinInUse))
	assert.Equal(t, mb.Held(), 0)
}

func TestRunPanelUnknownKey(t *testing.T) {
	rt, _ := testRuntime()
	mb := peripheral.NewMemoryBackend(nil)
	out, err := peripheral.NewOutputController(mb, peripheral.DefaultBindings(), peripheral.DefaultBuzzerPin, nil)
	assert.NilError(t, err)
	defer out.Close()

	events := make(chan peripheral.Event, 2)
	rt.comms.events = events
	events <- peripheral.Event{Key: peripheral.Key(42), Pressed: true}
	close(events)

	// returns once the channel is drained and closed
	runPanel(rt, out, nil)

	assert.Equal(t, mb.Plays(peripheral.DefaultBuzzerPin), 0)
	for _, b := range peripheral.DefaultBindings() {
		assert.Equal(t, mb.Level(b.LEDPin), gpio.Low)
	}
}

func TestShutdownTwice(t *testing.T) {
	rt, _ := testRuntime()
	rt.comms.shutdown()
	rt.comms.shutdown()
	_, ok := <-rt.comms.quit
	assert.Equal(t, ok, false)
}

func TestListPins(t *testing.T) {
	rt, _ := testRuntime()
	mb := peripheral.NewMemoryBackend(nil)
	_, err := mb.OpenOutput("GPIO6", gpio.Low)
	assert.NilError(t, err)

	// just needs to not blow up for either kind of backend
	listPins(rt, mb)
	listPins(rt, struct{ peripheral.Backend }{mb})
}
