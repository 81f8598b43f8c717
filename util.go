// utility functions
package main

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"dscheirer.com/rainbowpanel/peripheral"
)

type commChannels struct {
	quit     chan struct{}
	quitOnce *sync.Once
	events   <-chan peripheral.Event
}

// shutdown closes quit; safe to call from any goroutine, any number of times
func (c commChannels) shutdown() {
	c.quitOnce.Do(func() { close(c.quit) })
}

type runtimeConfig struct {
	comms    commChannels
	clock    clockwork.Clock
	settings *settings
	logger   peripheral.Logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func initCommChannels() commChannels {
	return commChannels{
		quit:     make(chan struct{}),
		quitOnce: &sync.Once{},
	}
}

func initRuntime(clock clockwork.Clock, s *settings) runtimeConfig {
	return runtimeConfig{
		clock:    clock,
		settings: s,
		logger:   &threadLogger{name: "Panel"},
		comms:    initCommChannels()}
}
