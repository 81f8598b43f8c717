package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"dscheirer.com/rainbowpanel/peripheral"
)

// rainbowpanel -config={config file} -backend={periph|rpio|sim|log}

type pinLister interface {
	Pins() []string
}

func openBackend(rt runtimeConfig, bindings []peripheral.Binding) (peripheral.Backend, io.Closer, error) {
	switch name := rt.settings.GetString("backend"); name {
	case "periph":
		pb, err := newPeriphBackend()
		return pb, nopCloser{}, err
	case "rpio":
		rb, err := newRpioBackend()
		return rb, rb, err
	case "sim":
		kb, err := newKeyBackend(bindings, rt.comms.shutdown)
		return kb, kb, err
	case "log":
		return peripheral.NewMemoryBackend(&threadLogger{name: "Pins"}), nopCloser{}, nil
	default:
		return nil, nil, errors.Errorf("unknown backend %q", name)
	}
}

func listPins(rt runtimeConfig, backend peripheral.Backend) {
	pl, ok := backend.(pinLister)
	if !ok {
		rt.logger.Println("backend cannot list its pins")
		return
	}
	pins := pl.Pins()
	sort.Strings(pins)
	rt.logger.Printf("Ports found: %s", strings.Join(pins, ", "))
}

// run builds the panel on backend and blocks until quit. Every exit path,
// failed startup included, goes through the same deferred release.
func run(rt runtimeConfig, backend peripheral.Backend, bindings []peripheral.Binding) error {
	s := rt.settings

	disp := peripheral.NewDispatcher(rt.clock, s.GetDuration("pollInterval"), &threadLogger{name: "Dispatcher"})
	defer disp.Stop()

	// buttons are unregistered and closed before the dispatcher stops
	buttons, err := peripheral.NewButtonRegistry(backend, disp, bindings, &threadLogger{name: "Buttons"})
	if err != nil {
		return err
	}
	defer buttons.Close()

	out, err := peripheral.NewOutputController(backend, bindings, s.GetString("buzzerPin"), &threadLogger{name: "Outputs"})
	if err != nil {
		return err
	}
	defer out.Close()

	var status *statusMirror
	if pin := s.GetString("statusLed"); pin != "" {
		status, err = newStatusMirror(backend, pin)
		if err != nil {
			return err
		}
		defer func() {
			if err := status.Close(); err != nil {
				rt.logger.Printf("close status led: %v", err)
			}
		}()
	}

	rt.comms.events = disp.Events()
	disp.Start()
	runPanel(rt, out, status)
	return nil
}

func main() {
	configFile := flag.String("config", "/etc/default/rainbowpanel/rainbowpanel.conf", "config file path")
	backend := flag.String("backend", "", "override the backend: "+strings.Join(backends, ", "))
	flag.Parse()

	s, err := initSettings(*configFile)
	if err != nil {
		log.Fatalf("Could not load conf file '%s': %v", *configFile, err)
	}
	if *backend != "" {
		s.settings["backend"] = *backend
		if err := s.validate(); err != nil {
			log.Fatal(err.Error())
		}
	}

	// termbox owns the terminal in sim mode
	logs := setupLogging(s, s.GetString("backend") != "sim")
	s.Dump()

	rt := initRuntime(clockwork.NewRealClock(), s)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		rt.logger.Println("got a signal, shutting down")
		rt.comms.shutdown()
	}()

	bindings := peripheral.DefaultBindings()
	hw, closer, err := openBackend(rt, bindings)
	if err != nil {
		logs.Close()
		log.Fatalf("backend %s: %v", s.GetString("backend"), err)
	}
	if s.GetBool("listPins") {
		listPins(rt, hw)
	}

	err = run(rt, hw, bindings)
	closer.Close()
	if err != nil {
		log.Printf("startup failed: %v", err)
		logs.Close()
		os.Exit(1)
	}
	logs.Close()
}
