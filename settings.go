package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"dscheirer.com/rainbowpanel/peripheral"
)

// keep settings generic, type-convert on the fly
type settings struct {
	settings map[string]interface{}
}

func defaultSettings() *settings {
	s := make(map[string]interface{})

	// setting the type here makes the conversion "automatic" later
	s["pollInterval"], _ = time.ParseDuration("10ms")
	s["logFile"] = "/var/log/rainbowpanel.log"
	s["logMaxSizeMB"] = 10
	s["logMaxBackups"] = 3
	s["buzzerPin"] = peripheral.DefaultBuzzerPin
	s["statusLed"] = "" // empty is "no status led"
	s["listPins"] = false

	// off the pi there are no pins to drive
	backend := "log"
	if runtime.GOARCH == "arm" || runtime.GOARCH == "arm64" {
		backend = "periph"
	}
	s["backend"] = backend

	return &settings{settings: s}
}

var backends = []string{"periph", "rpio", "sim", "log"}

func (s *settings) settingsFromJSON(data []byte) error {
	tmp := defaultSettings()
	for k, initVal := range tmp.settings {
		// ignore missing fields
		if _, dataType, _, err := jsonparser.Get(data, k); err != nil || dataType == jsonparser.NotExist {
			continue
		}

		var err error
		switch initVal.(type) {
		case int:
			var val int64
			val, err = jsonparser.GetInt(data, k)
			if err != nil {
				// try strconv
				valString, err2 := jsonparser.GetString(data, k)
				if err2 == nil {
					val, err = strconv.ParseInt(valString, 0, 64)
				}
			}
			if err == nil {
				s.settings[k] = int(val)
			}
		case bool:
			var bVal bool
			bVal, err = jsonparser.GetBoolean(data, k)
			if err != nil {
				// try true and false
				str, _ := jsonparser.GetString(data, k)
				switch strings.ToLower(str) {
				case "true":
					bVal, err = true, nil
				case "false":
					bVal, err = false, nil
				}
			}
			if err == nil {
				s.settings[k] = bVal
			}
		case time.Duration:
			var dur string
			dur, err = jsonparser.GetString(data, k)
			if err == nil {
				var dur2 time.Duration
				dur2, err = time.ParseDuration(dur)
				if err == nil {
					s.settings[k] = dur2
				}
			}
		case string:
			s.settings[k], err = jsonparser.GetString(data, k)
		default:
			err = fmt.Errorf("Bad type: %T", initVal)
		}
		if err != nil {
			return fmt.Errorf("setting %s: %v", k, err)
		}
	}
	return s.validate()
}

func (s *settings) validate() error {
	if s.GetDuration("pollInterval") <= 0 {
		return fmt.Errorf("pollInterval must be positive")
	}
	b := s.GetString("backend")
	for _, v := range backends {
		if v == b {
			return nil
		}
	}
	return fmt.Errorf("unknown backend %q, expected one of %s", b, strings.Join(backends, ", "))
}

// initSettings loads configFile over the defaults; a missing file just means defaults
func initSettings(configFile string) (*settings, error) {
	s := defaultSettings()
	if configFile == "" {
		return s, nil
	}

	data, err := ioutil.ReadFile(configFile)
	if os.IsNotExist(err) {
		log.Printf("No config file at '%s', using defaults", configFile)
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	log.Printf("Reading configuration from '%s'", configFile)
	if err := s.settingsFromJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *settings) GetString(key string) string {
	switch v := s.settings[key].(type) {
	case string:
		return v
	default:
		return ""
	}
}

func (s *settings) GetBool(key string) bool {
	switch v := s.settings[key].(type) {
	case bool:
		return v
	default:
		return false
	}
}

func (s *settings) GetDuration(key string) time.Duration {
	switch v := s.settings[key].(type) {
	case time.Duration:
		return v
	default:
		return -1
	}
}

func (s *settings) GetInt(key string) int {
	switch v := s.settings[key].(type) {
	case int:
		return v
	default:
		return 0
	}
}

func (s *settings) Dump() {
	keys := make([]string, 0, len(s.settings))
	for k := range s.settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Printf("%s : %T: %v\n", k, s.settings[k], s.settings[k])
	}
}
