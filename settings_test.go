package main

import (
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"

	"dscheirer.com/rainbowpanel/peripheral"
)

func TestDefaultSettings(t *testing.T) {
	s := defaultSettings()
	assert.Equal(t, s.GetDuration("pollInterval"), 10*time.Millisecond)
	assert.Equal(t, s.GetString("buzzerPin"), peripheral.DefaultBuzzerPin)
	assert.Equal(t, s.GetString("statusLed"), "")
	assert.Equal(t, s.GetInt("logMaxSizeMB"), 10)
	assert.Equal(t, s.GetBool("listPins"), false)
	assert.NilError(t, s.validate())
}

func TestSettingsFromJSON(t *testing.T) {
	s := defaultSettings()
	data := []byte(`{
		"backend": "sim",
		"pollInterval": "25ms",
		"logFile": "/tmp/panel.log",
		"logMaxSizeMB": 2,
		"logMaxBackups": "0x4",
		"listPins": "TRUE",
		"statusLed": "GPIO5",
		"somethingElse": 12
	}`)
	assert.NilError(t, s.settingsFromJSON(data))

	assert.Equal(t, s.GetString("backend"), "sim")
	assert.Equal(t, s.GetDuration("pollInterval"), 25*time.Millisecond)
	assert.Equal(t, s.GetString("logFile"), "/tmp/panel.log")
	assert.Equal(t, s.GetInt("logMaxSizeMB"), 2)
	assert.Equal(t, s.GetInt("logMaxBackups"), 4)
	assert.Equal(t, s.GetBool("listPins"), true)
	assert.Equal(t, s.GetString("statusLed"), "GPIO5")
	// untouched keys keep their defaults
	assert.Equal(t, s.GetString("buzzerPin"), peripheral.DefaultBuzzerPin)
}

func TestSettingsBadValues(t *testing.T) {
	for name, data := range map[string]string{
		"duration": `{"pollInterval": "soon"}`,
		"negative": `{"pollInterval": "-5ms"}`,
		"bool":     `{"listPins": "maybe"}`,
		"int":      `{"logMaxSizeMB": "lots"}`,
		"backend":  `{"backend": "gpiozero"}`,
	} {
		s := defaultSettings()
		assert.Assert(t, s.settingsFromJSON([]byte(data)) != nil, name)
	}
}

func TestInitSettingsFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "rainbowpanel")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	cfg := filepath.Join(dir, "panel.conf")
	assert.NilError(t, ioutil.WriteFile(cfg, []byte(`{"backend": "rpio", "buzzerPin": "GPIO18"}`), 0600))

	s, err := initSettings(cfg)
	assert.NilError(t, err)
	assert.Equal(t, s.GetString("backend"), "rpio")
	assert.Equal(t, s.GetString("buzzerPin"), "GPIO18")

	// no file means defaults
	s, err = initSettings(filepath.Join(dir, "missing.conf"))
	assert.NilError(t, err)
	assert.Equal(t, s.GetString("buzzerPin"), peripheral.DefaultBuzzerPin)
}

func TestSetupLoggingNoFile(t *testing.T) {
	s := defaultSettings()
	s.settings["logFile"] = ""
	c := setupLogging(s, false)
	assert.NilError(t, c.Close())
	tl := &threadLogger{name: "Test"}
	tl.Printf("hello %d", 1)
	tl.Println("hello")
}

func TestSetupLoggingFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "rainbowpanel")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	s := defaultSettings()
	s.settings["logFile"] = filepath.Join(dir, "panel.log")
	c := setupLogging(s, false)
	defer log.SetOutput(ioutil.Discard)
	(&threadLogger{name: "Test"}).Println("into the file")
	assert.NilError(t, c.Close())

	data, err := ioutil.ReadFile(filepath.Join(dir, "panel.log"))
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(data), "[Test] into the file"))
}

func TestPinNumber(t *testing.T) {
	for name, want := range map[string]int{"GPIO17": 17, "BCM13": 13, "26": 26, "gpio_5": 5} {
		n, err := pinNumber(name)
		assert.NilError(t, err, name)
		assert.Equal(t, n, want, name)
	}
	for _, name := range []string{"LED_RED", "GPIO99", "", "GPIO-1"} {
		_, err := pinNumber(name)
		assert.ErrorContains(t, err, "unknown pin", name)
	}
}
