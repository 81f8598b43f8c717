package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// threadLogger tags each line with the name of the worker writing it
type threadLogger struct {
	name string
}

func (tl *threadLogger) Printf(format string, v ...interface{}) {
	log.Printf("[%s] %s", tl.name, fmt.Sprintf(format, v...))
}

func (tl *threadLogger) Println(v ...interface{}) {
	log.Printf("[%s] %s", tl.name, fmt.Sprintln(v...))
}

// setupLogging points the std logger at the rotating log file, and at stderr
// too unless the terminal belongs to something else
func setupLogging(s *settings, toStderr bool) io.Closer {
	fName := s.GetString("logFile")
	if fName == "" {
		if toStderr {
			log.SetOutput(os.Stderr)
		} else {
			log.SetOutput(ioutil.Discard)
		}
		return nopCloser{}
	}

	lj := &lumberjack.Logger{
		Filename:   fName,
		MaxSize:    s.GetInt("logMaxSizeMB"),
		MaxBackups: s.GetInt("logMaxBackups"),
	}
	if toStderr {
		log.SetOutput(io.MultiWriter(os.Stderr, lj))
	} else {
		log.SetOutput(lj)
	}
	return lj
}
