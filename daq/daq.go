// Package daq defines the acquisition session the calibration scans drive,
// and a testboard emulator that implements it.
package daq

import (
	"errors"

	"github.com/jrwynneiii/roctuner/decode"
)

var (
	// ErrNoData is the transient buffer-empty condition. Callers retry.
	ErrNoData = errors.New("daq buffer empty")

	ErrNotRunning     = errors.New("daq session not started")
	ErrAlreadyRunning = errors.New("daq session already started")
)

type Flags struct {
	TriggerSource string
}

type Event struct {
	Pixels []decode.Pixel
}

type Stats struct {
	Errors          int
	InfoWordsRead   int
	InfoPixelsValid int
}

// Session is the hardware side of a scan. Reads block until data is there
// or fail with ErrNoData when the buffer is empty.
type Session interface {
	ApplyRegisters(params map[string]int) error
	Start(flags Flags) error
	Stop() error
	Trigger(count, period int) error
	ReadRawEvent() ([]uint16, error)
	ReadEvent() (Event, error)
	Statistics() Stats
}
