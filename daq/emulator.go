package daq

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/roctuner/config"
	"github.com/jrwynneiii/roctuner/decode"
	"github.com/jrwynneiii/roctuner/levels"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	tagHeader  = 0x8000
	tagData    = 0x4000
	tagTrailer = 0xc000

	edgeLow  = -2000
	edgeHigh = 500
)

// testPixel is the pixel the emulated ROCs fire in decoded readout.
var testPixel = decode.Pixel{Column: 12, Row: 34}

// Emulator is a simulated testboard. Levels drift apart as the clock delay
// moves away from the optimal phase; the token edges and the hit window
// follow the tindelay/toutdelay and wbc/triggerlatency registers.
type Emulator struct {
	sync.Mutex
	conf      config.EmulatorConf
	layout    levels.Layout
	registers map[string]int
	running   bool
	flags     Flags
	pending   int
	reads     int
	rawEvents int
	stats     Stats
	noise     distuv.Normal
	hit       distuv.Bernoulli
}

func NewEmulator(conf config.EmulatorConf, layout levels.Layout) *Emulator {
	src := rand.NewPCG(conf.Seed, conf.Seed^0x9e3779b97f4a7c15)
	e := &Emulator{
		conf:      conf,
		layout:    layout,
		registers: make(map[string]int),
		noise:     distuv.Normal{Mu: 0, Sigma: conf.Noise, Src: src},
		hit:       distuv.Bernoulli{P: conf.Efficiency, Src: src},
	}
	if e.conf.Rocs <= 0 {
		e.conf.Rocs = 1
	}
	if e.conf.ClkPeriod <= 0 {
		e.conf.ClkPeriod = 20
	}
	log.Debugf("Emulated testboard: %##v", e.conf)
	return e
}

func (e *Emulator) ApplyRegisters(params map[string]int) error {
	e.Lock()
	defer e.Unlock()
	for name, v := range params {
		e.registers[name] = v
	}
	log.Debugf("[emulator] registers: %v", params)
	return nil
}

// Registers returns a copy of the current register state.
func (e *Emulator) Registers() map[string]int {
	e.Lock()
	defer e.Unlock()
	out := make(map[string]int, len(e.registers))
	for k, v := range e.registers {
		out[k] = v
	}
	return out
}

func (e *Emulator) Start(flags Flags) error {
	e.Lock()
	defer e.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	e.flags = flags
	e.pending = 0
	e.stats = Stats{}
	log.Debugf("[emulator] session started, trigger source %q", flags.TriggerSource)
	return nil
}

func (e *Emulator) Stop() error {
	e.Lock()
	defer e.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	e.running = false
	e.pending = 0
	log.Debug("[emulator] session stopped")
	return nil
}

func (e *Emulator) Running() bool {
	e.Lock()
	defer e.Unlock()
	return e.running
}

func (e *Emulator) Trigger(count, period int) error {
	e.Lock()
	defer e.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	e.pending += count
	return nil
}

func (e *Emulator) Statistics() Stats {
	e.Lock()
	defer e.Unlock()
	return e.stats
}

// take consumes one pending event, simulating a periodic buffer underrun.
func (e *Emulator) take() error {
	if !e.running {
		return ErrNotRunning
	}
	e.reads++
	if e.conf.UnderrunEvery > 0 && e.reads%e.conf.UnderrunEvery == 0 {
		return ErrNoData
	}
	if e.pending == 0 {
		return ErrNoData
	}
	e.pending--
	return nil
}

func (e *Emulator) ReadRawEvent() ([]uint16, error) {
	e.Lock()
	defer e.Unlock()
	if err := e.take(); err != nil {
		return nil, err
	}
	e.rawEvents++

	ev := e.rawLevels()
	raw := make([]uint16, len(ev))
	for i, v := range ev {
		tag := uint16(tagData)
		switch i {
		case 0:
			tag = tagHeader
		case len(ev) - 1:
			tag = tagTrailer
		}
		raw[i] = tag | uint16(v)&0x0fff
	}

	if e.conf.TruncateEvery > 0 && e.rawEvents%e.conf.TruncateEvery == 0 {
		raw = raw[:len(raw)/2]
		e.stats.Errors++
		log.Debugf("[emulator] truncated event %d to %d words", e.rawEvents, len(raw))
	}
	e.stats.InfoWordsRead += len(raw)
	return raw, nil
}

// rawLevels lays out one event: leading token word, per-ROC levels and
// black window, trailing token word.
func (e *Emulator) rawLevels() []int {
	n := e.layout.EventLength(e.conf.Rocs) + 1
	ev := make([]int, n)
	for i := range ev {
		ev[i] = e.conf.UltraBlack
	}

	dist := e.clockDistance()
	lost := dist > e.conf.ClkPeriod/4
	center := float64(e.layout.Slots-1) / 2
	for roc := 0; roc < e.conf.Rocs; roc++ {
		for slot := 0; slot < e.layout.Slots; slot++ {
			v := 0
			if !lost {
				skew := e.conf.Skew * float64(dist) * (float64(slot) - center)
				v = e.conf.Level + e.sample(skew)
			}
			ev[e.layout.Offset(roc, slot)] = v
		}
		if lost {
			continue
		}
		ev[e.layout.BlackPrimary(roc)] = e.conf.Black + e.sample(0)
		for j := 0; j < e.layout.BlackWindow; j++ {
			ev[e.layout.BlackSecondaryAt(roc, j)] = e.conf.Black + e.sample(e.conf.Skew*float64(dist)/2)
		}
	}

	ev[0] = 50
	if e.registers["tindelay"] >= e.conf.TinEdge {
		ev[0] = edgeLow
	}
	ev[n-1] = -50
	if e.registers["toutdelay"] <= e.conf.ToutEdge {
		ev[n-1] = edgeHigh
	}
	return ev
}

func (e *Emulator) sample(offset float64) int {
	return int(math.Round(offset + e.noise.Rand()))
}

func (e *Emulator) clockDistance() int {
	d := (e.registers["clk"] - e.conf.OptimalClk) % e.conf.ClkPeriod
	if d < 0 {
		d += e.conf.ClkPeriod
	}
	return min(d, e.conf.ClkPeriod-d)
}

// inWindow reports whether a register sits in the hit window. Registers
// that were never written do not restrict the window.
func (e *Emulator) inWindow(name string, optimal int) bool {
	v, ok := e.registers[name]
	if !ok {
		return true
	}
	return v >= optimal && v < optimal+e.conf.WBCWindow
}

// ReadEvent returns a decoded event. Hits are produced as analog words and
// run through the pixel decoder, as the readout pipeline does.
func (e *Emulator) ReadEvent() (Event, error) {
	e.Lock()
	defer e.Unlock()
	if err := e.take(); err != nil {
		return Event{}, err
	}

	var ev Event
	firing := e.inWindow("wbc", e.conf.OptimalWBC) && e.inWindow("triggerlatency", e.conf.OptimalLat)
	lv := decode.Levels{Black: e.conf.Black, UltraBlack: e.conf.UltraBlack}
	for roc := 0; roc < e.conf.Rocs; roc++ {
		// roc header: ultrablack, black, last dac
		e.stats.InfoWordsRead += 3
		if !firing || e.hit.Rand() == 0 {
			continue
		}
		px := testPixel
		px.Value = 100 + e.sample(0)
		words := decode.EncodeAnalogPixel(px, lv)
		e.stats.InfoWordsRead += len(words)
		got, err := decode.AnalogPixel(words, lv)
		if err != nil {
			e.stats.Errors++
			log.Debugf("[emulator] dropped pixel: %v", err)
			continue
		}
		ev.Pixels = append(ev.Pixels, got)
		e.stats.InfoPixelsValid++
	}
	return ev, nil
}
