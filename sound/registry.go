// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

import (
	"fmt"
	"sync"
)

// State is a PCM stream's position in the lifecycle state machine (§4.6).
type State int

const (
	StateSetParameters State = iota
	StatePrepare
	StateStart
	StateStop
	StateRelease
)

func (s State) String() string {
	switch s {
	case StateSetParameters:
		return "SetParameters"
	case StatePrepare:
		return "Prepare"
	case StateStart:
		return "Start"
	case StateStop:
		return "Stop"
	case StateRelease:
		return "Release"
	default:
		return "Unknown"
	}
}

// Params holds a stream's negotiated parameters, stored only after a
// successful SetParameters call.
type Params struct {
	BufferBytes uint32
	PeriodBytes uint32
	Features    uint32
	Channels    uint8
	Format      uint8
	Rate        uint8
}

// registry holds discovered PCM stream capabilities, per-stream negotiated
// parameters, and per-stream lifecycle state.
type registry struct {
	sync.Mutex

	setUp bool

	streams []PcmInfo
	chmaps  []ChmapInfo

	params []Params
	state  []State
	ready  []bool
}

// setup performs the lazy, idempotent one-time discovery pass described in
// §4.5: it queries PCM stream info, queries channel maps (tolerating a
// device that reports the family unsupported), and resets every stream's
// lifecycle state to SetParameters.
func (r *registry) setup(cfg Config, ctl *controlEngine) error {
	r.Lock()
	defer r.Unlock()

	if r.setUp {
		return nil
	}

	streams := make([]PcmInfo, 0, cfg.Streams)

	if cfg.Streams > 0 {
		infos, err := ctl.pcmInfo(0, cfg.Streams, cfg.Streams)

		if err != nil {
			return err
		}

		streams = infos
	}

	chmaps := make([]ChmapInfo, 0, cfg.Chmaps)

	if cfg.Chmaps > 0 {
		maps, err := ctl.chmapInfo(0, cfg.Chmaps, cfg.Chmaps)

		if err != nil {
			// Not fatal: the device may simply not implement the
			// CHMAP_INFO family. Leave the list empty.
			fmt.Printf("sound: chmap_info query failed, ignoring (%v)\n", err)
		} else {
			chmaps = maps
		}
	}

	r.streams = streams
	r.chmaps = chmaps

	r.params = make([]Params, len(streams))
	r.state = make([]State, len(streams))
	r.ready = make([]bool, len(streams))

	for i := range r.state {
		r.state[i] = StateSetParameters
	}

	r.setUp = true

	return nil
}

func (r *registry) stream(id uint32) (PcmInfo, error) {
	r.Lock()
	defer r.Unlock()

	if int(id) >= len(r.streams) {
		return PcmInfo{}, ErrUnknownStream
	}

	return r.streams[id], nil
}

func (r *registry) streamCount() int {
	r.Lock()
	defer r.Unlock()

	return len(r.streams)
}
