// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

// transitions encodes the table in §4.6: transitions[from][to] is true iff
// the move is legal.
var transitions = map[State]map[State]bool{
	StateSetParameters: {StateSetParameters: true, StatePrepare: true},
	StatePrepare:       {StateSetParameters: true, StatePrepare: true, StateStart: true, StateRelease: true},
	StateStart:         {StateStop: true},
	StateStop:          {StateStart: true, StateRelease: true},
	StateRelease:       {StateSetParameters: true, StatePrepare: true},
}

func allowed(from, to State) bool {
	row, ok := transitions[from]

	if !ok {
		return false
	}

	return row[to]
}

// lifecycle enforces the per-stream PCM state machine on top of the
// registry and drives the corresponding control requests.
type lifecycle struct {
	reg *registry
	ctl *controlEngine
}

// SetParameters validates and replays stream parameters to the device. It
// is also the entry point by which a stream returns to the SetParameters
// state from Prepare or Release.
func (l *lifecycle) SetParameters(streamID uint32, p Params) error {
	if p.PeriodBytes == 0 || p.PeriodBytes > p.BufferBytes || p.BufferBytes%p.PeriodBytes != 0 {
		return ErrInvalidParam
	}

	l.reg.Lock()

	if int(streamID) >= len(l.reg.state) {
		l.reg.Unlock()
		return ErrUnknownStream
	}

	from := l.reg.state[streamID]

	if !allowed(from, StateSetParameters) {
		l.reg.Unlock()
		return ErrInvalidState
	}

	l.reg.Unlock()

	req := PcmSetParams{
		PcmHdr:      PcmHdr{Hdr: Hdr{Code: PcmSetParamsReq}, StreamID: streamID},
		BufferBytes: p.BufferBytes,
		PeriodBytes: p.PeriodBytes,
		Features:    p.Features,
		Channels:    p.Channels,
		Format:      p.Format,
		Rate:        p.Rate,
	}.bytes()

	if err := l.ctl.request(req); err != nil {
		return err
	}

	l.reg.Lock()
	l.reg.params[streamID] = p
	l.reg.state[streamID] = StateSetParameters
	l.reg.ready[streamID] = true
	l.reg.Unlock()

	return nil
}

// transition is the shared implementation of Prepare/Start/Stop/Release: it
// checks the table, issues the control request, and only on OK advances the
// stored state. A failed transition leaves state untouched so the caller
// can retry.
func (l *lifecycle) transition(streamID uint32, code uint32, to State) error {
	l.reg.Lock()

	if int(streamID) >= len(l.reg.state) {
		l.reg.Unlock()
		return ErrUnknownStream
	}

	from := l.reg.state[streamID]

	if !allowed(from, to) {
		l.reg.Unlock()
		return ErrInvalidState
	}

	l.reg.Unlock()

	if err := l.ctl.pcmOp(code, streamID); err != nil {
		return err
	}

	l.reg.Lock()
	l.reg.state[streamID] = to

	if to == StateRelease {
		l.reg.ready[streamID] = false
	}

	l.reg.Unlock()

	return nil
}

func (l *lifecycle) Prepare(streamID uint32) error {
	return l.transition(streamID, PcmPrepare, StatePrepare)
}

func (l *lifecycle) Start(streamID uint32) error {
	return l.transition(streamID, PcmStart, StateStart)
}

func (l *lifecycle) Stop(streamID uint32) error {
	return l.transition(streamID, PcmStop, StateStop)
}

func (l *lifecycle) Release(streamID uint32) error {
	return l.transition(streamID, PcmRelease, StateRelease)
}

// State returns a stream's current lifecycle state.
func (l *lifecycle) State(streamID uint32) (State, error) {
	l.reg.Lock()
	defer l.reg.Unlock()

	if int(streamID) >= len(l.reg.state) {
		return 0, ErrUnknownStream
	}

	return l.reg.state[streamID], nil
}
