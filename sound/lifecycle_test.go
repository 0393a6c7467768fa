// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

import (
	"testing"
)

// newTestLifecycle builds a lifecycle against a mock queue and a registry
// pre-populated with one ready stream, without going through Open/dma.Reserve.
func newTestLifecycle(t *testing.T) (*lifecycle, *mockQueue) {
	t.Helper()

	q := newMockQueue()
	q.responder = func(inputs, outputs [][]byte) uint32 {
		copy(outputs[0], Hdr{Code: StatusOK}.bytes())
		return uint32(len(outputs[0]))
	}

	ctl := &controlEngine{
		transport: &mockTransport{},
		queue:     q,
		reqBuf:    make([]byte, controlBufCapacity),
		respBuf:   make([]byte, controlBufCapacity),
	}

	reg := &registry{
		streams: []PcmInfo{{Direction: Output}},
		chmaps:  nil,
		params:  make([]Params, 1),
		state:   []State{StateSetParameters},
		ready:   []bool{false},
		setUp:   true,
	}

	return &lifecycle{reg: reg, ctl: ctl}, q
}

func validParams() Params {
	return Params{BufferBytes: 8000, PeriodBytes: 1000, Channels: 2, Format: FormatS16, Rate: Rate48000}
}

func TestLifecycleHappyPath(t *testing.T) {
	lc, _ := newTestLifecycle(t)

	steps := []struct {
		name string
		run  func() error
		want State
	}{
		{"SetParameters", func() error { return lc.SetParameters(0, validParams()) }, StateSetParameters},
		{"Prepare", func() error { return lc.Prepare(0) }, StatePrepare},
		{"Start", func() error { return lc.Start(0) }, StateStart},
		{"Stop", func() error { return lc.Stop(0) }, StateStop},
		{"Release", func() error { return lc.Release(0) }, StateRelease},
	}

	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("%s: unexpected error: %v", s.name, err)
		}

		got, err := lc.State(0)

		if err != nil {
			t.Fatalf("%s: State: %v", s.name, err)
		}

		if got != s.want {
			t.Fatalf("%s: state = %v, want %v", s.name, got, s.want)
		}
	}
}

func TestLifecycleIllegalTransition(t *testing.T) {
	lc, _ := newTestLifecycle(t)

	// Start is not reachable directly from SetParameters.
	if err := lc.Start(0); err != ErrInvalidState {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}

	got, err := lc.State(0)

	if err != nil {
		t.Fatal(err)
	}

	if got != StateSetParameters {
		t.Fatalf("state changed to %v after a rejected transition", got)
	}
}

func TestLifecycleUnknownStream(t *testing.T) {
	lc, _ := newTestLifecycle(t)

	if err := lc.Prepare(5); err != ErrUnknownStream {
		t.Fatalf("got %v, want ErrUnknownStream", err)
	}
}

func TestLifecycleFailedTransitionLeavesStateUnchanged(t *testing.T) {
	lc, q := newTestLifecycle(t)

	if err := lc.SetParameters(0, validParams()); err != nil {
		t.Fatal(err)
	}

	q.responder = func(inputs, outputs [][]byte) uint32 {
		copy(outputs[0], Hdr{Code: StatusIOErr}.bytes())
		return uint32(len(outputs[0]))
	}

	if err := lc.Prepare(0); err == nil {
		t.Fatal("expected an error from a device-rejected Prepare")
	}

	got, err := lc.State(0)

	if err != nil {
		t.Fatal(err)
	}

	if got != StateSetParameters {
		t.Fatalf("state = %v, want unchanged StateSetParameters", got)
	}
}

func TestSetParametersValidation(t *testing.T) {
	lc, _ := newTestLifecycle(t)

	cases := []struct {
		name   string
		params Params
		wantOK bool
	}{
		{"zero period", Params{BufferBytes: 100, PeriodBytes: 0}, false},
		{"period exceeds buffer", Params{BufferBytes: 100, PeriodBytes: 200}, false},
		{"buffer not multiple of period", Params{BufferBytes: 100, PeriodBytes: 30}, false},
		{"valid", Params{BufferBytes: 100, PeriodBytes: 25}, true},
	}

	for _, c := range cases {
		err := lc.SetParameters(0, c.params)

		if c.wantOK && err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
		}

		if !c.wantOK && err != ErrInvalidParam {
			t.Errorf("%s: got %v, want ErrInvalidParam", c.name, err)
		}
	}
}
