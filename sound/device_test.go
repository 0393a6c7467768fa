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

// newTestDevice wires a Device's sub-components directly with plain Go
// slices in place of Open's dma.Reserve-backed construction, so the façade
// can be exercised against the mock Transport/Queue without a live DMA
// region.
func newTestDevice(q *mockQueue) *Device {
	ctl := &controlEngine{
		transport: &mockTransport{},
		queue:     q,
		reqBuf:    make([]byte, controlBufCapacity),
		respBuf:   make([]byte, controlBufCapacity),
	}

	reg := &registry{}
	lc := &lifecycle{reg: reg, ctl: ctl}

	return &Device{
		cfg: Config{Streams: 1},
		ctl: ctl,
		reg: reg,
		lc:  lc,
	}
}

func TestDeviceLazySetup(t *testing.T) {
	q := newMockQueue()
	q.responder = func(inputs, outputs [][]byte) uint32 {
		buf := outputs[0]
		copy(buf, Hdr{Code: StatusOK}.bytes())
		off := hdrSize
		buf[off+infoSize+4+8+8] = Output
		return uint32(off + pcmInfoSize)
	}

	d := newTestDevice(q)

	n, err := d.StreamCount()

	if err != nil {
		t.Fatalf("StreamCount: %v", err)
	}

	if n != 1 {
		t.Fatalf("StreamCount = %d, want 1", n)
	}

	info, err := d.Stream(0)

	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if info.Direction != Output {
		t.Fatalf("Direction = %v, want Output", info.Direction)
	}
}

func TestDeviceLifecycleFacade(t *testing.T) {
	q := newMockQueue()
	q.responder = func(inputs, outputs [][]byte) uint32 {
		copy(outputs[0], Hdr{Code: StatusOK}.bytes())
		return uint32(len(outputs[0]))
	}

	d := newTestDevice(q)

	if err := d.SetParameters(0, validParams()); err != nil {
		t.Fatalf("SetParameters: %v", err)
	}

	if err := d.Prepare(0); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	state, err := d.State(0)

	if err != nil {
		t.Fatalf("State: %v", err)
	}

	if state != StatePrepare {
		t.Fatalf("state = %v, want Prepare", state)
	}
}

func TestRegisterAndLookup(t *testing.T) {
	d := &Device{cfg: Config{Jacks: 42}}

	register("test-device", d)

	got, ok := Lookup("test-device")

	if !ok {
		t.Fatal("Lookup failed to find a registered device")
	}

	if got != d {
		t.Fatal("Lookup returned a different device instance")
	}

	if _, ok := Lookup("does-not-exist"); ok {
		t.Fatal("Lookup succeeded for an unregistered name")
	}
}

func TestRegisterOverwritesDuplicateName(t *testing.T) {
	first := &Device{cfg: Config{Jacks: 1}}
	second := &Device{cfg: Config{Jacks: 2}}

	register("dup", first)
	register("dup", second)

	got, ok := Lookup("dup")

	if !ok {
		t.Fatal("Lookup failed")
	}

	if got != second {
		t.Fatal("a later register call did not overwrite the earlier one")
	}
}
