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

func newTestControlEngine(responder func(inputs, outputs [][]byte) uint32) (*controlEngine, *mockQueue) {
	q := newMockQueue()
	q.responder = responder

	return &controlEngine{
		transport: &mockTransport{},
		queue:     q,
		reqBuf:    make([]byte, controlBufCapacity),
		respBuf:   make([]byte, controlBufCapacity),
	}, q
}

func TestControlEngineRequestOK(t *testing.T) {
	ctl, _ := newTestControlEngine(func(inputs, outputs [][]byte) uint32 {
		copy(outputs[0], Hdr{Code: StatusOK}.bytes())
		return uint32(len(outputs[0]))
	})

	req := PcmHdr{Hdr: Hdr{Code: PcmPrepare}, StreamID: 0}.bytes()

	if err := ctl.request(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestControlEngineRequestError(t *testing.T) {
	ctl, _ := newTestControlEngine(func(inputs, outputs [][]byte) uint32 {
		copy(outputs[0], Hdr{Code: StatusNotSupp}.bytes())
		return uint32(len(outputs[0]))
	})

	req := PcmHdr{Hdr: Hdr{Code: PcmPrepare}, StreamID: 0}.bytes()

	err := ctl.request(req)

	re, ok := err.(*RequestError)

	if !ok {
		t.Fatalf("got %T, want *RequestError", err)
	}

	if re.Status != StatusNotSupp {
		t.Fatalf("status = %#x, want %#x", re.Status, StatusNotSupp)
	}
}

func TestControlEnginePcmInfo(t *testing.T) {
	want := []PcmInfo{
		{Direction: Output, ChannelsMin: 1, ChannelsMax: 2},
		{Direction: Input, ChannelsMin: 1, ChannelsMax: 1},
	}

	ctl, _ := newTestControlEngine(func(inputs, outputs [][]byte) uint32 {
		buf := outputs[0]
		copy(buf, Hdr{Code: StatusOK}.bytes())

		off := hdrSize

		for _, info := range want {
			rec := make([]byte, pcmInfoSize)
			rec[infoSize+4+8+8] = info.Direction
			rec[infoSize+4+8+8+1] = info.ChannelsMin
			rec[infoSize+4+8+8+2] = info.ChannelsMax
			copy(buf[off:], rec)
			off += pcmInfoSize
		}

		return uint32(off)
	})

	got, err := ctl.pcmInfo(0, 2, 2)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d infos, want %d", len(got), len(want))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("info[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestControlEnginePcmInfoRangeValidation(t *testing.T) {
	ctl, _ := newTestControlEngine(nil)

	if _, err := ctl.pcmInfo(1, 2, 2); err != ErrInvalidParam {
		t.Fatalf("got %v, want ErrInvalidParam", err)
	}

	if _, err := ctl.pcmInfo(0, 0, 2); err != ErrInvalidParam {
		t.Fatalf("got %v, want ErrInvalidParam", err)
	}
}

func TestControlEngineResponseOverflow(t *testing.T) {
	ctl, _ := newTestControlEngine(nil)

	// A count large enough that header+count*pcmInfoSize exceeds
	// controlBufCapacity must fail fast rather than submit a truncated
	// request.
	huge := uint32(controlBufCapacity/pcmInfoSize) + 10

	if _, err := ctl.pcmInfo(0, huge, huge); err != ErrBufferOverflow {
		t.Fatalf("got %v, want ErrBufferOverflow", err)
	}
}

func TestControlEngineChmapInfo(t *testing.T) {
	want := ChmapInfo{Direction: Output, Channels: 2}
	want.Positions[0] = ChmapFL
	want.Positions[1] = ChmapFR

	ctl, _ := newTestControlEngine(func(inputs, outputs [][]byte) uint32 {
		buf := outputs[0]
		copy(buf, Hdr{Code: StatusOK}.bytes())

		off := hdrSize
		buf[off+infoSize] = want.Direction
		buf[off+infoSize+1] = want.Channels
		copy(buf[off+infoSize+2:off+infoSize+2+ChmapMaxChannels], want.Positions[:])

		return uint32(off + chmapInfoSize)
	})

	got, err := ctl.chmapInfo(0, 1, 1)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %+v, want [%+v]", got, want)
	}
}
