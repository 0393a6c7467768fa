// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

import (
	"runtime"
	"sync"

	"github.com/usbarmory/tamago/dma"
	"github.com/usbarmory/tamago/kvm/virtio"
)

// controlBufCapacity bounds the response span a single control request can
// elicit. It comfortably fits a PCM_INFO or CHMAP_INFO reply enumerating a
// realistic stream/chmap count; callers that would overflow it get
// ErrBufferOverflow rather than a silent truncation (see the note in §9 of
// the design about a fixed-size response buffer in the reference driver).
const controlBufCapacity = 4096

// controlEngine drives the single in-flight request/response round trip
// over the control queue. All requests are serialized by its lock, matching
// the "one in-flight request" invariant of the protocol.
type controlEngine struct {
	sync.Mutex

	transport Transport
	queue     Queue

	reqBuf  []byte
	respBuf []byte
}

func newControlEngine(t Transport, q Queue) *controlEngine {
	e := &controlEngine{transport: t, queue: q}

	_, e.reqBuf = dma.Reserve(controlBufCapacity, 0)
	_, e.respBuf = dma.Reserve(controlBufCapacity, 0)

	return e
}

// roundTrip submits req on the control queue with a respSize-byte
// device-writable response slot, spins until the device retires it, and
// returns the raw response bytes with the header already validated.
func (e *controlEngine) roundTrip(req []byte, respSize int) ([]byte, error) {
	if respSize > controlBufCapacity || len(req) > controlBufCapacity {
		return nil, ErrBufferOverflow
	}

	e.Lock()
	defer e.Unlock()

	n := copy(e.reqBuf, req)
	out := e.respBuf[:respSize]

	token, err := e.queue.AddDMABuf([][]byte{e.reqBuf[:n]}, [][]byte{out})

	if err != nil {
		return nil, err
	}

	if e.queue.ShouldNotify() {
		e.transport.QueueNotify(ControlQueue)
	}

	for {
		_, err := e.queue.PopUsedWithToken(token)

		if err == nil {
			break
		}

		if err == virtio.ErrNotReady {
			runtime.Gosched()
			continue
		}

		return nil, err
	}

	hdr := decodeHdr(out)

	if err := statusError(decodeHdr(req).Code, hdr.Code); err != nil {
		return nil, err
	}

	return out, nil
}

// request performs a round trip expecting a header-only response, the shape
// of every lifecycle operation and of jack/control requests this driver
// does not otherwise parse.
func (e *controlEngine) request(req []byte) error {
	_, err := e.roundTrip(req, hdrSize)
	return err
}

// pcmInfo queries PCM stream information for the contiguous range
// [start, start+count).
func (e *controlEngine) pcmInfo(start, count, streams uint32) ([]PcmInfo, error) {
	if start+count > streams || count == 0 {
		return nil, ErrInvalidParam
	}

	req := QueryInfo{
		Hdr:     Hdr{Code: PcmInfoReq},
		StartID: start,
		Count:   count,
		Size:    pcmInfoSize,
	}.bytes()

	buf, err := e.roundTrip(req, hdrSize+int(count)*pcmInfoSize)

	if err != nil {
		return nil, err
	}

	infos := make([]PcmInfo, count)
	off := hdrSize

	for i := range infos {
		infos[i] = decodePcmInfo(buf[off:])
		off += pcmInfoSize
	}

	return infos, nil
}

// chmapInfo queries channel map information for the contiguous range
// [start, start+count).
func (e *controlEngine) chmapInfo(start, count, chmaps uint32) ([]ChmapInfo, error) {
	if start+count > chmaps || count == 0 {
		return nil, ErrInvalidParam
	}

	req := QueryInfo{
		Hdr:     Hdr{Code: ChmapInfoReq},
		StartID: start,
		Count:   count,
		Size:    chmapInfoSize,
	}.bytes()

	buf, err := e.roundTrip(req, hdrSize+int(count)*chmapInfoSize)

	if err != nil {
		return nil, err
	}

	chmaps2 := make([]ChmapInfo, count)
	off := hdrSize

	for i := range chmaps2 {
		chmaps2[i] = decodeChmapInfo(buf[off:])
		off += chmapInfoSize
	}

	return chmaps2, nil
}

// pcmOp issues one of the stream-id-qualified lifecycle requests
// (PCM_SET_PARAMS excluded, see lifecycle.go) and returns its outcome.
func (e *controlEngine) pcmOp(code uint32, streamID uint32) error {
	req := PcmHdr{Hdr: Hdr{Code: code}, StreamID: streamID}.bytes()
	return e.request(req)
}
