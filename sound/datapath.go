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
)

// maxPeriodBytes bounds the per-slot payload buffers pre-reserved for the
// blocking playback/capture sliding window. SetParameters does not check
// periods against it; Write and Read return ErrInvalidParam for a stream
// whose negotiated period exceeds it.
const maxPeriodBytes = 65536

// dataPath implements the asynchronous PCM submit/complete path of §4.7 on
// top of the tx (playback) and rx (capture) queues.
type dataPath struct {
	transport Transport
	txQueue   Queue
	rxQueue   Queue

	reg *registry
	lc  *lifecycle

	txMu      sync.Mutex
	txPayload [queueCapacity][]byte
	txStatus  [queueCapacity][]byte

	rxMu      sync.Mutex
	rxPayload [queueCapacity][]byte
	rxStatus  [queueCapacity][]byte

	hdrMu   sync.Mutex
	headers map[uint32][]byte

	outMu sync.Mutex
	out   map[uint16]*outstanding
}

// outstanding tracks a non-blocking submission awaiting acknowledgement.
type outstanding struct {
	payload []byte
	status  []byte
}

func newDataPath(t Transport, tx, rx Queue, reg *registry, lc *lifecycle) *dataPath {
	d := &dataPath{
		transport: t,
		txQueue:   tx,
		rxQueue:   rx,
		reg:       reg,
		lc:        lc,
		headers:   make(map[uint32][]byte),
		out:       make(map[uint16]*outstanding),
	}

	for i := 0; i < queueCapacity; i++ {
		_, d.txPayload[i] = dma.Reserve(maxPeriodBytes, 0)
		_, d.txStatus[i] = dma.Reserve(pcmStatusSize, 0)
		_, d.rxPayload[i] = dma.Reserve(maxPeriodBytes, 0)
		_, d.rxStatus[i] = dma.Reserve(pcmStatusSize, 0)
	}

	return d
}

// streamHeader returns the permanent, DMA-reserved 4-byte stream-id header
// buffer for streamID, allocating it on first use.
func (d *dataPath) streamHeader(streamID uint32) []byte {
	d.hdrMu.Lock()
	defer d.hdrMu.Unlock()

	if buf, ok := d.headers[streamID]; ok {
		return buf
	}

	buf := pcmXferHdr(streamID)
	_, dmaBuf := dma.Reserve(len(buf), 0)
	copy(dmaBuf, buf)

	d.headers[streamID] = dmaBuf

	return dmaBuf
}

func (d *dataPath) readyPeriod(streamID uint32) (int, error) {
	d.reg.Lock()
	defer d.reg.Unlock()

	if int(streamID) >= len(d.reg.ready) {
		return 0, ErrUnknownStream
	}

	if !d.reg.ready[streamID] {
		return 0, ErrInvalidState
	}

	return int(d.reg.params[streamID].PeriodBytes), nil
}

// Write drives blocking playback: frames is split into period-sized chunks
// (the final chunk may be short) and drained through a sliding window of up
// to queueCapacity in-flight submissions.
func (d *dataPath) Write(streamID uint32, frames []byte) error {
	info, err := d.reg.stream(streamID)

	if err != nil {
		return err
	}

	if info.Direction != Output {
		return ErrInvalidParam
	}

	period, err := d.readyPeriod(streamID)

	if err != nil {
		return err
	}

	if period <= 0 || period > maxPeriodBytes {
		return ErrInvalidParam
	}

	hdr := d.streamHeader(streamID)

	d.txMu.Lock()
	defer d.txMu.Unlock()

	var tokens [queueCapacity]uint16
	var failed error

	head, tail := 0, 0
	offset := 0
	n := len(frames)

	for offset < n || head != tail {
		if failed == nil {
			for offset < n && head-tail < queueCapacity && d.txQueue.AvailableDesc() >= 3 {
				end := offset + period

				if end > n {
					end = n
				}

				slot := head % queueCapacity
				payload := d.txPayload[slot][:end-offset]
				copy(payload, frames[offset:end])

				token, err := d.txQueue.AddDMABuf([][]byte{hdr, payload}, [][]byte{d.txStatus[slot]})

				if err != nil {
					failed = err
					break
				}

				if d.txQueue.ShouldNotify() {
					d.transport.QueueNotify(TxQueue)
				}

				tokens[slot] = token
				head++
				offset = end
			}
		}

		for head != tail && d.txQueue.CanPop() {
			slot := tail % queueCapacity

			if _, err := d.txQueue.PopUsedWithToken(tokens[slot]); err != nil {
				break
			}

			st := decodePcmStatus(d.txStatus[slot])
			tail++

			if st.Status != StatusOK && failed == nil {
				failed = &XferError{Status: st.Status}
			}
		}

		if failed != nil {
			offset = n
		}

		if offset == n && head == tail {
			break
		}

		runtime.Gosched()
	}

	return failed
}

// Read drives blocking capture, filling buffer from the rx queue using the
// same sliding-window discipline as Write.
func (d *dataPath) Read(streamID uint32, buffer []byte) error {
	info, err := d.reg.stream(streamID)

	if err != nil {
		return err
	}

	if info.Direction != Input {
		return ErrInvalidParam
	}

	period, err := d.readyPeriod(streamID)

	if err != nil {
		return err
	}

	if period <= 0 || period > maxPeriodBytes {
		return ErrInvalidParam
	}

	hdr := d.streamHeader(streamID)

	d.rxMu.Lock()
	defer d.rxMu.Unlock()

	var tokens [queueCapacity]uint16
	var failed error

	head, tail := 0, 0
	submitted, filled := 0, 0
	n := len(buffer)

	periodsNeeded := (n + period - 1) / period

	for filled < n || head != tail {
		if failed == nil {
			for submitted < periodsNeeded && head-tail < queueCapacity && d.rxQueue.AvailableDesc() >= 3 {
				slot := head % queueCapacity
				payload := d.rxPayload[slot][:period]

				token, err := d.rxQueue.AddDMABuf([][]byte{hdr}, [][]byte{payload, d.rxStatus[slot]})

				if err != nil {
					failed = err
					break
				}

				if d.rxQueue.ShouldNotify() {
					d.transport.QueueNotify(RxQueue)
				}

				tokens[slot] = token
				head++
				submitted++
			}
		}

		for head != tail && d.rxQueue.CanPop() {
			slot := tail % queueCapacity

			if _, err := d.rxQueue.PopUsedWithToken(tokens[slot]); err != nil {
				break
			}

			st := decodePcmStatus(d.rxStatus[slot])
			tail++

			if st.Status != StatusOK && failed == nil {
				failed = &XferError{Status: st.Status}
			}

			if failed == nil {
				end := filled + period

				if end > n {
					end = n
				}

				copy(buffer[filled:end], d.rxPayload[slot][:end-filled])
				filled = end
			}
		}

		if failed != nil {
			submitted = periodsNeeded

			if filled < n {
				filled = n
			}
		}

		if filled == n && head == tail {
			break
		}

		runtime.Gosched()
	}

	return failed
}

// SubmitNonBlocking posts one playback period without waiting for
// completion, returning a token the caller retires with Ack.
func (d *dataPath) SubmitNonBlocking(streamID uint32, frame []byte) (uint16, error) {
	info, err := d.reg.stream(streamID)

	if err != nil {
		return 0, err
	}

	if info.Direction != Output {
		return 0, ErrInvalidParam
	}

	period, err := d.readyPeriod(streamID)

	if err != nil {
		return 0, err
	}

	if len(frame) != period {
		return 0, ErrInvalidParam
	}

	hdr := d.streamHeader(streamID)

	_, payload := dma.Reserve(len(frame), 0)
	copy(payload, frame)

	_, status := dma.Reserve(pcmStatusSize, 0)

	token, err := d.txQueue.AddDMABuf([][]byte{hdr, payload}, [][]byte{status})

	if err != nil {
		dma.Release(dmaAddr(payload))
		dma.Release(dmaAddr(status))
		return 0, err
	}

	if d.txQueue.ShouldNotify() {
		d.transport.QueueNotify(TxQueue)
	}

	d.outMu.Lock()
	d.out[token] = &outstanding{payload: payload, status: status}
	d.outMu.Unlock()

	return token, nil
}

// Ack retires a non-blocking submission: it reaps the used-ring slot,
// validates the status record, and releases the submission's DMA buffers.
// A second call with the same token returns ErrInvalidParam, since the
// entry no longer exists.
func (d *dataPath) Ack(token uint16) error {
	d.outMu.Lock()
	o, ok := d.out[token]

	if !ok {
		d.outMu.Unlock()
		return ErrInvalidParam
	}

	delete(d.out, token)
	d.outMu.Unlock()

	_, err := d.txQueue.PopUsedWithToken(token)

	defer func() {
		dma.Release(dmaAddr(o.payload))
		dma.Release(dmaAddr(o.status))
	}()

	if err != nil {
		return err
	}

	st := decodePcmStatus(o.status)

	if st.Status != StatusOK {
		return &XferError{Status: st.Status}
	}

	return nil
}

// dmaAddr recovers the allocation address of a buffer previously obtained
// from dma.Reserve, for use with dma.Release.
func dmaAddr(buf []byte) uint32 {
	_, addr := dma.Reserved(buf)
	return addr
}
