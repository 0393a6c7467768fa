// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

import (
	"sync"

	"github.com/usbarmory/tamago/kvm/virtio"
)

// mockTransport is a hand-written Transport fake, standing in for
// *virtio.MMIO in tests that exercise the driver core without touching real
// MMIO registers.
type mockTransport struct {
	sync.Mutex

	devFeatures uint64
	negFeatures uint64
	config      []byte

	maxQueueSize int
	notifyCount  [4]int
	ready        bool
}

func (t *mockTransport) DeviceFeatures() uint64 { return t.devFeatures }

func (t *mockTransport) SetDriverFeatures(features uint64) {
	t.Lock()
	defer t.Unlock()

	t.negFeatures = features
}

func (t *mockTransport) NegotiatedFeatures() uint64 { return t.negFeatures }

func (t *mockTransport) Config(size int) []byte {
	if size > len(t.config) {
		return nil
	}

	return t.config[:size]
}

func (t *mockTransport) MaxQueueSize(index int) int { return t.maxQueueSize }
func (t *mockTransport) SetQueueSize(index int, n int) {}
func (t *mockTransport) SetQueue(index int, queue *virtio.VirtualQueue) {}

func (t *mockTransport) QueueNotify(index int) {
	t.Lock()
	defer t.Unlock()

	t.notifyCount[index]++
}

func (t *mockTransport) SetReady() {
	t.Lock()
	defer t.Unlock()

	t.ready = true
}

// mockQueue is a hand-written Queue fake. By default it completes every
// submitted descriptor chain synchronously, inline in AddDMABuf, running a
// test-supplied responder to fill in device-writable buffers the way a real
// device would before the completion is observed on the used ring. Setting
// held defers completion until the test calls complete() explicitly, for
// exercising code (the event dispatcher) that re-submits from inside its own
// drain loop and would otherwise spin forever against an always-complete
// queue.
type mockQueue struct {
	sync.Mutex

	nextToken uint16
	pending   map[uint16]pendingChain
	order     []uint16
	usedLen   map[uint16]uint32

	avail    int
	noNotify bool
	held     bool

	// responder is invoked with the chain's input and output buffers; it
	// may write into outputs in place and returns the used length
	// reported on completion.
	responder func(inputs, outputs [][]byte) uint32
}

type pendingChain struct {
	inputs, outputs [][]byte
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		avail:   64,
		pending: make(map[uint16]pendingChain),
		usedLen: make(map[uint16]uint32),
	}
}

func (q *mockQueue) AddDMABuf(inputs [][]byte, outputs [][]byte) (uint16, error) {
	q.Lock()

	if len(inputs)+len(outputs) == 0 {
		q.Unlock()
		return 0, virtio.ErrInvalidArgs
	}

	token := q.nextToken
	q.nextToken++

	if q.held {
		q.pending[token] = pendingChain{inputs: inputs, outputs: outputs}
		q.Unlock()
		return token, nil
	}

	q.Unlock()

	var n uint32

	if q.responder != nil {
		n = q.responder(inputs, outputs)
	}

	q.Lock()
	q.usedLen[token] = n
	q.order = append(q.order, token)
	q.Unlock()

	return token, nil
}

// complete retires a held submission, running the responder (if any)
// against its original input/output buffers and making it visible to the
// next CanPop/PopUsed* call.
func (q *mockQueue) complete(token uint16) {
	q.Lock()

	p, ok := q.pending[token]

	if !ok {
		q.Unlock()
		return
	}

	delete(q.pending, token)
	q.Unlock()

	var n uint32

	if q.responder != nil {
		n = q.responder(p.inputs, p.outputs)
	}

	q.Lock()
	q.usedLen[token] = n
	q.order = append(q.order, token)
	q.Unlock()
}

func (q *mockQueue) AvailableDesc() int {
	q.Lock()
	defer q.Unlock()

	return q.avail
}

func (q *mockQueue) CanPop() bool {
	q.Lock()
	defer q.Unlock()

	return len(q.order) > 0
}

func (q *mockQueue) PopUsed() (uint16, uint32, error) {
	q.Lock()
	defer q.Unlock()

	if len(q.order) == 0 {
		return 0, 0, virtio.ErrNotReady
	}

	token := q.order[0]
	q.order = q.order[1:]

	return token, q.usedLen[token], nil
}

func (q *mockQueue) PopUsedWithToken(token uint16) (uint32, error) {
	q.Lock()
	defer q.Unlock()

	if len(q.order) == 0 {
		return 0, virtio.ErrNotReady
	}

	if q.order[0] != token {
		return 0, virtio.ErrWrongToken
	}

	q.order = q.order[1:]

	return q.usedLen[token], nil
}

func (q *mockQueue) ShouldNotify() bool {
	return !q.noNotify
}
