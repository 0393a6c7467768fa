// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

import (
	"bytes"
	"sync"

	"github.com/usbarmory/tamago/dma"
)

// EventHandler is invoked, once per received notification, with the decoded
// header and a bounded reader over the event payload. Handlers must not
// block; a handler that needs to suspend should hand the work off to its
// own queue.
type EventHandler func(Event, *bytes.Reader)

// eventDispatcher keeps a single receive buffer permanently posted on the
// event queue and fans out decoded notifications to every subscriber.
type eventDispatcher struct {
	sync.Mutex

	transport Transport
	queue     Queue

	buf   []byte
	token uint16

	subscribers []EventHandler
}

func newEventDispatcher(t Transport, q Queue) (*eventDispatcher, error) {
	d := &eventDispatcher{transport: t, queue: q}

	_, d.buf = dma.Reserve(eventSize, 0)

	if err := d.repost(); err != nil {
		return nil, err
	}

	return d, nil
}

// repost places the receive buffer back on the event queue. Callers must
// hold the dispatcher lock.
func (d *eventDispatcher) repost() error {
	token, err := d.queue.AddDMABuf(nil, [][]byte{d.buf})

	if err != nil {
		return err
	}

	d.token = token

	if d.queue.ShouldNotify() {
		d.transport.QueueNotify(EventQueue)
	}

	return nil
}

// subscribe registers a permanent handler. Subscriptions outlive the call
// and are never removed individually.
func (d *eventDispatcher) subscribe(h EventHandler) {
	d.Lock()
	defer d.Unlock()

	d.subscribers = append(d.subscribers, h)
}

// poll drains any notifications the device has completed on the event
// queue, dispatching each to every subscriber before re-posting the receive
// buffer. It is safe to call from an interrupt handler or from a polling
// loop; nothing in this package calls it on its own.
func (d *eventDispatcher) poll() {
	d.Lock()
	defer d.Unlock()

	for d.queue.CanPop() {
		usedLen, err := d.queue.PopUsedWithToken(d.token)

		if err != nil {
			return
		}

		if int(usedLen) < eventSize {
			d.repost()
			continue
		}

		payload := make([]byte, usedLen)
		copy(payload, d.buf[:usedLen])

		ev := decodeEvent(payload)

		if isKnownEvent(ev.Hdr.Code) {
			for _, h := range d.subscribers {
				h(ev, bytes.NewReader(payload))
			}
		}

		d.repost()
	}
}

func isKnownEvent(code uint32) bool {
	switch code {
	case EvtJackConnected, EvtJackDisconnected, EvtPcmPeriodElapsed, EvtPcmXrun, EvtCtlNotify:
		return true
	default:
		return false
	}
}
