// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

import (
	"github.com/usbarmory/tamago/kvm/virtio"
)

// Transport is the bus-level VirtIO handle consumed by this package. It is
// satisfied by *virtio.MMIO (see kvm/virtio) and is kept narrow so that a
// PCI or other transport binding can be substituted without touching the
// driver core.
type Transport interface {
	DeviceFeatures() uint64
	SetDriverFeatures(features uint64)
	NegotiatedFeatures() uint64

	// Config returns a snapshot of the device configuration space, or a
	// zero-length slice when the transport has no configuration region.
	Config(size int) []byte

	MaxQueueSize(index int) int
	SetQueueSize(index int, n int)
	SetQueue(index int, queue *virtio.VirtualQueue)
	QueueNotify(index int)
	SetReady()
}

// Queue is the virtqueue primitive consumed by this package, implemented by
// *virtio.VirtualQueue once initialized with InitChain.
type Queue interface {
	AddDMABuf(inputs [][]byte, outputs [][]byte) (token uint16, err error)
	AvailableDesc() int
	CanPop() bool
	PopUsed() (token uint16, usedLen uint32, err error)
	PopUsedWithToken(token uint16) (usedLen uint32, err error)
	ShouldNotify() bool
}

// queueCapacity bounds the sliding window used by blocking playback/capture.
const queueCapacity = 16
