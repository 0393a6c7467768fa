// VirtIO sound device bring-up example
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package example shows how the sound package is wired against a concrete
// VirtIO over MMIO transport, following the same MMIO slot convention used
// by the qemu microvm network device.
package example

import (
	"sync"

	"github.com/usbarmory/tamago/dma"
	"github.com/usbarmory/tamago/kvm/virtio"
	"github.com/usbarmory/tamago/sound"
)

const (
	// dmaStart and dmaSize match the qemu microvm board's DMA region,
	// carved out of guest RAM for driver-owned buffers.
	dmaStart = 0x50000000
	dmaSize  = 0x10000000 // 256MB

	// VirtioMMIOBase matches the qemu microvm virtio-mmio transport bus.
	VirtioMMIOBase = 0xfeb00000

	// VirtioSnd0Base is the next free MMIO slot after the network device
	// registered at VIRTIO_MMIO_BASE+0x2e00.
	VirtioSnd0Base = VirtioMMIOBase + 0x3000

	soundQueueSize = 64
)

var dmaInit sync.Once

// OpenSound brings up the VirtIO sound device at VirtioSnd0Base: it
// completes MMIO feature negotiation, sizes and registers the four chain
// queues, and hands the result to sound.Open.
func OpenSound() (*sound.Device, error) {
	dmaInit.Do(func() {
		dma.Init(dmaStart, dmaSize)
	})

	io := &virtio.MMIO{Base: VirtioSnd0Base}

	if err := io.Init(0); err != nil {
		return nil, err
	}

	queues := make([]*virtio.VirtualQueue, 4)

	for i := range queues {
		q := &virtio.VirtualQueue{}

		size := io.MaxQueueSize(i)

		if size == 0 || size > soundQueueSize {
			size = soundQueueSize
		}

		q.InitChain(size)
		io.SetQueueSize(i, size)
		io.SetQueue(i, q)

		queues[i] = q
	}

	return sound.Open(io, queues[sound.ControlQueue], queues[sound.EventQueue], queues[sound.TxQueue], queues[sound.RxQueue])
}
