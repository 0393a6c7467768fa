// VirtIO Virtual Queue descriptor chain support
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import (
	"encoding/binary"
	"errors"

	"github.com/usbarmory/tamago/dma"
)

// descriptor table entry size: Address(8) + Length(4) + Flags(2) + Next(2)
const descEntrySize = 16

// Used ring flags
const NoNotify = 1

var (
	ErrInvalidArgs    = errors.New("virtio: add_dma_buf requires at least one buffer")
	ErrBufferTooSmall = errors.New("virtio: descriptor chain exceeds queue size")
	ErrWrongToken     = errors.New("virtio: used descriptor does not match expected token")
	ErrNotReady       = errors.New("virtio: no completion available")
)

// writeDescriptor overwrites the on-wire descriptor table entry at index i,
// mirroring the update on the driver-side Descriptor for bookkeeping.
func (d *VirtualQueue) writeDescriptor(i uint16, addr uint64, length uint32, flags uint16, next uint16) {
	off := int(i) * descEntrySize

	binary.LittleEndian.PutUint64(d.buf[off:], addr)
	binary.LittleEndian.PutUint32(d.buf[off+8:], length)
	binary.LittleEndian.PutUint16(d.buf[off+12:], flags)
	binary.LittleEndian.PutUint16(d.buf[off+14:], next)

	desc := d.Descriptors[i]
	desc.Address = addr
	desc.length = length
	desc.Flags = flags
	desc.Next = next
}

// AddDMABuf chains device-readable input buffers followed by device-writable
// output buffers as a single descriptor chain and posts it to the available
// ring. The argument buffers must already reside in DMA accessible memory
// (see the dma package). It returns the head descriptor index, which acts as
// the chain token until PopUsed/PopUsedWithToken retires it.
func (d *VirtualQueue) AddDMABuf(inputs [][]byte, outputs [][]byte) (token uint16, err error) {
	n := len(inputs) + len(outputs)

	if n == 0 {
		return 0, ErrInvalidArgs
	}

	d.Lock()
	defer d.Unlock()

	if n > len(d.free) {
		return 0, ErrBufferTooSmall
	}

	indices := d.free[len(d.free)-n:]
	d.free = d.free[:len(d.free)-n]

	i := 0

	write := func(buf []byte, flags uint16) {
		res, addr := dma.Reserved(buf)

		if !res {
			addr = dma.Alloc(buf, 0)
		}

		next := uint16(0)

		if i < n-1 {
			flags |= Next
			next = indices[i+1]
		}

		d.writeDescriptor(indices[i], uint64(addr), uint32(len(buf)), flags, next)
		i++
	}

	for _, buf := range inputs {
		write(buf, 0)
	}

	for _, buf := range outputs {
		write(buf, Write)
	}

	token = indices[0]
	d.chainLen[token] = n

	d.Available.Set(d.Available.index%d.size, token)
	d.Available.Index(d.Available.index + 1)

	return token, nil
}

// AvailableDesc returns the number of free descriptors in the queue.
func (d *VirtualQueue) AvailableDesc() int {
	d.Lock()
	defer d.Unlock()

	return len(d.free)
}

// CanPop reports whether the used ring holds an unconsumed completion.
func (d *VirtualQueue) CanPop() bool {
	d.Lock()
	defer d.Unlock()

	return d.Used.Index() != d.lastUsed
}

// PopUsed reaps the next completion from the used ring in device-chosen
// order, returning the chain token and the number of bytes the device wrote,
// and releases the chain's descriptors back to the free list.
func (d *VirtualQueue) PopUsed() (token uint16, usedLen uint32, err error) {
	d.Lock()
	defer d.Unlock()

	if d.Used.Index() == d.lastUsed {
		return 0, 0, ErrNotReady
	}

	ring := d.Used.Ring(d.lastUsed % d.size)
	d.lastUsed++

	token = uint16(ring.Index)
	usedLen = ring.Length

	d.release(token)

	return token, usedLen, nil
}

// PopUsedWithToken reaps the next completion only if it matches token, which
// must be the head of the used ring; it fails with ErrWrongToken otherwise.
func (d *VirtualQueue) PopUsedWithToken(token uint16) (usedLen uint32, err error) {
	d.Lock()
	defer d.Unlock()

	if d.Used.Index() == d.lastUsed {
		return 0, ErrNotReady
	}

	ring := d.Used.Ring(d.lastUsed % d.size)

	if uint16(ring.Index) != token {
		return 0, ErrWrongToken
	}

	d.lastUsed++
	d.release(token)

	return ring.Length, nil
}

// release returns a chain's descriptors to the free list.
func (d *VirtualQueue) release(token uint16) {
	n, ok := d.chainLen[token]

	if !ok {
		return
	}

	delete(d.chainLen, token)

	idx := token

	for i := 0; i < n; i++ {
		d.free = append(d.free, idx)
		idx = d.Descriptors[idx].Next
	}
}

// ShouldNotify reports whether the device has not suppressed notifications
// for this queue.
func (d *VirtualQueue) ShouldNotify() bool {
	d.Lock()
	defer d.Unlock()

	return d.Used.Flags&NoNotify == 0
}
