// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sound implements a driver for the VirtIO sound paravirtualized
// audio device, following the reference specification:
//   - Virtual I/O Device (VIRTIO) - Version 1.2, §5.14 Sound Device
//
// The driver consumes an abstract Transport and Queue pair (see
// transport.go) so that it has no dependency on a specific bus (MMIO, PCI)
// or interrupt controller, in the same spirit as the virtio and kvm/virtio
// packages it is built alongside.
//
// This package is only meant to be used with `GOOS=tamago` as supported by
// the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package sound

import (
	"encoding/binary"
)

// DeviceName is the literal name under which a probed device registers
// itself (see Open/devices).
const DeviceName = "Virtio-Sound"

// Queue indices.
const (
	ControlQueue = 0
	EventQueue   = 1
	TxQueue      = 2
	RxQueue      = 3
)

// Request codes.
const (
	JackInfo  = 0x0001
	JackRemap = 0x0002

	PcmInfoReq      = 0x0100
	PcmSetParamsReq = 0x0101
	PcmPrepare      = 0x0102
	PcmRelease      = 0x0103
	PcmStart        = 0x0104
	PcmStop         = 0x0105

	ChmapInfoReq = 0x0200

	CtlInfo       = 0x0300
	CtlEnumItems  = 0x0301
	CtlRead       = 0x0302
	CtlWrite      = 0x0303
	CtlTlvRead    = 0x0304
	CtlTlvWrite   = 0x0305
	CtlTlvCommand = 0x0306
)

// Event codes.
const (
	EvtJackConnected    = 0x1000
	EvtJackDisconnected = 0x1001

	EvtPcmPeriodElapsed = 0x1100
	EvtPcmXrun          = 0x1101

	EvtCtlNotify = 0x1200
)

// Status codes.
const (
	StatusOK       = 0x8000
	StatusBadMsg   = 0x8001
	StatusNotSupp  = 0x8002
	StatusIOErr    = 0x8003
)

// Stream data flow directions.
const (
	Output = 0
	Input  = 1
)

// Device feature bits.
const (
	// FeatureCtls advertises support for control elements (mixer
	// controls). The device offer is reflected but the control element
	// request family (CTL_*) is not implemented by this driver.
	FeatureCtls = 0
)

// PCM stream feature bits.
const (
	FeatureShmemHost        = 0
	FeatureShmemGuest       = 1
	FeatureMsgPolling       = 2
	FeatureEvtShmemPeriods  = 3
	FeatureEvtXruns         = 4
)

// PCM sample formats, in selector order (VIRTIO_SND_PCM_FMT_*).
const (
	FormatIMAADPCM = iota
	FormatMuLaw
	FormatALaw
	FormatS8
	FormatU8
	FormatS16
	FormatU16
	FormatS18_3
	FormatU18_3
	FormatS20_3
	FormatU20_3
	FormatS24_3
	FormatU24_3
	FormatS20
	FormatU20
	FormatS24
	FormatU24
	FormatS32
	FormatU32
	FormatFloat
	FormatFloat64
	FormatDSDU8
	FormatDSDU16
	FormatDSDU32
	FormatIEC958Subframe
	numFormats
)

// PCM frame rates, in selector order (VIRTIO_SND_PCM_RATE_*).
const (
	Rate5512 = iota
	Rate8000
	Rate11025
	Rate16000
	Rate22050
	Rate32000
	Rate44100
	Rate48000
	Rate64000
	Rate88200
	Rate96000
	Rate176400
	Rate192000
	Rate384000
	numRates
)

// FormatMask converts a format selector to its capability bitmask bit by
// shifting 1 left by the selector value; out-of-range selectors return 0.
// There is no separate selector-to-bit table: every selector maps to the bit
// at its own position.
func FormatMask(format uint8) uint64 {
	if int(format) >= numFormats {
		return 0
	}

	return 1 << uint(format)
}

// RateMask converts a rate selector to its capability bitmask bit.
func RateMask(rate uint8) uint64 {
	if int(rate) >= numRates {
		return 0
	}

	return 1 << uint(rate)
}

// Channel position enumeration (VIRTIO_SND_CHMAP_*), as carried in the
// positions of a ChmapInfo record.
const (
	ChmapNone = 0
	ChmapNA   = 1
	ChmapMono = 2
	ChmapFL   = 3
	ChmapFR   = 4
	ChmapRL   = 5
	ChmapRR   = 6
	ChmapFC   = 7
	ChmapLFE  = 8
	ChmapSL   = 9
	ChmapSR   = 10
	ChmapRC   = 11
	ChmapFLC  = 12
	ChmapFRC  = 13
	ChmapRLC  = 14
	ChmapRRC  = 15
	ChmapFLW  = 16
	ChmapFRW  = 17
	ChmapFLH  = 18
	ChmapFCH  = 19
	ChmapFRH  = 20
	ChmapTC   = 21
	ChmapTFL  = 22
	ChmapTFR  = 23
	ChmapTFC  = 24
	ChmapTRL  = 25
	ChmapTRR  = 26
	ChmapTRC  = 27
	ChmapTFLC = 28
	ChmapTFRC = 29
	ChmapTSL  = 30
	ChmapTSR  = 31
	ChmapLLFE = 32
	ChmapRLFE = 33
	ChmapBC   = 34
	ChmapBLC  = 35
	ChmapBRC  = 36
)

// ChmapMaxChannels is the maximum number of positions carried by a ChmapInfo
// record.
const ChmapMaxChannels = 18

// on-wire record sizes, in bytes.
const (
	hdrSize         = 4
	infoSize        = 4
	pcmHdrSize      = hdrSize + 4
	queryInfoSize   = hdrSize + 4 + 4 + 4
	pcmSetParamsSize = pcmHdrSize + 4 + 4 + 4 + 1 + 1 + 1 + 1
	pcmInfoSize     = infoSize + 4 + 8 + 8 + 1 + 1 + 1 + 5
	chmapInfoSize   = infoSize + 1 + 1 + ChmapMaxChannels
	pcmStatusSize   = 4 + 4
	eventSize       = hdrSize + 4
)

// Hdr is the common request/response header: a request type when sent by
// the driver, a status code when returned by the device.
type Hdr struct {
	Code uint32
}

func (h Hdr) bytes() []byte {
	buf := make([]byte, hdrSize)
	binary.LittleEndian.PutUint32(buf, h.Code)
	return buf
}

func decodeHdr(buf []byte) (h Hdr) {
	h.Code = binary.LittleEndian.Uint32(buf)
	return
}

// PcmHdr is the common PCM control request header.
type PcmHdr struct {
	Hdr      Hdr
	StreamID uint32
}

func (h PcmHdr) bytes() []byte {
	buf := make([]byte, pcmHdrSize)
	copy(buf, h.Hdr.bytes())
	binary.LittleEndian.PutUint32(buf[hdrSize:], h.StreamID)
	return buf
}

// QueryInfo requests information about a contiguous range of items (PCM
// streams, channel maps, jacks).
type QueryInfo struct {
	Hdr     Hdr
	StartID uint32
	Count   uint32
	Size    uint32
}

func (q QueryInfo) bytes() []byte {
	buf := make([]byte, queryInfoSize)
	off := 0
	copy(buf[off:], q.Hdr.bytes())
	off += hdrSize
	binary.LittleEndian.PutUint32(buf[off:], q.StartID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], q.Count)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], q.Size)
	return buf
}

// Info is the common response information header.
type Info struct {
	HdaFnNid uint32
}

func decodeInfo(buf []byte) (i Info) {
	i.HdaFnNid = binary.LittleEndian.Uint32(buf)
	return
}

// PcmSetParams replays driver-selected stream parameters to the device.
type PcmSetParams struct {
	PcmHdr      PcmHdr
	BufferBytes uint32
	PeriodBytes uint32
	Features    uint32
	Channels    uint8
	Format      uint8
	Rate        uint8
	_           uint8
}

func (p PcmSetParams) bytes() []byte {
	buf := make([]byte, pcmSetParamsSize)
	off := 0
	copy(buf[off:], p.PcmHdr.bytes())
	off += pcmHdrSize
	binary.LittleEndian.PutUint32(buf[off:], p.BufferBytes)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.PeriodBytes)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.Features)
	off += 4
	buf[off] = p.Channels
	buf[off+1] = p.Format
	buf[off+2] = p.Rate
	return buf
}

// PcmInfo describes one PCM stream's static capabilities.
type PcmInfo struct {
	Info        Info
	Features    uint32
	Formats     uint64
	Rates       uint64
	Direction   uint8
	ChannelsMin uint8
	ChannelsMax uint8
}

func decodePcmInfo(buf []byte) (p PcmInfo) {
	off := 0
	p.Info = decodeInfo(buf[off:])
	off += infoSize
	p.Features = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	p.Formats = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	p.Rates = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	p.Direction = buf[off]
	p.ChannelsMin = buf[off+1]
	p.ChannelsMax = buf[off+2]
	return
}

// ChmapInfo describes one channel map.
type ChmapInfo struct {
	Info      Info
	Direction uint8
	Channels  uint8
	Positions [ChmapMaxChannels]uint8
}

func decodeChmapInfo(buf []byte) (c ChmapInfo) {
	off := 0
	c.Info = decodeInfo(buf[off:])
	off += infoSize
	c.Direction = buf[off]
	c.Channels = buf[off+1]
	copy(c.Positions[:], buf[off+2:off+2+ChmapMaxChannels])
	return
}

// PcmStatus is the device-written status record that closes out a PCM
// transfer descriptor chain.
type PcmStatus struct {
	Status       uint32
	LatencyBytes uint32
}

func decodePcmStatus(buf []byte) (s PcmStatus) {
	s.Status = binary.LittleEndian.Uint32(buf)
	s.LatencyBytes = binary.LittleEndian.Uint32(buf[4:])
	return
}

// Event is a device-originated notification received on the event queue.
type Event struct {
	Hdr  Hdr
	Data uint32
}

func decodeEvent(buf []byte) (e Event) {
	e.Hdr = decodeHdr(buf)
	e.Data = binary.LittleEndian.Uint32(buf[hdrSize:])
	return
}

// pcmXferHdr is the 4-byte stream-id header prefixed to every PCM frame
// submission on the tx/rx queues.
func pcmXferHdr(streamID uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, streamID)
	return buf
}
