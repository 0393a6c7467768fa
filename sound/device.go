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
)

// Device is the sound card handle exposed to the host sound subsystem. It
// mediates calls to the PCM lifecycle manager and data path, and owns the
// shared transport/queue/buffer state that interrupt-driven callbacks
// (event dispatch, completion reaping) also reference.
type Device struct {
	transport Transport

	cfg Config
	ctl *controlEngine

	events *eventDispatcher

	reg *registry
	lc  *lifecycle
	dp  *dataPath
}

var (
	registryMu sync.Mutex
	devices    = map[string]*Device{}
)

// register adds d to the process-wide name registry. Duplicate names
// overwrite: last writer wins.
func register(name string, d *Device) {
	registryMu.Lock()
	defer registryMu.Unlock()

	devices[name] = d
}

// Lookup returns the device registered under name, populated by a prior
// call to Open.
func Lookup(name string) (*Device, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()

	d, ok := devices[name]

	return d, ok
}

// negotiateCtls offers the CTLS feature bit to the device, if the device
// advertises it, by adding it to the driver features, and returns whether
// the device advertised it. The device status is not read back afterwards,
// so a device that refuses the updated driver features goes undetected.
// This must happen
// before the config view's Controls counter can be trusted (see the design
// note on commented-out feature negotiation).
func negotiateCtls(t Transport) bool {
	if t.DeviceFeatures()&(1<<FeatureCtls) == 0 {
		return false
	}

	t.SetDriverFeatures(t.NegotiatedFeatures() | (1 << FeatureCtls))

	return true
}

// Open brings up a sound device on top of an already bus-initialized
// transport (status Acknowledge|Driver|FeaturesOk already set, queues sized
// by the caller) and four chain-mode queues, registers it under DeviceName,
// and returns its handle.
func Open(transport Transport, controlQ, eventQ, txQ, rxQ Queue) (*Device, error) {
	ctlsOK := negotiateCtls(transport)

	cfg := readConfig(transport)

	if !ctlsOK {
		cfg.Controls = 0
	}

	ctl := newControlEngine(transport, controlQ)

	events, err := newEventDispatcher(transport, eventQ)

	if err != nil {
		return nil, err
	}

	reg := &registry{}
	lc := &lifecycle{reg: reg, ctl: ctl}
	dp := newDataPath(transport, txQ, rxQ, reg, lc)

	d := &Device{
		transport: transport,
		cfg:       cfg,
		ctl:       ctl,
		events:    events,
		reg:       reg,
		lc:        lc,
		dp:        dp,
	}

	transport.SetReady()

	register(DeviceName, d)

	return d, nil
}

// Config returns the device's configuration view.
func (d *Device) Config() Config {
	return d.cfg
}

func (d *Device) ensureSetup() error {
	return d.reg.setup(d.cfg, d.ctl)
}

// Stream returns the discovered capabilities of a PCM stream, running
// lazy set-up if it has not already run.
func (d *Device) Stream(streamID uint32) (PcmInfo, error) {
	if err := d.ensureSetup(); err != nil {
		return PcmInfo{}, err
	}

	return d.reg.stream(streamID)
}

// StreamCount returns the number of discovered PCM streams.
func (d *Device) StreamCount() (int, error) {
	if err := d.ensureSetup(); err != nil {
		return 0, err
	}

	return d.reg.streamCount(), nil
}

// SetParameters, Prepare, Start, Stop and Release drive the PCM lifecycle
// state machine (§4.6) for the given stream.
func (d *Device) SetParameters(streamID uint32, p Params) error {
	if err := d.ensureSetup(); err != nil {
		return err
	}

	return d.lc.SetParameters(streamID, p)
}

func (d *Device) Prepare(streamID uint32) error {
	if err := d.ensureSetup(); err != nil {
		return err
	}

	return d.lc.Prepare(streamID)
}

func (d *Device) Start(streamID uint32) error {
	if err := d.ensureSetup(); err != nil {
		return err
	}

	return d.lc.Start(streamID)
}

func (d *Device) Stop(streamID uint32) error {
	if err := d.ensureSetup(); err != nil {
		return err
	}

	return d.lc.Stop(streamID)
}

func (d *Device) Release(streamID uint32) error {
	if err := d.ensureSetup(); err != nil {
		return err
	}

	return d.lc.Release(streamID)
}

// State returns a stream's current lifecycle state.
func (d *Device) State(streamID uint32) (State, error) {
	if err := d.ensureSetup(); err != nil {
		return 0, err
	}

	return d.lc.State(streamID)
}

// Play drives blocking playback of frames on streamID, chunked by the
// stream's negotiated period.
func (d *Device) Play(streamID uint32, frames []byte) error {
	if err := d.ensureSetup(); err != nil {
		return err
	}

	return d.dp.Write(streamID, frames)
}

// PlayAsync submits exactly one period of frames without blocking for
// completion, returning a token to be retired with Ack.
func (d *Device) PlayAsync(streamID uint32, frame []byte) (uint16, error) {
	if err := d.ensureSetup(); err != nil {
		return 0, err
	}

	return d.dp.SubmitNonBlocking(streamID, frame)
}

// Ack retires a token returned by PlayAsync.
func (d *Device) Ack(token uint16) error {
	return d.dp.Ack(token)
}

// Record drives the rx path until buffer is filled from streamID.
func (d *Device) Record(streamID uint32, buffer []byte) error {
	if err := d.ensureSetup(); err != nil {
		return err
	}

	return d.dp.Read(streamID, buffer)
}

// RegisterEventCallback pushes a permanent subscriber onto the event list.
func (d *Device) RegisterEventCallback(h EventHandler) {
	d.events.subscribe(h)
}

// PollEvents drains and dispatches any notifications completed on the event
// queue. Call this from an interrupt handler, or periodically from a
// polling loop on platforms without a true interrupt callback path.
func (d *Device) PollEvents() {
	d.events.poll()
}

// Chmaps returns the channel maps discovered at set-up, which may be empty
// if the device does not implement the CHMAP_INFO family.
func (d *Device) Chmaps() ([]ChmapInfo, error) {
	if err := d.ensureSetup(); err != nil {
		return nil, err
	}

	d.reg.Lock()
	defer d.reg.Unlock()

	out := make([]ChmapInfo, len(d.reg.chmaps))
	copy(out, d.reg.chmaps)

	return out, nil
}
