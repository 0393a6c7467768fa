// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

import (
	"encoding/binary"
)

// configSize is the byte length of the four 32-bit counters read from the
// device configuration space.
const configSize = 16

// Config is a read-only view of the device configuration space.
type Config struct {
	Jacks    uint32
	Streams  uint32
	Chmaps   uint32
	Controls uint32
}

// readConfig decodes the device configuration counters, tolerating a
// transport that reports no configuration region at all (all fields read as
// zero in that case). The Controls field is only meaningful once CTLS has
// been negotiated; callers that have not negotiated it should treat it as
// zero regardless of what is decoded here (see negotiateCtls).
func readConfig(t Transport) Config {
	buf := t.Config(configSize)

	var c Config

	if len(buf) < configSize {
		return c
	}

	c.Jacks = binary.LittleEndian.Uint32(buf[0:])
	c.Streams = binary.LittleEndian.Uint32(buf[4:])
	c.Chmaps = binary.LittleEndian.Uint32(buf[8:])
	c.Controls = binary.LittleEndian.Uint32(buf[12:])

	return c
}
