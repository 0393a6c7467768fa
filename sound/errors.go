// VirtIO sound device driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sound

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStream is returned for a stream ID outside the range
	// reported by the device's PCM stream count.
	ErrUnknownStream = errors.New("sound: unknown stream id")

	// ErrInvalidState is returned when a lifecycle transition is
	// attempted from a state that does not allow it.
	ErrInvalidState = errors.New("sound: invalid stream state for operation")

	// ErrInvalidParam reports a malformed caller-supplied argument
	// (out-of-range id, invalid period/buffer relation, empty submission).
	ErrInvalidParam = errors.New("sound: invalid parameter")

	// ErrBufferOverflow is returned when the response a query would
	// elicit exceeds the control engine's fixed response buffer.
	ErrBufferOverflow = errors.New("sound: response exceeds control buffer capacity")
)

// RequestError reports a non-OK status code returned by the device in
// response to a control request.
type RequestError struct {
	Code   uint32
	Status uint32
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("sound: request 0x%04x failed with status 0x%04x", e.Code, e.Status)
}

func statusError(code uint32, status uint32) error {
	if status == StatusOK {
		return nil
	}

	return &RequestError{Code: code, Status: status}
}

// XferError reports a non-OK status record closing a PCM descriptor chain.
type XferError struct {
	Status uint32
}

func (e *XferError) Error() string {
	return fmt.Sprintf("sound: pcm transfer completion reported status 0x%04x", e.Status)
}
