// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package wire implements the CBOR frames exchanged between a WebSocket connection and a relay.
package wire

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dtn7/cboring"
)

// Frame describes a message which might be sent over a WebSocket between an agent and a relay.
type Frame interface {
	// TypeCode is an unique identifier for each frame type.
	TypeCode() uint64

	// CborMarshaler must only be implemented for the type's logic.
	// A generic wrapper for the TypeCode is available in the WriteFrame and ReadFrame functions.
	cboring.CborMarshaler
}

const (
	StatusCode   uint64 = 0
	RegisterCode uint64 = 1
	EnvelopeCode uint64 = 2
)

var frameMapping = map[uint64]reflect.Type{
	StatusCode:   reflect.TypeOf(Status{}),
	RegisterCode: reflect.TypeOf(Register{}),
	EnvelopeCode: reflect.TypeOf(Envelope{}),
}

// WriteFrame writes a Frame wrapped with its type code as CBOR.
func WriteFrame(f Frame, w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(f.TypeCode(), w); err != nil {
		return err
	}

	return cboring.Marshal(f, w)
}

// ReadFrame reads a new Frame based on its type code from CBOR.
func ReadFrame(r io.Reader) (f Frame, err error) {
	if n, arrErr := cboring.ReadArrayLength(r); arrErr != nil {
		err = arrErr
		return
	} else if n != 2 {
		err = fmt.Errorf("expected array of two elements, got %d", n)
		return
	}

	if n, typeErr := cboring.ReadUInt(r); typeErr != nil {
		err = typeErr
		return
	} else if t, ok := frameMapping[n]; !ok {
		err = fmt.Errorf("no known frame type code %d", n)
		return
	} else {
		f = reflect.New(t).Interface().(Frame)
	}

	if fErr := cboring.Unmarshal(f, r); fErr != nil {
		f = nil
		err = fErr
	}
	return
}
