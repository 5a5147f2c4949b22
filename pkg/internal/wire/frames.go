// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"fmt"
	"io"

	"github.com/dtn7/cboring"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

// Status acknowledges a previous Frame or reports an error with a non-empty string.
type Status struct {
	ErrorMsg string
}

// NewStatus creates a Status for an optional error.
func NewStatus(err error) *Status {
	if err == nil {
		return &Status{}
	}
	return &Status{err.Error()}
}

func (*Status) TypeCode() uint64 {
	return StatusCode
}

func (s *Status) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(s.ErrorMsg, w)
}

func (s *Status) UnmarshalCbor(r io.Reader) (err error) {
	s.ErrorMsg, err = cboring.ReadTextString(r)
	return
}

// Register is sent from an agent to the relay to claim its Address.
type Register struct {
	Identity message.Address
	Password string
}

func (*Register) TypeCode() uint64 {
	return RegisterCode
}

func (reg *Register) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(string(reg.Identity), w); err != nil {
		return err
	}

	return cboring.WriteTextString(reg.Password, w)
}

func (reg *Register) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 2 {
		return fmt.Errorf("expected CBOR array of 2 elements, not %d", n)
	}

	if identity, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		reg.Identity = message.Address(identity)
	}

	if password, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		reg.Password = password
	}

	return nil
}

// Envelope carries a message.Envelope in both directions.
type Envelope struct {
	Env message.Envelope
}

func (*Envelope) TypeCode() uint64 {
	return EnvelopeCode
}

func (e *Envelope) MarshalCbor(w io.Writer) error {
	return cboring.Marshal(&e.Env, w)
}

func (e *Envelope) UnmarshalCbor(r io.Reader) error {
	return cboring.Unmarshal(&e.Env, r)
}
