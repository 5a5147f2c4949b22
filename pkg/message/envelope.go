// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/dtn7/cboring"
)

// Envelope is the wire representation of a Message, created by Message.Prepare.
//
// Its CBOR form is an array of six elements: ID, sender, recipient, body, thread, and a map of metadata.
type Envelope struct {
	ID string
	Message
}

// MarshalCbor writes this Envelope's CBOR representation.
func (env *Envelope) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(6, w); err != nil {
		return err
	}

	fields := []string{env.ID, string(env.Sender), string(env.To), env.Body, env.Thread}
	for _, field := range fields {
		if err := cboring.WriteTextString(field, w); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(env.Metadata))
	for k := range env.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := cboring.WriteMapPairLength(uint64(len(keys)), w); err != nil {
		return err
	}
	for _, k := range keys {
		if err := cboring.WriteTextString(k, w); err != nil {
			return err
		}
		if err := cboring.WriteTextString(env.Metadata[k], w); err != nil {
			return err
		}
	}

	return nil
}

// UnmarshalCbor reads an Envelope from its CBOR representation.
func (env *Envelope) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 6 {
		return fmt.Errorf("expected array of six elements, got %d", n)
	}

	var fields [5]string
	for i := range fields {
		if field, err := cboring.ReadTextString(r); err != nil {
			return fmt.Errorf("reading envelope field %d failed: %v", i, err)
		} else {
			fields[i] = field
		}
	}

	env.ID = fields[0]
	env.Sender = Address(fields[1])
	env.To = Address(fields[2])
	env.Body = fields[3]
	env.Thread = fields[4]

	n, err := cboring.ReadMapPairLength(r)
	if err != nil {
		return err
	}

	env.Metadata = nil
	if n > 0 {
		env.Metadata = make(map[string]string)
	}
	for i := uint64(0); i < n; i++ {
		k, kErr := cboring.ReadTextString(r)
		if kErr != nil {
			return kErr
		}
		v, vErr := cboring.ReadTextString(r)
		if vErr != nil {
			return vErr
		}
		env.Metadata[k] = v
	}

	return nil
}

// Bytes returns the CBOR representation.
func (env *Envelope) Bytes() ([]byte, error) {
	buff := new(bytes.Buffer)
	if err := env.MarshalCbor(buff); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// ParseEnvelope reads an Envelope from a reader.
func ParseEnvelope(r io.Reader) (env *Envelope, err error) {
	env = new(Envelope)
	if err = env.UnmarshalCbor(r); err != nil {
		env = nil
	}
	return
}

func (env *Envelope) String() string {
	return fmt.Sprintf("Envelope(%s, %v)", env.ID, env.Message)
}
