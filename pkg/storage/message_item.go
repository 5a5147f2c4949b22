// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"bytes"
	"time"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

// MessageItem is a wrapper for meta data around an Envelope. The Store operates on MessageItems instead of
// Envelopes; the Envelope itself is kept in its CBOR representation.
type MessageItem struct {
	Id string `badgerhold:"key"`

	Sender string `badgerholdIndex:"Sender"`
	To     string `badgerholdIndex:"To"`
	Thread string `badgerholdIndex:"Thread"`

	Received time.Time `badgerholdIndex:"Received"`

	Data []byte
}

// newMessageItem creates a new MessageItem for an Envelope. Addresses are indexed by their bare form.
func newMessageItem(env *message.Envelope, received time.Time) (mi MessageItem, err error) {
	mi = MessageItem{
		Id: env.ID,

		Sender: env.Sender.Bare().String(),
		To:     env.To.Bare().String(),
		Thread: env.Thread,

		Received: received,
	}

	mi.Data, err = env.Bytes()
	return
}

// Load the Envelope of this MessageItem.
func (mi MessageItem) Load() (*message.Envelope, error) {
	return message.ParseEnvelope(bytes.NewBuffer(mi.Data))
}
