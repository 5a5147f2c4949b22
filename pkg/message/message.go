// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import (
	"fmt"

	"github.com/google/uuid"
)

// Message is exchanged between agents. A Message is treated as immutable after being passed to an agent; use Copy
// to derive a modified version.
type Message struct {
	// Sender of this Message. An agent fills in its own Address if unset.
	Sender Address

	// To is the recipient. An agent sending a Message without recipient addresses itself.
	To Address

	Body string

	// Thread identifies a conversation and is optional.
	Thread string

	// Metadata is an optional set of key-value pairs, e.g., to declare a performative or ontology.
	Metadata map[string]string
}

// Copy returns a deep copy of this Message.
func (msg Message) Copy() Message {
	c := msg
	if msg.Metadata != nil {
		c.Metadata = make(map[string]string, len(msg.Metadata))
		for k, v := range msg.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// Reply creates a new Message addressed to this Message's sender within the same thread.
func (msg Message) Reply(body string) Message {
	return Message{
		Sender: msg.To,
		To:     msg.Sender,
		Body:   body,
		Thread: msg.Thread,
	}
}

// Get a metadata value; an empty string is returned for unknown keys.
func (msg Message) Get(key string) string {
	return msg.Metadata[key]
}

// Prepare wraps a copy of this Message into a new Envelope with a fresh identifier.
func (msg Message) Prepare() *Envelope {
	return &Envelope{
		ID:      uuid.NewString(),
		Message: msg.Copy(),
	}
}

// FromEnvelope extracts the Message of a received Envelope.
func FromEnvelope(env *Envelope) Message {
	return env.Message.Copy()
}

func (msg Message) String() string {
	return fmt.Sprintf("Message(from=%s, to=%s, thread=%q, body=%q, metadata=%v)",
		msg.Sender, msg.To, msg.Thread, msg.Body, msg.Metadata)
}
