// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package message defines the values exchanged between agents.
//
// A Message is the in-process representation, addressed from a sender to a recipient Address. Before it is handed
// to a network connection, a Message is wrapped into an Envelope which adds an unique identifier and knows how to
// serialize itself as CBOR.
//
//	msg := message.Message{
//	  To:   message.MustParseAddress("bob@example.org"),
//	  Body: "hello world",
//	}
//	env := msg.Prepare()
//
// Templates decide whether some Message is of interest for a receiver. FieldTemplates match on the Message's fields
// and can be combined with And, Or, Xor and Not.
//
//	tmpl := message.And(
//	  message.FieldTemplate{Sender: message.MustParseAddress("alice@example.org")},
//	  message.Not(message.FieldTemplate{Body: "ping"}))
package message
