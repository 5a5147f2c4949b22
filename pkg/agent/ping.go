// SPDX-FileCopyrightText: 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

// Ping is a simple Behaviour to "pong" / acknowledge incoming Messages.
type Ping struct {
	*Cyclic

	replies uint64
}

// NewPing creates a new Ping Behaviour.
func NewPing() *Ping {
	p := &Ping{}
	p.Cyclic = NewCyclic(p.step)
	return p
}

func (p *Ping) step(ctx context.Context, b *Base) error {
	msg, err := b.Receive(ctx)
	if err != nil {
		return err
	}

	reply := msg.Reply("pong")
	if reply.To.IsZero() {
		log.WithField("message", msg).Info("Received message without sender, not answering")
		return nil
	}

	// Answer from this agent's identity, even if the Message was addressed to some resource.
	reply.Sender = ""

	if err := b.Send(reply).Err(); err != nil {
		log.WithError(err).WithField("message", msg).Warn("Sending pong errored")
	} else {
		atomic.AddUint64(&p.replies, 1)
	}
	return nil
}

// Replies is the amount of sent pongs.
func (p *Ping) Replies() uint64 {
	return atomic.LoadUint64(&p.replies)
}

// PingTemplate matches Messages with the body "ping".
func PingTemplate() message.Template {
	return message.FieldTemplate{Body: "ping"}
}
