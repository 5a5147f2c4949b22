// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

// Behaviour is a unit of reactive logic, registered at an Agent.
//
// The Agent calls Attach and Start when the Behaviour is added, Kill when it is removed or the Agent stops.
// Match and Enqueue are called by the Agent's router for each inbound Message, both on the worker's goroutine;
// therefore, they must not block. After Kill, Enqueue must reject Messages.
type Behaviour interface {
	// Attach binds the Behaviour to its owning Agent. A non-nil Template overrides the Behaviour's own Template.
	Attach(owner *Agent, tmpl message.Template)

	// Match checks if an inbound Message is of interest.
	Match(msg message.Message) bool

	// Enqueue an inbound Message into the Behaviour's mailbox.
	Enqueue(ctx context.Context, msg message.Message) error

	// Start the Behaviour's logic.
	Start() error

	// Kill the Behaviour. It must not be restarted afterwards.
	Kill() error
}
