// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

// ErrNotConnected is returned for operations on a Connection which is not, or no longer, connected.
var ErrNotConnected = errors.New("connection is not established")

// Predicate filters inbound Envelopes. A nil Predicate accepts everything.
type Predicate func(env *message.Envelope) bool

// Handler is called for each inbound Envelope accepted by its Predicate.
type Handler func(env *message.Envelope)

// Connection is an established or establishable session to a message network.
type Connection interface {
	// Connect negotiates the session. A failure must be reported as a *ConnectionError.
	Connect(ctx context.Context) error

	// Disconnect closes the session. Inbound Handlers must not be called after Disconnect returned.
	Disconnect(ctx context.Context) error

	// Send transmits an Envelope. A failure must be reported as a *SendError.
	Send(ctx context.Context, env *message.Envelope) error

	// RegisterInbound adds a Handler for inbound Envelopes. Handlers might be called from an internal goroutine.
	RegisterInbound(predicate Predicate, handler Handler)
}

// Credentials to authenticate an agent against its message network.
type Credentials struct {
	Identity message.Address
	Password string

	// VerifySecurity enables the verification of the network's certificates.
	VerifySecurity bool
}

// Factory creates a new, unconnected Connection for some Credentials.
type Factory func(creds Credentials) (Connection, error)

// ConnectionError reports a failed connection negotiation.
type ConnectionError struct {
	Identity message.Address
	Err      error
}

func (ce *ConnectionError) Error() string {
	return fmt.Sprintf("connecting %s failed: %v", ce.Identity, ce.Err)
}

func (ce *ConnectionError) Unwrap() error {
	return ce.Err
}

// SendError reports a failed transmission of a single Envelope.
type SendError struct {
	EnvelopeID string
	Err        error
}

func (se *SendError) Error() string {
	return fmt.Sprintf("sending envelope %s failed: %v", se.EnvelopeID, se.Err)
}

func (se *SendError) Unwrap() error {
	return se.Err
}

// inboundHandler is a registered Predicate and Handler pair.
type inboundHandler struct {
	predicate Predicate
	handler   Handler
}

// dispatch calls the handler if the predicate accepts the Envelope.
func (ih inboundHandler) dispatch(env *message.Envelope) {
	if ih.predicate == nil || ih.predicate(env) {
		ih.handler(env)
	}
}
