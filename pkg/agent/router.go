// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

// isRecipient is the inbound Predicate, accepting Envelopes for this Agent, ignoring the resource.
func (a *Agent) isRecipient(env *message.Envelope) bool {
	return env != nil && env.To.SameAgent(a.identity)
}

// messageReceived is called by the Connection for each inbound Envelope. The routing is handed over to the Worker.
func (a *Agent) messageReceived(env *message.Envelope) {
	msg := message.FromEnvelope(env)

	f := a.worker.Submit(func(ctx context.Context) (interface{}, error) {
		return a.route(ctx, msg), nil
	})

	// A stopped Worker fails the Future immediately; otherwise, do not wait for the routing.
	select {
	case <-f.Done():
		if err := f.Err(); err != nil {
			a.log().WithError(err).WithField("envelope", env.ID).Debug("Dropping inbound message, worker is gone")
		}
	default:
	}
}

// route a Message to each matching Behaviour, in registration order. The amount of matches is returned.
//
// Each enqueue is submitted as its own Task; a failing enqueue is logged and does not affect the others. A killed
// Behaviour is unregistered.
func (a *Agent) route(_ context.Context, msg message.Message) (matches int) {
	for _, b := range a.behaviours.Snapshot() {
		if !safeMatch(b, msg) {
			continue
		}

		matches++

		b := b
		a.worker.Submit(func(ctx context.Context) (interface{}, error) {
			if err := b.Enqueue(ctx, msg.Copy()); errors.Is(err, ErrBehaviourKilled) {
				// A Behaviour which finished on its own is still registered.
				if a.behaviours.Remove(b) {
					a.log().WithField("behaviour", fmt.Sprintf("%T", b)).
						Debug("Unregistered finished behaviour")
				}
				return nil, err
			} else if err != nil {
				a.log().WithError(err).WithField("behaviour", fmt.Sprintf("%T", b)).
					Warn("Enqueuing message errored")
				return nil, err
			}
			return nil, nil
		})
	}

	if matches == 0 {
		a.log().WithField("message", msg).Debug("No behaviour matched inbound message, dropping it")
	}
	return
}

// safeMatch calls Match, treating a panic as a mismatch.
func safeMatch(b Behaviour, msg message.Message) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
		}
	}()

	return b.Match(msg)
}
