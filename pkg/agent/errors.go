// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import "errors"

var (
	// ErrNotRegistered is returned when removing a Behaviour which was never added or already removed.
	ErrNotRegistered = errors.New("behaviour is not registered")

	// ErrKeyNotFound is returned by Agent.Get for unknown names.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNotActive is returned for operations on an Agent which is stopping or stopped.
	ErrNotActive = errors.New("agent is not active")

	// ErrBehaviourKilled is returned when a Message is enqueued to or received from a killed Behaviour.
	ErrBehaviourKilled = errors.New("behaviour is killed")

	// ErrDone lets a Step finish its Cyclic Behaviour regularly.
	ErrDone = errors.New("behaviour is done")
)
