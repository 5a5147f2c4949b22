// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package worker

// State of a Worker. A Worker walks through the States in their order and never returns to a previous one.
type State uint32

const (
	Created State = iota
	Connecting
	Running
	Disconnecting
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Connecting:
		return "connecting"
	case Running:
		return "running"
	case Disconnecting:
		return "disconnecting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
