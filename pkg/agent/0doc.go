// SPDX-FileCopyrightText: 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent provides the Agent, an addressable entity within a message network, and its Behaviours.
//
// An Agent owns a connection.Connection, which is exclusively operated by a worker.Worker on its own goroutine.
// Inbound Messages are routed to each registered Behaviour whose Template matches, in registration order. A Behaviour
// can be implemented in various forms; the Base offers a mailbox to be drained, while the Cyclic executes its Step
// on an own goroutine. Both possibilities are used by the included Behaviours, for example the Ping or the Archive.
package agent
