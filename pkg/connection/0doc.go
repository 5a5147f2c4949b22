// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package connection describes the session between an agent and its message network.
//
// A Connection connects and disconnects, sends Envelopes and calls registered Handlers for inbound Envelopes. Its methods might block on network I/O and are expected to be called from one goroutine only,
// i.e., the worker owning this Connection.
//
// Two implementations are included. WebSocket connects to a relay, as implemented in the relay package, using
// CBOR encoded frames. The in-memory Network connects agents within the same process.
package connection
