// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package relay implements a message network for agents connected by a connection.WebSocket.
//
// Each agent registers its Address with the first frame. Afterwards, Envelopes are routed to the session registered
// for the recipient's bare Address. Optional accounts restrict which Addresses might be registered.
package relay
