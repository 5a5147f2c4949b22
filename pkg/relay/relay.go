// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dtn7/dtn7-agents/pkg/internal/wire"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

// Relay routes Envelopes between agents' WebSocket sessions.
type Relay struct {
	sync.Mutex

	router   *mux.Router
	upgrader websocket.Upgrader
	accounts *Accounts

	clients map[message.Address]*client
	closed  bool
}

// NewRelay creates a Relay for some Accounts; nil Accounts accept everyone. The Relay is a http.Handler, serving
// the WebSocket endpoint at /ws and a list of connected agents at /agents.
func NewRelay(accounts *Accounts) *Relay {
	if accounts == nil {
		accounts = NewAccounts()
	}

	r := &Relay{
		router:   mux.NewRouter(),
		accounts: accounts,
		clients:  make(map[message.Address]*client),
	}

	r.router.HandleFunc("/ws", r.handleWebSocket).Methods(http.MethodGet)
	r.router.HandleFunc("/agents", r.handleAgents).Methods(http.MethodGet)

	return r
}

// ServeHTTP dispatches to the Relay's endpoints.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

func (r *Relay) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, connErr := r.upgrader.Upgrade(w, req, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	wire.Limit(conn)
	newClient(r, conn).handleConn()
}

func (r *Relay) handleAgents(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(r.Agents()); err != nil {
		log.WithError(err).Warn("Failed to write agents response")
	}
}

// Agents returns the sorted bare Addresses of all registered sessions.
func (r *Relay) Agents() []string {
	r.Lock()
	defer r.Unlock()

	agents := make([]string, 0, len(r.clients))
	for addr := range r.clients {
		agents = append(agents, addr.String())
	}
	sort.Strings(agents)
	return agents
}

// register a client's session. A second session for the same Address is refused.
func (r *Relay) register(c *client) error {
	r.Lock()
	defer r.Unlock()

	if r.closed {
		return fmt.Errorf("relay is closed")
	}
	if _, ok := r.clients[c.identity]; ok {
		return fmt.Errorf("a session for %s already exists", c.identity)
	}

	r.clients[c.identity] = c
	c.log().Info("Agent registered")
	return nil
}

func (r *Relay) unregister(c *client) {
	r.Lock()
	defer r.Unlock()

	if r.clients[c.identity] == c {
		delete(r.clients, c.identity)
		c.log().Info("Agent unregistered")
	}
}

// route an Envelope to its recipient's session. Envelopes for unknown recipients are dropped.
func (r *Relay) route(env *message.Envelope) {
	r.Lock()
	c, ok := r.clients[env.To.Bare()]
	r.Unlock()

	logger := log.WithFields(log.Fields{
		"envelope":  env.ID,
		"sender":    env.Sender,
		"recipient": env.To,
	})

	if !ok {
		logger.Debug("No session for recipient, dropping envelope")
		return
	}

	if err := c.deliver(env); err != nil {
		logger.WithError(err).Warn("Delivering envelope errored")
		c.shutdown()
	} else {
		logger.Debug("Delivered envelope")
	}
}

// Close all sessions. New sessions are refused afterwards.
func (r *Relay) Close() {
	r.Lock()
	r.closed = true
	clients := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
}
