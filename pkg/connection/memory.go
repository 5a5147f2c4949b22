// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package connection

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

// Network is an in-process message network. Envelopes are routed between its MemoryConnections by the recipient's
// bare Address. Envelopes for unknown recipients are dropped.
type Network struct {
	sync.Mutex

	// sessions maps bare Addresses to connected MemoryConnections.
	sessions map[message.Address]*MemoryConnection

	// accounts maps bare Addresses to passwords. If empty, every Credentials are accepted.
	accounts map[message.Address]string
}

// NewNetwork creates an empty in-process Network.
func NewNetwork() *Network {
	return &Network{
		sessions: make(map[message.Address]*MemoryConnection),
		accounts: make(map[message.Address]string),
	}
}

// AddAccount restricts this Network to known accounts. After the first account was added, Credentials must match.
func (n *Network) AddAccount(identity message.Address, password string) {
	n.Lock()
	defer n.Unlock()

	n.accounts[identity.Bare()] = password
}

// Connection creates a new, unconnected MemoryConnection within this Network.
func (n *Network) Connection(creds Credentials) *MemoryConnection {
	return &MemoryConnection{
		network: n,
		creds:   creds,
	}
}

// Factory for MemoryConnections within this Network.
func (n *Network) Factory() Factory {
	return func(creds Credentials) (Connection, error) {
		return n.Connection(creds), nil
	}
}

// IsConnected checks if some Address is currently connected.
func (n *Network) IsConnected(addr message.Address) bool {
	n.Lock()
	defer n.Unlock()

	_, ok := n.sessions[addr.Bare()]
	return ok
}

// Deliver an Envelope to its recipient, as if it was received from the outside.
func (n *Network) Deliver(env *message.Envelope) error {
	n.Lock()
	mc, ok := n.sessions[env.To.Bare()]
	n.Unlock()

	if !ok {
		log.WithFields(log.Fields{
			"envelope":  env.ID,
			"recipient": env.To,
		}).Debug("Network has no session for recipient, dropping envelope")
		return fmt.Errorf("no session for recipient %s", env.To)
	}

	mc.deliveries.push(env)
	return nil
}

func (n *Network) attach(mc *MemoryConnection) error {
	n.Lock()
	defer n.Unlock()

	identity := mc.creds.Identity.Bare()

	if len(n.accounts) > 0 {
		if password, ok := n.accounts[identity]; !ok || password != mc.creds.Password {
			return fmt.Errorf("authentication failed")
		}
	}

	if _, ok := n.sessions[identity]; ok {
		return fmt.Errorf("a session for %s already exists", identity)
	}

	n.sessions[identity] = mc
	return nil
}

func (n *Network) detach(mc *MemoryConnection) {
	n.Lock()
	defer n.Unlock()

	if n.sessions[mc.creds.Identity.Bare()] == mc {
		delete(n.sessions, mc.creds.Identity.Bare())
	}
}

// MemoryConnection is a Connection within a Network. Inbound Envelopes are delivered in order from a dedicated
// goroutine, as a network connection's reader would.
//
// Errors for Connect, Send and Disconnect might be injected for testing purpose.
type MemoryConnection struct {
	sync.Mutex

	network *Network
	creds   Credentials

	connected  bool
	deliveries *deliveryQueue

	handlers      []inboundHandler
	handlersMutex sync.RWMutex

	sent []*message.Envelope

	connectErr    error
	sendErr       error
	disconnectErr error
}

// FailConnect lets subsequent Connect calls fail with the given error.
func (mc *MemoryConnection) FailConnect(err error) {
	mc.Lock()
	defer mc.Unlock()
	mc.connectErr = err
}

// FailSend lets subsequent Send calls fail with the given error; nil resets.
func (mc *MemoryConnection) FailSend(err error) {
	mc.Lock()
	defer mc.Unlock()
	mc.sendErr = err
}

// FailDisconnect lets subsequent Disconnect calls report the given error. The session is closed nevertheless.
func (mc *MemoryConnection) FailDisconnect(err error) {
	mc.Lock()
	defer mc.Unlock()
	mc.disconnectErr = err
}

// Sent returns a copy of all successfully sent Envelopes.
func (mc *MemoryConnection) Sent() []*message.Envelope {
	mc.Lock()
	defer mc.Unlock()
	return append([]*message.Envelope(nil), mc.sent...)
}

// IsConnected reports the session's state.
func (mc *MemoryConnection) IsConnected() bool {
	mc.Lock()
	defer mc.Unlock()
	return mc.connected
}

// Connect attaches this MemoryConnection to its Network.
func (mc *MemoryConnection) Connect(ctx context.Context) error {
	mc.Lock()
	defer mc.Unlock()

	if err := ctx.Err(); err != nil {
		return &ConnectionError{mc.creds.Identity, err}
	}
	if mc.connectErr != nil {
		return &ConnectionError{mc.creds.Identity, mc.connectErr}
	}
	if mc.connected {
		return &ConnectionError{mc.creds.Identity, fmt.Errorf("already connected")}
	}

	mc.deliveries = newDeliveryQueue(mc.dispatch)
	if err := mc.network.attach(mc); err != nil {
		mc.deliveries.close()
		mc.deliveries = nil
		return &ConnectionError{mc.creds.Identity, err}
	}

	mc.connected = true
	return nil
}

// Disconnect detaches from the Network and waits until pending deliveries are finished.
func (mc *MemoryConnection) Disconnect(ctx context.Context) error {
	mc.Lock()
	if !mc.connected {
		mc.Unlock()
		return nil
	}
	mc.connected = false
	deliveries := mc.deliveries
	disconnectErr := mc.disconnectErr
	mc.Unlock()

	mc.network.detach(mc)

	closed := make(chan struct{})
	go func() {
		deliveries.close()
		close(closed)
	}()

	select {
	case <-closed:
		return disconnectErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send an Envelope through the Network.
func (mc *MemoryConnection) Send(ctx context.Context, env *message.Envelope) error {
	mc.Lock()
	if !mc.connected {
		mc.Unlock()
		return &SendError{env.ID, ErrNotConnected}
	}
	if mc.sendErr != nil {
		err := mc.sendErr
		mc.Unlock()
		return &SendError{env.ID, err}
	}
	if err := ctx.Err(); err != nil {
		mc.Unlock()
		return &SendError{env.ID, err}
	}
	mc.sent = append(mc.sent, env)
	mc.Unlock()

	// Unknown recipients are not the sender's failure.
	_ = mc.network.Deliver(env)
	return nil
}

// RegisterInbound adds a Handler, called from the delivery goroutine.
func (mc *MemoryConnection) RegisterInbound(predicate Predicate, handler Handler) {
	mc.handlersMutex.Lock()
	defer mc.handlersMutex.Unlock()

	mc.handlers = append(mc.handlers, inboundHandler{predicate, handler})
}

func (mc *MemoryConnection) dispatch(env *message.Envelope) {
	mc.handlersMutex.RLock()
	handlers := append([]inboundHandler(nil), mc.handlers...)
	mc.handlersMutex.RUnlock()

	for _, h := range handlers {
		h.dispatch(env)
	}
}

// deliveryQueue is an unbounded FIFO queue, worked off by its own goroutine.
type deliveryQueue struct {
	sync.Mutex

	queue   []*message.Envelope
	closed  bool
	notify  chan struct{}
	stopAck chan struct{}

	handler func(*message.Envelope)
}

func newDeliveryQueue(handler func(*message.Envelope)) *deliveryQueue {
	dq := &deliveryQueue{
		notify:  make(chan struct{}, 1),
		stopAck: make(chan struct{}),
		handler: handler,
	}

	go dq.handle()

	return dq
}

func (dq *deliveryQueue) push(env *message.Envelope) {
	dq.Lock()
	defer dq.Unlock()

	if dq.closed {
		return
	}

	dq.queue = append(dq.queue, env)
	select {
	case dq.notify <- struct{}{}:
	default:
	}
}

// close the queue, drop pending Envelopes and wait for the goroutine to finish.
func (dq *deliveryQueue) close() {
	dq.Lock()
	if !dq.closed {
		dq.closed = true
		dq.queue = nil
		close(dq.notify)
	}
	dq.Unlock()

	<-dq.stopAck
}

func (dq *deliveryQueue) handle() {
	defer close(dq.stopAck)

	for range dq.notify {
		for {
			dq.Lock()
			if dq.closed || len(dq.queue) == 0 {
				dq.Unlock()
				break
			}
			env := dq.queue[0]
			dq.queue = dq.queue[1:]
			dq.Unlock()

			dq.handler(env)
		}
	}
}
