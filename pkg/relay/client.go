// SPDX-FileCopyrightText: 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/dtn7/dtn7-agents/pkg/internal/wire"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

// client is a single agent's WebSocket session at the Relay.
type client struct {
	writeMutex sync.Mutex

	relay    *Relay
	conn     *websocket.Conn
	identity message.Address

	shutdownOnce sync.Once
}

func newClient(relay *Relay, conn *websocket.Conn) *client {
	return &client{
		relay: relay,
		conn:  conn,
	}
}

func (c *client) log() *log.Entry {
	entry := log.WithField("relay client", c.conn.RemoteAddr().String())
	if !c.identity.IsZero() {
		entry = entry.WithField("identity", c.identity)
	}
	return entry
}

func (c *client) shutdown() {
	c.shutdownOnce.Do(func() {
		c.log().Debug("Reached shutdown")

		if !c.identity.IsZero() {
			c.relay.unregister(c)
		}
		_ = c.conn.Close()
	})
}

func (c *client) writeFrame(f wire.Frame) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	return wire.WriteMessage(c.conn, f)
}

// handleConn reads Frames until the connection closes. The first Frame must be a Register.
func (c *client) handleConn() {
	defer c.shutdown()

	if err := c.handleRegister(); err != nil {
		c.log().WithError(err).Info("Registration failed")
		return
	}

	for {
		f, err := wire.ReadMessage(c.conn)
		if err != nil {
			if netErr, ok := err.(*net.OpError); ok && netErr.Err.Error() == "use of closed network connection" {
				c.log().WithError(err).Debug("Reader errored due to closed network connection")
			} else if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log().Debug("Client closed its session")
			} else {
				c.log().WithError(err).Warn("Reading next frame errored")
			}
			return
		}

		switch f := f.(type) {
		case *wire.Envelope:
			env := f.Env
			if !env.Sender.SameAgent(c.identity) {
				c.log().WithField("envelope", env.ID).WithField("sender", env.Sender).
					Warn("Envelope's sender does not match the session, dropping it")
				continue
			}
			c.relay.route(&env)

		default:
			c.log().WithField("frame", f).Info("Received unknown / unsupported frame")
		}
	}
}

// handleRegister reads and acknowledges the Register Frame.
func (c *client) handleRegister() error {
	f, err := wire.ReadMessage(c.conn)
	if err != nil {
		return err
	}

	reg, ok := f.(*wire.Register)
	if !ok {
		err = fmt.Errorf("expected register frame, got %T", f)
	} else if _, parseErr := message.ParseAddress(string(reg.Identity)); parseErr != nil {
		err = parseErr
	} else if authErr := c.relay.accounts.Authenticate(reg.Identity, reg.Password); authErr != nil {
		err = authErr
	} else {
		c.identity = reg.Identity.Bare()
		if regErr := c.relay.register(c); regErr != nil {
			c.identity = ""
			err = regErr
		}
	}

	if writeErr := c.writeFrame(wire.NewStatus(err)); writeErr != nil && err == nil {
		err = writeErr
	}
	return err
}

// deliver an Envelope to this client.
func (c *client) deliver(env *message.Envelope) error {
	return c.writeFrame(&wire.Envelope{Env: *env})
}
