// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/dtn7/dtn7-agents/pkg/internal/wire"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

// WebSocket is a Connection to a relay, exchanging CBOR frames over a WebSocket.
type WebSocket struct {
	// writeMutex serializes writes on conn and protects conn itself.
	writeMutex sync.Mutex

	url    string
	creds  Credentials
	dialer *websocket.Dialer
	conn   *websocket.Conn

	handlers      []inboundHandler
	handlersMutex sync.RWMutex

	readerAck chan struct{}
}

// NewWebSocket creates an unconnected WebSocket for a relay's URL, e.g., "ws://localhost:8080/ws".
func NewWebSocket(url string, creds Credentials) *WebSocket {
	return &WebSocket{
		url:   url,
		creds: creds,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
			TLSClientConfig:  &tls.Config{InsecureSkipVerify: !creds.VerifySecurity},
		},
	}
}

// WebSocketFactory creates a Factory for WebSockets to the given relay's URL.
func WebSocketFactory(url string) Factory {
	return func(creds Credentials) (Connection, error) {
		return NewWebSocket(url, creds), nil
	}
}

func (ws *WebSocket) log() *log.Entry {
	return log.WithFields(log.Fields{
		"websocket": ws.url,
		"identity":  ws.creds.Identity,
	})
}

// Connect dials the relay and registers the Credentials' identity.
func (ws *WebSocket) Connect(ctx context.Context) error {
	ws.writeMutex.Lock()
	defer ws.writeMutex.Unlock()

	if ws.conn != nil {
		return &ConnectionError{ws.creds.Identity, fmt.Errorf("already connected")}
	}

	conn, _, err := ws.dialer.DialContext(ctx, ws.url, nil)
	if err != nil {
		return &ConnectionError{ws.creds.Identity, err}
	}
	wire.Limit(conn)

	if err := ws.register(ctx, conn); err != nil {
		_ = conn.Close()
		return &ConnectionError{ws.creds.Identity, err}
	}

	ws.conn = conn
	ws.readerAck = make(chan struct{})
	go ws.handleReader(conn, ws.readerAck)

	ws.log().Info("WebSocket connected")
	return nil
}

// register the identity and wait for the relay's acknowledgement.
func (ws *WebSocket) register(ctx context.Context, conn *websocket.Conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
		defer func() {
			_ = conn.SetWriteDeadline(time.Time{})
			_ = conn.SetReadDeadline(time.Time{})
		}()
	}

	reg := &wire.Register{Identity: ws.creds.Identity, Password: ws.creds.Password}
	if err := wire.WriteMessage(conn, reg); err != nil {
		return err
	}

	if f, err := wire.ReadMessage(conn); err != nil {
		return err
	} else if status, ok := f.(*wire.Status); !ok {
		return fmt.Errorf("expected status frame, got %T", f)
	} else if status.ErrorMsg != "" {
		return fmt.Errorf("relay refused registration: %s", status.ErrorMsg)
	}
	return nil
}

// Disconnect closes the WebSocket and waits for the reader to finish.
func (ws *WebSocket) Disconnect(ctx context.Context) error {
	ws.writeMutex.Lock()
	conn, readerAck := ws.conn, ws.readerAck
	ws.conn = nil
	ws.writeMutex.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	if ctxDeadline, ok := ctx.Deadline(); ok {
		deadline = ctxDeadline
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	closeErr := conn.WriteControl(websocket.CloseMessage, closeMsg, deadline)
	if connErr := conn.Close(); closeErr == nil {
		closeErr = connErr
	}

	select {
	case <-readerAck:
	case <-ctx.Done():
		return ctx.Err()
	}

	ws.log().Info("WebSocket disconnected")

	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) && !errors.Is(closeErr, websocket.ErrCloseSent) {
		return closeErr
	}
	return nil
}

// Send an Envelope to the relay.
func (ws *WebSocket) Send(ctx context.Context, env *message.Envelope) error {
	ws.writeMutex.Lock()
	defer ws.writeMutex.Unlock()

	if ws.conn == nil {
		return &SendError{env.ID, ErrNotConnected}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.conn.SetWriteDeadline(deadline)
		defer func() { _ = ws.conn.SetWriteDeadline(time.Time{}) }()
	}

	if err := wire.WriteMessage(ws.conn, &wire.Envelope{Env: *env}); err != nil {
		return &SendError{env.ID, err}
	}

	ws.log().WithField("envelope", env.ID).Debug("WebSocket sent envelope")
	return nil
}

// RegisterInbound adds a Handler, called from the reader goroutine.
func (ws *WebSocket) RegisterInbound(predicate Predicate, handler Handler) {
	ws.handlersMutex.Lock()
	defer ws.handlersMutex.Unlock()

	ws.handlers = append(ws.handlers, inboundHandler{predicate, handler})
}

func (ws *WebSocket) dispatch(env *message.Envelope) {
	ws.handlersMutex.RLock()
	handlers := append([]inboundHandler(nil), ws.handlers...)
	ws.handlersMutex.RUnlock()

	for _, h := range handlers {
		h.dispatch(env)
	}
}

func (ws *WebSocket) handleReader(conn *websocket.Conn, readerAck chan struct{}) {
	defer close(readerAck)

	logger := ws.log()

	for {
		f, err := wire.ReadMessage(conn)
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, net.ErrClosed) {
				logger.WithError(err).Debug("WebSocket reader finished due to a closed connection")
			} else {
				logger.WithError(err).Warn("Reading next frame errored")
			}
			return
		}

		switch f := f.(type) {
		case *wire.Envelope:
			logger.WithField("envelope", f.Env.ID).Debug("WebSocket received envelope")
			ws.dispatch(&f.Env)

		case *wire.Status:
			if f.ErrorMsg != "" {
				logger.WithField("status", f.ErrorMsg).Warn("Relay reported an error")
			}

		default:
			logger.WithField("frame", f).Info("Received unknown / unsupported frame")
		}
	}
}
