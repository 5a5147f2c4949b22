// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// MaxMessageSize limits the size of a single inbound WebSocket message, see Limit.
const MaxMessageSize = 1 << 20

// Limit the size of inbound messages on a connection to MaxMessageSize.
func Limit(conn *websocket.Conn) {
	conn.SetReadLimit(MaxMessageSize)
}

// WriteMessage writes a Frame as a single binary WebSocket message.
// Concurrent writes on the same connection must be serialized by the caller.
func WriteMessage(conn *websocket.Conn, f Frame) error {
	wc, wcErr := conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := WriteFrame(f, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}

// ReadMessage reads the next binary WebSocket message as a Frame.
func ReadMessage(conn *websocket.Conn) (Frame, error) {
	if mt, r, err := conn.NextReader(); err != nil {
		return nil, err
	} else if mt != websocket.BinaryMessage {
		return nil, fmt.Errorf("expected binary message, got %d", mt)
	} else {
		return ReadFrame(r)
	}
}
