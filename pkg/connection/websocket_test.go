// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtn7/dtn7-agents/pkg/internal/wire"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

// echoRelay accepts one registration for "alice@example.org" and echos each Envelope back.
func echoRelay(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			t.Log(err)
			return
		}
		defer conn.Close()

		f, err := wire.ReadMessage(conn)
		if err != nil {
			return
		}

		reg, ok := f.(*wire.Register)
		if !ok || reg.Identity != "alice@example.org" || reg.Password != "secret" {
			_ = wire.WriteMessage(conn, wire.NewStatus(errors.New("refused")))
			return
		} else if err := wire.WriteMessage(conn, wire.NewStatus(nil)); err != nil {
			return
		}

		for {
			f, err := wire.ReadMessage(conn)
			if err != nil {
				return
			}
			if env, ok := f.(*wire.Envelope); ok {
				env.Env.Body = strings.ToUpper(env.Env.Body)
				if err := wire.WriteMessage(conn, env); err != nil {
					return
				}
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketExchange(t *testing.T) {
	server := echoRelay(t)
	defer server.Close()

	ws := NewWebSocket(wsURL(server), Credentials{Identity: "alice@example.org", Password: "secret"})

	inbox := make(chan *message.Envelope, 10)
	ws.RegisterInbound(nil, func(env *message.Envelope) { inbox <- env })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ws.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	env := message.Message{Sender: "alice@example.org", To: "alice@example.org", Body: "hello"}.Prepare()
	if err := ws.Send(ctx, env); err != nil {
		t.Fatal(err)
	}

	select {
	case recv := <-inbox:
		if recv.ID != env.ID || recv.Body != "HELLO" {
			t.Fatalf("unexpected envelope %v", recv)
		}

	case <-time.After(time.Second):
		t.Fatal("echo timed out")
	}

	if err := ws.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}

	if err := ws.Send(ctx, env); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestWebSocketRefused(t *testing.T) {
	server := echoRelay(t)
	defer server.Close()

	ws := NewWebSocket(wsURL(server), Credentials{Identity: "alice@example.org", Password: "wrong"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var connErr *ConnectionError
	if err := ws.Connect(ctx); !errors.As(err, &connErr) {
		t.Fatalf("expected a ConnectionError, got %v", err)
	} else if connErr.Identity != "alice@example.org" {
		t.Fatalf("unexpected identity %s", connErr.Identity)
	}
}

func TestWebSocketUnreachable(t *testing.T) {
	server := echoRelay(t)
	url := wsURL(server)
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var connErr *ConnectionError
	if err := NewWebSocket(url, Credentials{Identity: "alice@example.org"}).Connect(ctx); !errors.As(err, &connErr) {
		t.Fatalf("expected a ConnectionError, got %v", err)
	}
}
