// SPDX-FileCopyrightText: 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"testing"
	"time"

	"github.com/dtn7/dtn7-agents/pkg/connection"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

func TestPing(t *testing.T) {
	network := connection.NewNetwork()

	alice, _ := newTestAgent(t, network, "alice@example.org")
	defer alice.Stop()

	bob, _ := newTestAgent(t, network, "bob@example.org")
	defer bob.Stop()

	ping := NewPing()
	if err := alice.AddBehaviour(ping, PingTemplate()); err != nil {
		t.Fatal(err)
	}

	inbox := &Base{}
	if err := bob.AddBehaviour(inbox, nil); err != nil {
		t.Fatal(err)
	}

	if err := bob.Send(message.Message{To: "alice@example.org/ping", Body: "ping", Thread: "t"}).Err(); err != nil {
		t.Fatal(err)
	}

	msg, err := inbox.ReceiveTimeout(time.Second)
	if err != nil {
		t.Fatalf("Ping did not answer: %v", err)
	}

	if msg.Body != "pong" {
		t.Fatalf("expected pong, got %q", msg.Body)
	} else if msg.Sender != "alice@example.org" {
		t.Fatalf("pong's sender is %q", msg.Sender)
	} else if msg.Thread != "t" {
		t.Fatalf("pong left the thread, %q", msg.Thread)
	}

	eventually(t, time.Second, func() bool { return ping.Replies() == 1 })

	// Other bodies do not match the PingTemplate.
	_ = bob.Send(message.Message{To: "alice@example.org", Body: "hello"}).Err()
	if _, err := inbox.ReceiveTimeout(200 * time.Millisecond); err == nil {
		t.Fatal("Ping answered a non-ping message")
	}

	if err := alice.RemoveBehaviour(ping); err != nil {
		t.Fatal(err)
	}
	if err := ping.Join(time.Second); err != nil {
		t.Fatal(err)
	}
}
