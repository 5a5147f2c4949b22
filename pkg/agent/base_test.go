// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dtn7/dtn7-agents/pkg/connection"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

func TestBaseMailbox(t *testing.T) {
	var b Base

	for _, body := range []string{"a", "b", "c"} {
		if err := b.Enqueue(context.Background(), message.Message{Body: body}); err != nil {
			t.Fatal(err)
		}
	}

	if size := b.MailboxSize(); size != 3 {
		t.Fatalf("expected mailbox size 3, got %d", size)
	}

	for _, body := range []string{"a", "b", "c"} {
		if msg, err := b.ReceiveTimeout(100 * time.Millisecond); err != nil {
			t.Fatal(err)
		} else if msg.Body != body {
			t.Fatalf("expected body %q, got %q", body, msg.Body)
		}
	}

	if _, err := b.ReceiveTimeout(50 * time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a timeout, got %v", err)
	}
}

func TestBaseReceiveBlocks(t *testing.T) {
	var b Base

	received := make(chan message.Message)
	go func() {
		msg, err := b.Receive(context.Background())
		if err != nil {
			t.Error(err)
		}
		received <- msg
	}()

	time.Sleep(50 * time.Millisecond)
	_ = b.Enqueue(context.Background(), message.Message{Body: "late"})

	select {
	case msg := <-received:
		if msg.Body != "late" {
			t.Fatalf("expected body late, got %q", msg.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not return")
	}
}

func TestBaseKill(t *testing.T) {
	var b Base
	_ = b.Enqueue(context.Background(), message.Message{Body: "dropped"})

	errChan := make(chan error)
	go func() {
		// The first Receive might still pick up the pending Message.
		for {
			if _, err := b.Receive(context.Background()); err != nil {
				errChan <- err
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	if err := b.Kill(); err != nil {
		t.Fatal(err)
	}
	if err := b.Kill(); err != nil {
		t.Fatalf("second Kill errored: %v", err)
	}

	select {
	case err := <-errChan:
		if !errors.Is(err, ErrBehaviourKilled) {
			t.Fatalf("expected ErrBehaviourKilled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive was not interrupted by Kill")
	}

	if err := b.Enqueue(context.Background(), message.Message{}); !errors.Is(err, ErrBehaviourKilled) {
		t.Fatalf("expected ErrBehaviourKilled for Enqueue after Kill, got %v", err)
	}
	if size := b.MailboxSize(); size != 0 {
		t.Fatalf("mailbox was not dropped, size %d", size)
	}
	if !b.IsKilled() {
		t.Fatal("IsKilled is false")
	}

	select {
	case <-b.Context().Done():
	default:
		t.Fatal("Context was not canceled")
	}
}

func TestBaseTemplate(t *testing.T) {
	var b Base

	if !b.Match(message.Message{Body: "anything"}) {
		t.Fatal("Base without template did not match")
	}

	b.SetTemplate(message.FieldTemplate{Body: "ping"})
	if b.Match(message.Message{Body: "anything"}) {
		t.Fatal("template was not applied")
	}

	// A nil Template on Attach keeps the current one.
	b.Attach(nil, nil)
	if !b.Match(message.Message{Body: "ping"}) || b.Match(message.Message{Body: "pong"}) {
		t.Fatal("Attach without template changed the template")
	}
}

func TestBaseWithinAgent(t *testing.T) {
	network := connection.NewNetwork()
	a, _ := newTestAgent(t, network, "alice@example.org")
	defer a.Stop()

	b := &Base{}
	if err := b.Send(message.Message{}).Err(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("unattached Base sent a message: %v", err)
	}

	if err := a.AddBehaviour(b, message.FieldTemplate{Thread: "t1"}); err != nil {
		t.Fatal(err)
	}
	if b.Agent() != a {
		t.Fatal("Base is not attached to the agent")
	}

	// Messages without a recipient loop back to the agent.
	if err := b.Send(message.Message{Body: "to myself", Thread: "t1"}).Err(); err != nil {
		t.Fatal(err)
	}
	if err := b.Send(message.Message{Body: "ignored", Thread: "t2"}).Err(); err != nil {
		t.Fatal(err)
	}

	msg, err := b.ReceiveTimeout(time.Second)
	if err != nil {
		t.Fatal(err)
	} else if msg.Body != "to myself" || msg.Sender != "alice@example.org" {
		t.Fatalf("unexpected message %v", msg)
	}

	if _, err := b.ReceiveTimeout(100 * time.Millisecond); err == nil {
		t.Fatal("message of another thread was received")
	}

	if err := a.RemoveBehaviour(b); err != nil {
		t.Fatal(err)
	}
	if !b.IsKilled() {
		t.Fatal("removed Base was not killed")
	}
}
