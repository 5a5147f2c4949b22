// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dtn7/dtn7-agents/pkg/connection"
	"github.com/dtn7/dtn7-agents/pkg/message"
	"github.com/dtn7/dtn7-agents/pkg/worker"
)

func TestAgentNew(t *testing.T) {
	network := connection.NewNetwork()
	a, mc := newTestAgent(t, network, "alice@example.org")

	if state := a.State(); state != Active {
		t.Fatalf("expected state %v, got %v", Active, state)
	}
	if !mc.IsConnected() || !network.IsConnected("alice@example.org") {
		t.Fatal("connection was not established during New")
	}

	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestAgentNewInvalidIdentity(t *testing.T) {
	network := connection.NewNetwork()

	if _, err := New(connection.Credentials{Identity: "no-domain"}, network.Factory(), testConfig()); err == nil {
		t.Fatal("New accepted an invalid identity")
	}
}

func TestAgentNewConnectionError(t *testing.T) {
	network := connection.NewNetwork()
	network.AddAccount("alice@example.org", "secret")

	creds := connection.Credentials{Identity: "alice@example.org", Password: "wrong"}
	_, err := New(creds, network.Factory(), testConfig())

	var connErr *connection.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	} else if connErr.Identity != creds.Identity {
		t.Fatalf("ConnectionError names %q, not %q", connErr.Identity, creds.Identity)
	}

	if network.IsConnected("alice@example.org") {
		t.Fatal("failed agent is still connected")
	}
}

func TestAgentNewFactoryError(t *testing.T) {
	factory := func(connection.Credentials) (connection.Connection, error) {
		return nil, fmt.Errorf("no network available")
	}

	_, err := New(connection.Credentials{Identity: "alice@example.org"}, factory, testConfig())

	var connErr *connection.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestAgentValues(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	a.Set("answer", 42)
	a.Set("name", "alice")

	if v, err := a.Get("answer"); err != nil {
		t.Fatal(err)
	} else if v != 42 {
		t.Fatalf("expected 42, got %v", v)
	}

	a.Set("answer", 23)
	if v, _ := a.Get("answer"); v != 23 {
		t.Fatalf("expected overwritten value 23, got %v", v)
	}

	if _, err := a.Get("unknown"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	values := a.Values()
	if len(values) != 2 {
		t.Fatalf("expected two values, got %v", values)
	}
	values["injected"] = true
	if _, err := a.Get("injected"); err == nil {
		t.Fatal("Values did not return a copy")
	}
}

func TestAgentValuesConcurrent(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("%d-%d", i, j)
				a.Set(key, j)
				if _, err := a.Get(key); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()

	if l := len(a.Values()); l != 800 {
		t.Fatalf("expected 800 values, got %d", l)
	}
}

func TestAgentSend(t *testing.T) {
	network := connection.NewNetwork()

	alice, aliceConn := newTestAgent(t, network, "alice@example.org")
	defer alice.Stop()

	tests := []struct {
		name   string
		msg    message.Message
		sender message.Address
		to     message.Address
	}{
		{"missing sender", message.Message{To: "bob@example.org", Body: "a"}, "alice@example.org", "bob@example.org"},
		{"given sender", message.Message{Sender: "alice@example.org/phone", To: "bob@example.org", Body: "b"},
			"alice@example.org/phone", "bob@example.org"},
		{"missing recipient", message.Message{Body: "c"}, "alice@example.org", "alice@example.org"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, err := alice.Send(test.msg).Wait()
			if err != nil {
				t.Fatal(err)
			}

			env := result.(*message.Envelope)
			if env.Sender != test.sender {
				t.Fatalf("expected sender %q, got %q", test.sender, env.Sender)
			} else if env.To != test.to {
				t.Fatalf("expected recipient %q, got %q", test.to, env.To)
			} else if env.Body != test.msg.Body {
				t.Fatalf("expected body %q, got %q", test.msg.Body, env.Body)
			}

			sent := aliceConn.Sent()
			if sent[len(sent)-1] != env {
				t.Fatal("envelope was not handed to the connection")
			}
		})
	}
}

func TestAgentSendDoesNotModifyMessage(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	msg := message.Message{Body: "hello", Metadata: map[string]string{"k": "v"}}
	if err := a.Send(msg).Err(); err != nil {
		t.Fatal(err)
	}

	if !msg.Sender.IsZero() || !msg.To.IsZero() {
		t.Fatalf("Send modified the caller's message: %v", msg)
	}
}

func TestAgentSendError(t *testing.T) {
	a, mc := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	mc.FailSend(fmt.Errorf("link is down"))

	err := a.Send(message.Message{To: "bob@example.org"}).Err()

	var sendErr *connection.SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected SendError, got %v", err)
	}

	mc.FailSend(nil)
	if err := a.Send(message.Message{To: "bob@example.org"}).Err(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestAgentSendAfterStop(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}

	if err := a.Send(message.Message{Body: "late"}).Err(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestAgentAddBehaviours(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	const n = 5
	var mocks []*mockBehaviour
	for i := 0; i < n; i++ {
		mock := newMockBehaviour(nil)
		mocks = append(mocks, mock)

		if err := a.AddBehaviour(mock, nil); err != nil {
			t.Fatal(err)
		}
	}

	behaviours := a.Behaviours()
	if len(behaviours) != n {
		t.Fatalf("expected %d behaviours, got %d", n, len(behaviours))
	}

	for i, mock := range mocks {
		if behaviours[i] != mock {
			t.Fatalf("behaviour %d is out of order", i)
		}
		if starts, _ := mock.counters(); starts != 1 {
			t.Fatalf("behaviour %d was started %d times", i, starts)
		}
		if mock.owner != a {
			t.Fatalf("behaviour %d is not attached to the agent", i)
		}
	}
}

func TestAgentAddBehaviourTemplate(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	mock := newMockBehaviour(nil)
	if err := a.AddBehaviour(mock, message.MatchNone); err != nil {
		t.Fatal(err)
	}

	if mock.Match(message.Message{Body: "x"}) {
		t.Fatal("template was not applied to the behaviour")
	}
}

func TestAgentRemoveBehaviour(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	b1, b2 := newMockBehaviour(nil), newMockBehaviour(nil)
	_ = a.AddBehaviour(b1, nil)
	_ = a.AddBehaviour(b2, nil)

	if err := a.RemoveBehaviour(newMockBehaviour(nil)); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if l := len(a.Behaviours()); l != 2 {
		t.Fatalf("failed removal modified the registry, %d behaviours left", l)
	}

	if err := a.RemoveBehaviour(b1); err != nil {
		t.Fatal(err)
	}
	if _, kills := b1.counters(); kills != 1 {
		t.Fatalf("removed behaviour was killed %d times", kills)
	}
	if a.HasBehaviour(b1) || !a.HasBehaviour(b2) {
		t.Fatal("wrong behaviour was removed")
	}

	if err := a.RemoveBehaviour(b1); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("removing twice: expected ErrNotRegistered, got %v", err)
	}
}

func TestAgentRemoveBehaviourConcurrent(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	b := newMockBehaviour(nil)
	_ = a.AddBehaviour(b, nil)

	const removals = 16

	var wg sync.WaitGroup
	errs := make(chan error, removals)
	for i := 0; i < removals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- a.RemoveBehaviour(b)
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrNotRegistered) {
			t.Fatalf("expected ErrNotRegistered, got %v", err)
		}
	}

	if succeeded != 1 {
		t.Fatalf("%d removals succeeded", succeeded)
	}
	if _, kills := b.counters(); kills != 1 {
		t.Fatalf("behaviour was killed %d times", kills)
	}
}

func TestAgentStop(t *testing.T) {
	network := connection.NewNetwork()
	a, mc := newTestAgent(t, network, "alice@example.org")

	b1, b2 := newMockBehaviour(nil), newMockBehaviour(nil)
	_ = a.AddBehaviour(b1, nil)
	_ = a.AddBehaviour(b2, nil)

	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}

	if state := a.State(); state != Stopped {
		t.Fatalf("expected state %v, got %v", Stopped, state)
	}
	for i, b := range []*mockBehaviour{b1, b2} {
		if _, kills := b.counters(); kills != 1 {
			t.Fatalf("behaviour %d was killed %d times", i, kills)
		}
	}
	if len(a.Behaviours()) != 0 {
		t.Fatal("registry is not empty after Stop")
	}

	select {
	case <-a.Done():
	default:
		t.Fatal("worker goroutine is still running after Stop")
	}

	if mc.IsConnected() || network.IsConnected("alice@example.org") {
		t.Fatal("connection is still established after Stop")
	}

	if err := a.Submit(func(context.Context) (interface{}, error) { return nil, nil }).Err(); !errors.Is(err, worker.ErrStopped) {
		t.Fatalf("expected ErrStopped after Stop, got %v", err)
	}

	if err := a.AddBehaviour(newMockBehaviour(nil), nil); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}

	// A second Stop returns the first result.
	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestAgentStopFailingKill(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")

	b1, b2, b3 := newMockBehaviour(nil), newMockBehaviour(nil), newMockBehaviour(nil)
	b1.killErr = fmt.Errorf("b1 failed")
	b2.killPanic = true

	for _, b := range []*mockBehaviour{b1, b2, b3} {
		if err := a.AddBehaviour(b, nil); err != nil {
			t.Fatal(err)
		}
	}

	stopped := make(chan error)
	go func() { stopped <- a.Stop() }()

	select {
	case err := <-stopped:
		if err == nil {
			t.Fatal("Stop did not report failing kills")
		}

	case <-time.After(5 * time.Second):
		t.Fatal("Stop deadlocked")
	}

	for i, b := range []*mockBehaviour{b1, b2, b3} {
		if _, kills := b.counters(); kills != 1 {
			t.Fatalf("behaviour %d was killed %d times", i, kills)
		}
	}

	select {
	case <-a.Done():
	default:
		t.Fatal("worker goroutine is still running after Stop")
	}
}

func TestAgentStopDisconnectError(t *testing.T) {
	a, mc := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	mc.FailDisconnect(fmt.Errorf("goodbye failed"))

	if err := a.Stop(); err == nil {
		t.Fatal("Stop did not report the disconnect error")
	}

	select {
	case <-a.Done():
	default:
		t.Fatal("worker goroutine is still running after Stop")
	}
}

func TestAgentSubmitConcurrent(t *testing.T) {
	a, _ := newTestAgent(t, connection.NewNetwork(), "alice@example.org")
	defer a.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Send(message.Message{To: "bob@example.org", Body: "concurrent"}).Err(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}
