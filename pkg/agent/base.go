// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"sync"
	"time"

	"github.com/dtn7/dtn7-agents/pkg/message"
	"github.com/dtn7/dtn7-agents/pkg/worker"
)

// Base implements the Behaviour interface with an unbounded mailbox. It can be used on its own as a passive
// Behaviour, which is drained by Receive, or embedded into Behaviours with their own logic.
//
// The zero value is ready to use.
type Base struct {
	mutex sync.Mutex
	once  sync.Once

	owner    *Agent
	template message.Template

	mailbox []message.Message
	notify  chan struct{}

	killed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// init the internal channels and Context lazily, allowing a zero value.
func (b *Base) init() {
	b.once.Do(func() {
		b.notify = make(chan struct{}, 1)
		b.ctx, b.cancel = context.WithCancel(context.Background())
	})
}

// Attach to an owning Agent. A nil Template keeps the current one.
func (b *Base) Attach(owner *Agent, tmpl message.Template) {
	b.init()

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.owner = owner
	if tmpl != nil {
		b.template = tmpl
	}
}

// Agent owning this Behaviour, or nil if not yet attached.
func (b *Base) Agent() *Agent {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.owner
}

// SetTemplate replaces the Template; nil matches all Messages.
func (b *Base) SetTemplate(tmpl message.Template) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.template = tmpl
}

// Template of this Behaviour, might be nil.
func (b *Base) Template() message.Template {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.template
}

// Match a Message against the Template. Without a Template, all Messages match.
func (b *Base) Match(msg message.Message) bool {
	tmpl := b.Template()
	return tmpl == nil || tmpl.Match(msg)
}

// Enqueue a Message into the mailbox. This never blocks.
func (b *Base) Enqueue(_ context.Context, msg message.Message) error {
	b.init()

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.killed {
		return ErrBehaviourKilled
	}

	b.mailbox = append(b.mailbox, msg)
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// MailboxSize is the amount of Messages waiting to be received.
func (b *Base) MailboxSize() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.mailbox)
}

// pop the next Message, if available.
func (b *Base) pop() (msg message.Message, ok bool, killed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.killed {
		return message.Message{}, false, true
	}
	if len(b.mailbox) == 0 {
		return message.Message{}, false, false
	}

	msg = b.mailbox[0]
	b.mailbox = b.mailbox[1:]
	return msg, true, false
}

// Receive the next Message from the mailbox, blocking until one arrives, the Context is done, or the Behaviour is
// killed. Only one goroutine should receive at a time.
func (b *Base) Receive(ctx context.Context) (message.Message, error) {
	b.init()

	for {
		if msg, ok, killed := b.pop(); killed {
			return message.Message{}, ErrBehaviourKilled
		} else if ok {
			return msg, nil
		}

		select {
		case <-b.notify:
		case <-b.ctx.Done():
			return message.Message{}, ErrBehaviourKilled
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		}
	}
}

// ReceiveTimeout is like Receive, with a timeout instead of a Context.
func (b *Base) ReceiveTimeout(timeout time.Duration) (message.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return b.Receive(ctx)
}

// Send a Message through the owning Agent.
func (b *Base) Send(msg message.Message) *worker.Future {
	owner := b.Agent()
	if owner == nil {
		return worker.Failed(ErrNotActive)
	}
	return owner.Send(msg)
}

// Context is canceled when the Behaviour is killed.
func (b *Base) Context() context.Context {
	b.init()
	return b.ctx
}

// Start does nothing for a passive Behaviour.
func (b *Base) Start() error {
	b.init()
	return nil
}

// Kill the Behaviour, dropping all pending Messages. Killing twice is harmless.
func (b *Base) Kill() error {
	b.init()

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.killed {
		b.killed = true
		b.mailbox = nil
		b.cancel()
	}
	return nil
}

// IsKilled checks if Kill was called.
func (b *Base) IsKilled() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.killed
}
