// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Step is a single iteration of a Cyclic Behaviour. Its Context is canceled when the Behaviour is killed.
//
// Returning ErrDone finishes the Behaviour regularly, any other error finishes it with this error.
type Step func(ctx context.Context, b *Base) error

// Cyclic is a Behaviour executing its Step on its own goroutine, again and again, until it is killed or the Step
// finishes it. Its mailbox is the embedded Base.
type Cyclic struct {
	Base

	step Step

	doneAck   chan struct{}
	startOnce sync.Once
	err       error
}

// NewCyclic creates a Cyclic Behaviour for a Step.
func NewCyclic(step Step) *Cyclic {
	return &Cyclic{
		step:    step,
		doneAck: make(chan struct{}),
	}
}

// NewOneShot creates a Behaviour executing its Step only once.
func NewOneShot(step Step) *Cyclic {
	return NewCyclic(func(ctx context.Context, b *Base) error {
		if err := step(ctx, b); err != nil {
			return err
		}
		return ErrDone
	})
}

// NewPeriodic creates a Behaviour executing its Step every period, starting right away.
func NewPeriodic(period time.Duration, step Step) *Cyclic {
	return NewCyclic(func(ctx context.Context, b *Base) error {
		if err := step(ctx, b); err != nil {
			return err
		}

		select {
		case <-time.After(period):
			return nil
		case <-ctx.Done():
			return ErrBehaviourKilled
		}
	})
}

// Start the Step's goroutine. Starting twice is an error.
func (c *Cyclic) Start() (err error) {
	_ = c.Base.Start()

	err = fmt.Errorf("behaviour was already started")
	c.startOnce.Do(func() {
		err = nil
		go c.run()
	})
	return
}

func (c *Cyclic) log() *log.Entry {
	entry := log.WithField("behaviour", fmt.Sprintf("%p", c))
	if owner := c.Agent(); owner != nil {
		entry = entry.WithField("agent", owner.Identity())
	}
	return entry
}

func (c *Cyclic) run() {
	defer close(c.doneAck)
	defer func() { _ = c.Base.Kill() }()

	ctx := c.Context()

	for !c.IsKilled() {
		err := c.safeStep(ctx)

		switch {
		case err == nil:
			continue

		case errors.Is(err, ErrDone):
			c.log().Debug("Behaviour finished")
			return

		case errors.Is(err, ErrBehaviourKilled), c.IsKilled():
			return

		default:
			c.log().WithError(err).Warn("Behaviour's step errored, finishing behaviour")
			c.err = err
			return
		}
	}
}

// safeStep executes the Step, converting a panic into an error.
func (c *Cyclic) safeStep(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	return c.step(ctx, &c.Base)
}

// Done is closed after the Step's goroutine finished.
func (c *Cyclic) Done() <-chan struct{} {
	return c.doneAck
}

// Err is the error which finished the Behaviour. It must only be called after Done was closed.
func (c *Cyclic) Err() error {
	return c.err
}

// Join waits until the Step's goroutine finished or the timeout exceeded.
func (c *Cyclic) Join(timeout time.Duration) error {
	select {
	case <-c.doneAck:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("behaviour did not finish within %v", timeout)
	}
}
