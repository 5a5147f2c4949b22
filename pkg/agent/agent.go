// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/dtn7-agents/pkg/connection"
	"github.com/dtn7/dtn7-agents/pkg/message"
	"github.com/dtn7/dtn7-agents/pkg/worker"
)

// State of an Agent.
type State uint32

const (
	Constructing State = iota
	Active
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Constructing:
		return "constructing"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config for an Agent.
type Config struct {
	Worker worker.Config
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{Worker: worker.DefaultConfig()}
}

// Agent is an addressable entity owning a Connection, run by its Worker, and a Registry of Behaviours.
type Agent struct {
	identity message.Address

	conn       connection.Connection
	worker     *worker.Worker
	behaviours *Registry

	// values is a generic store, scoped to this Agent's lifetime.
	values      map[string]interface{}
	valuesMutex sync.RWMutex

	state      State
	stateMutex sync.Mutex

	stopOnce sync.Once
	stopErr  error
}

// New creates an Agent and establishes its Connection, created by the Factory from the Credentials.
//
// New blocks until the Connection is established. A failed negotiation is returned as *connection.ConnectionError.
func New(creds connection.Credentials, factory connection.Factory, conf Config) (*Agent, error) {
	if _, err := message.ParseAddress(string(creds.Identity)); err != nil {
		return nil, err
	}

	conn, err := factory(creds)
	if err != nil {
		return nil, &connection.ConnectionError{Identity: creds.Identity, Err: err}
	}

	if conf.Worker.Name == "" {
		conf.Worker.Name = string(creds.Identity)
	}

	a := &Agent{
		identity:   creds.Identity,
		conn:       conn,
		worker:     worker.New(conn, conf.Worker),
		behaviours: NewRegistry(),
		values:     make(map[string]interface{}),
		state:      Constructing,
	}

	conn.RegisterInbound(a.isRecipient, a.messageReceived)

	if err := a.worker.Start(); err != nil {
		var connErr *connection.ConnectionError
		if errors.As(err, &connErr) && connErr.Identity.IsZero() {
			connErr.Identity = creds.Identity
		}

		a.setState(Stopped)
		a.log().WithError(err).Warn("Agent failed to connect")
		return nil, err
	}

	a.setState(Active)
	a.log().Info("Agent is active")

	return a, nil
}

func (a *Agent) log() *log.Entry {
	return log.WithField("agent", a.identity)
}

// Identity is the Agent's Address.
func (a *Agent) Identity() message.Address {
	return a.identity
}

// State of this Agent.
func (a *Agent) State() State {
	a.stateMutex.Lock()
	defer a.stateMutex.Unlock()

	return a.state
}

func (a *Agent) setState(state State) {
	a.stateMutex.Lock()
	defer a.stateMutex.Unlock()

	a.state = state
}

func (a *Agent) isActive() bool {
	return a.State() == Active
}

// Submit a Task to the Agent's Worker.
func (a *Agent) Submit(task worker.Task) *worker.Future {
	return a.worker.Submit(task)
}

// Set a named value.
func (a *Agent) Set(name string, value interface{}) {
	a.valuesMutex.Lock()
	defer a.valuesMutex.Unlock()

	a.values[name] = value
}

// Get a named value, previously Set. An unknown name results in an ErrKeyNotFound.
func (a *Agent) Get(name string) (interface{}, error) {
	a.valuesMutex.RLock()
	defer a.valuesMutex.RUnlock()

	if value, ok := a.values[name]; ok {
		return value, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, name)
}

// Values returns a copy of all named values.
func (a *Agent) Values() map[string]interface{} {
	a.valuesMutex.RLock()
	defer a.valuesMutex.RUnlock()

	values := make(map[string]interface{}, len(a.values))
	for k, v := range a.values {
		values[k] = v
	}
	return values
}

// Send a Message. A missing sender is set to this Agent's identity, as is a missing recipient.
//
// The Message is transmitted by the Worker; the returned Future results in the sent *message.Envelope or a
// *connection.SendError. Waiting on the Future is up to the caller.
func (a *Agent) Send(msg message.Message) *worker.Future {
	if !a.isActive() {
		return worker.Failed(ErrNotActive)
	}

	msg = msg.Copy()
	if msg.Sender.IsZero() {
		msg.Sender = a.identity
		a.log().WithField("message", msg).Debug("Adding agent's identity as sender to message")
	}
	if msg.To.IsZero() {
		msg.To = a.identity
	}

	env := msg.Prepare()
	return a.worker.Submit(func(ctx context.Context) (interface{}, error) {
		if err := a.conn.Send(ctx, env); err != nil {
			var sendErr *connection.SendError
			if !errors.As(err, &sendErr) {
				err = &connection.SendError{EnvelopeID: env.ID, Err: err}
			}

			a.log().WithError(err).WithField("envelope", env.ID).Warn("Sending message errored")
			return nil, err
		}

		return env, nil
	})
}

// AddBehaviour attaches, registers and starts a Behaviour. A non-nil Template overrides the Behaviour's own.
func (a *Agent) AddBehaviour(b Behaviour, tmpl message.Template) error {
	if !a.isActive() {
		return ErrNotActive
	}

	b.Attach(a, tmpl)
	a.behaviours.Add(b)

	if err := b.Start(); err != nil {
		a.behaviours.Remove(b)
		a.log().WithError(err).WithField("behaviour", b).Warn("Starting behaviour errored")
		return err
	}

	a.log().WithField("behaviour", fmt.Sprintf("%T", b)).Debug("Added behaviour")
	return nil
}

// RemoveBehaviour kills and unregisters a Behaviour. An unknown Behaviour results in ErrNotRegistered.
func (a *Agent) RemoveBehaviour(b Behaviour) error {
	if !a.isActive() {
		return ErrNotActive
	}

	if !a.behaviours.Remove(b) {
		return ErrNotRegistered
	}

	killErr := killBehaviour(b)

	a.log().WithField("behaviour", fmt.Sprintf("%T", b)).Debug("Removed behaviour")
	return killErr
}

// HasBehaviour checks if a Behaviour is registered.
func (a *Agent) HasBehaviour(b Behaviour) bool {
	return a.behaviours.Contains(b)
}

// Behaviours returns all registered Behaviours in their dispatch order.
func (a *Agent) Behaviours() []Behaviour {
	return a.behaviours.Snapshot()
}

// killBehaviour calls Kill, converting a panic into an error.
func killBehaviour(b Behaviour) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kill panicked: %v", r)
		}
	}()

	return b.Kill()
}

// Stop kills all Behaviours in their order, even if some fail, and finalizes the Worker afterwards.
//
// All errors are collected and returned. Subsequent calls return the first call's result.
func (a *Agent) Stop() error {
	a.stopOnce.Do(func() {
		a.stopErr = a.stop()
	})
	return a.stopErr
}

func (a *Agent) stop() error {
	a.setState(Stopping)
	a.log().Info("Agent is stopping")

	var errs error

	for _, b := range a.behaviours.Clear() {
		if err := killBehaviour(b); err != nil {
			a.log().WithError(err).WithField("behaviour", fmt.Sprintf("%T", b)).Warn("Killing behaviour errored")
			errs = multierror.Append(errs, fmt.Errorf("killing behaviour %T: %w", b, err))
		}
	}

	if err := a.worker.Finalize(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("finalizing worker: %w", err))
	}

	a.setState(Stopped)
	a.log().Info("Agent stopped")

	return errs
}

// Done is closed after the Agent's Worker exited.
func (a *Agent) Done() <-chan struct{} {
	return a.worker.Done()
}
