// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-agents/pkg/connection"
)

var (
	// ErrStopped is the result of Tasks submitted to or left in a stopping or stopped Worker.
	ErrStopped = errors.New("worker is stopped")

	// ErrDisconnectTimeout is returned by Finalize if the disconnect sequence did not finish in time.
	ErrDisconnectTimeout = errors.New("disconnect timed out")

	// ErrJoinTimeout is returned by Finalize if the Worker's goroutine did not exit in time.
	ErrJoinTimeout = errors.New("worker goroutine did not exit")
)

// Task is an unit of work, executed on the Worker's goroutine. The Context is canceled when the Worker stops or the
// configured TaskTimeout exceeds.
type Task func(ctx context.Context) (interface{}, error)

// Config of a Worker's timeouts.
type Config struct {
	// Name identifies the Worker in log messages.
	Name string

	// ConnectTimeout bounds the connect sequence within Start. A non-positive value is replaced by the default.
	ConnectTimeout time.Duration

	// DisconnectTimeout bounds the disconnect sequence within Finalize and, again, joining the goroutine. A
	// non-positive value is replaced by the default.
	DisconnectTimeout time.Duration

	// TaskTimeout bounds each submitted Task's Context; zero disables this.
	TaskTimeout time.Duration
}

// DefaultConfig returns a Config with generous timeouts.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    30 * time.Second,
		DisconnectTimeout: 5 * time.Second,
	}
}

type job struct {
	task   Task
	future *Future
}

// Worker owns a connection.Connection and executes all its operations on one dedicated goroutine.
type Worker struct {
	conn connection.Connection
	conf Config

	// mutex protects state and queue.
	mutex sync.Mutex
	state State
	queue []*job

	// notify signals new jobs to the handler; it holds at most one pending signal.
	notify chan struct{}

	ready   chan struct{}
	stopSyn chan struct{}
	stopAck chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	finalizeOnce sync.Once
	finalizeErr  error
}

// New creates a Worker for a Connection. The Worker must be started by Start.
func New(conn connection.Connection, conf Config) *Worker {
	defaults := DefaultConfig()
	if conf.ConnectTimeout <= 0 {
		conf.ConnectTimeout = defaults.ConnectTimeout
	}
	if conf.DisconnectTimeout <= 0 {
		conf.DisconnectTimeout = defaults.DisconnectTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		conn: conn,
		conf: conf,

		state: Created,

		notify: make(chan struct{}, 1),

		ready:   make(chan struct{}),
		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),

		ctx:    ctx,
		cancel: cancel,
	}
}

func (w *Worker) log() *log.Entry {
	return log.WithField("worker", w.conf.Name)
}

// State of this Worker.
func (w *Worker) State() State {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.state
}

func (w *Worker) setState(state State) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.state = state
}

// Done is closed after the Worker's goroutine exited.
func (w *Worker) Done() <-chan struct{} {
	return w.stopAck
}

// Start the Worker's goroutine, wait until it is running and perform the connect sequence on it.
//
// A failed connect stops the Worker again and is returned as a *connection.ConnectionError.
func (w *Worker) Start() error {
	w.mutex.Lock()
	if w.state != Created {
		state := w.state
		w.mutex.Unlock()
		return fmt.Errorf("worker cannot be started in state %v", state)
	}
	w.state = Connecting
	w.mutex.Unlock()

	go w.handler()
	<-w.ready

	w.log().Debug("Worker is running, starting connect sequence")

	connectFuture := w.Submit(func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, w.conf.ConnectTimeout)
		defer cancel()

		return nil, w.conn.Connect(ctx)
	})

	if err := connectFuture.Err(); err != nil {
		w.log().WithError(err).Warn("Connect sequence failed, stopping worker")
		w.stop()

		var connErr *connection.ConnectionError
		if !errors.As(err, &connErr) {
			err = &connection.ConnectionError{Err: err}
		}
		return err
	}

	w.setState(Running)
	w.log().Info("Worker connected")
	return nil
}

// Submit a Task to be executed on the Worker's goroutine. Submit never blocks and never executes the Task on the
// calling goroutine. It might be called from any goroutine, including Tasks themselves.
//
// After Finalize was called, the returned Future fails with ErrStopped.
func (w *Worker) Submit(task Task) *Future {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.state >= Disconnecting {
		return Failed(ErrStopped)
	}
	return w.push(task)
}

// push a new job; the mutex must be held.
func (w *Worker) push(task Task) *Future {
	j := &job{task: task, future: newFuture()}
	w.queue = append(w.queue, j)

	select {
	case w.notify <- struct{}{}:
	default:
	}

	return j.future
}

// pop the next job or nil; the mutex must not be held.
func (w *Worker) pop() *job {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if len(w.queue) == 0 {
		return nil
	}

	j := w.queue[0]
	w.queue[0] = nil
	w.queue = w.queue[1:]
	return j
}

// failPending jobs with ErrStopped.
func (w *Worker) failPending() {
	w.mutex.Lock()
	pending := w.queue
	w.queue = nil
	w.mutex.Unlock()

	if len(pending) > 0 {
		w.log().WithField("tasks", len(pending)).Debug("Worker drops pending tasks")
	}

	for _, j := range pending {
		j.future.complete(nil, ErrStopped)
	}
}

func (w *Worker) handler() {
	defer close(w.stopAck)
	defer w.failPending()

	close(w.ready)

	for {
		select {
		case <-w.stopSyn:
			w.log().Debug("Worker received closing signal")
			return

		case <-w.notify:
			for {
				select {
				case <-w.stopSyn:
					return
				default:
				}

				j := w.pop()
				if j == nil {
					break
				}
				w.run(j)
			}
		}
	}
}

// run a single job and complete its Future, even if the Task panics.
func (w *Worker) run(j *job) {
	ctx := w.ctx
	if w.conf.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.conf.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			w.log().WithField("panic", r).Warn("Task panicked")
			j.future.complete(nil, fmt.Errorf("task panicked: %v", r))
		}
	}()

	result, err := j.task(ctx)
	j.future.complete(result, err)
}

// stop the goroutine and wait for it, bounded by the DisconnectTimeout.
func (w *Worker) stop() (err error) {
	w.cancel()
	close(w.stopSyn)

	timer := time.NewTimer(w.conf.DisconnectTimeout)
	defer timer.Stop()

	select {
	case <-w.stopAck:
	case <-timer.C:
		w.log().Error("Worker goroutine did not exit in time")
		err = ErrJoinTimeout
	}

	w.setState(Stopped)
	return
}

// Finalize performs the disconnect sequence, stops the loop and joins the Worker's goroutine.
//
// Tasks submitted before Finalize are executed before the disconnect. The loop is stopped after the disconnect
// finished, failed, or timed out; a disconnect error does not prevent the shutdown, but is returned. Subsequent calls
// return the first call's result.
func (w *Worker) Finalize() error {
	w.finalizeOnce.Do(func() {
		w.finalizeErr = w.finalize()
	})
	return w.finalizeErr
}

func (w *Worker) finalize() error {
	w.mutex.Lock()
	switch w.state {
	case Created:
		w.state = Stopped
		w.mutex.Unlock()
		w.cancel()
		close(w.stopSyn)
		close(w.stopAck)
		w.failPending()
		return nil

	case Stopped:
		w.mutex.Unlock()
		return nil
	}

	w.state = Disconnecting
	disconnectFuture := w.push(func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, w.conf.DisconnectTimeout)
		defer cancel()

		return nil, w.conn.Disconnect(ctx)
	})
	w.mutex.Unlock()

	// The Task's own Context uses the same timeout; this one also covers the Tasks queued in front of it.
	timer := time.NewTimer(2 * w.conf.DisconnectTimeout)
	defer timer.Stop()

	var disconnectErr error
	select {
	case <-disconnectFuture.Done():
		disconnectErr = disconnectFuture.Err()
	case <-timer.C:
		disconnectErr = ErrDisconnectTimeout
	}

	if disconnectErr != nil {
		w.log().WithError(disconnectErr).Warn("Disconnect sequence failed, stopping worker anyway")
	} else {
		w.log().Debug("Disconnect sequence finished")
	}

	stopErr := w.stop()
	if disconnectErr == nil {
		disconnectErr = stopErr
	}

	w.log().Info("Worker stopped")
	return disconnectErr
}
