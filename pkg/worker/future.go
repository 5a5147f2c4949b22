// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package worker

import (
	"context"
	"sync"
)

// Future is the pending result of a submitted Task.
type Future struct {
	done chan struct{}
	once sync.Once

	result interface{}
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Failed returns an already completed Future with an error.
func Failed(err error) *Future {
	f := newFuture()
	f.complete(nil, err)
	return f
}

// complete the Future. Only the first call takes effect.
func (f *Future) complete(result interface{}, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Done is closed after the Task finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the Task finished and returns its result.
func (f *Future) Wait() (interface{}, error) {
	<-f.done
	return f.result, f.err
}

// WaitContext is like Wait, but gives up when the Context is done. The Task itself is not affected by this.
func (f *Future) WaitContext(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err waits for the Task and returns only its error.
func (f *Future) Err() error {
	_, err := f.Wait()
	return err
}
