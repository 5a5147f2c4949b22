// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package worker runs all operations of a connection.Connection on one dedicated goroutine.
//
// Callers from arbitrary goroutines hand Tasks to the Worker by Submit and receive a Future to wait on. The Worker's
// loop executes the Tasks one after another in their submission order, so no two Tasks touch the Connection at the
// same time.
//
//	w := worker.New(conn, worker.DefaultConfig())
//	if err := w.Start(); err != nil {
//	  // *connection.ConnectionError
//	}
//
//	f := w.Submit(func(ctx context.Context) (interface{}, error) {
//	  return nil, conn.Send(ctx, env)
//	})
//	_, err := f.Wait()
//
//	_ = w.Finalize()
//
// Finalize is a barrier: the disconnect sequence runs to its end, or to its timeout, before the loop stops. Tasks left
// in the queue fail with ErrStopped.
package worker
