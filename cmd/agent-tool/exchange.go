// SPDX-FileCopyrightText: 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/dtn7/dtn7-agents/pkg/agent"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

// sendAttempts limits how often a new file is read before giving up; files might still be written to.
const sendAttempts = 5

// mailDir mirrors an Agent's traffic in a directory: each inbound Message becomes a file, each new file is sent.
type mailDir struct {
	dir   string
	agent *agent.Agent
	inbox *agent.Base

	// written holds the names of files created by the mailDir itself.
	written sync.Map
}

// startExchange for the "exchange" CLI option.
func startExchange(args []string) {
	if len(args) != 3 {
		printUsage()
	}

	a, err := startAgent(args[0], args[1])
	if err != nil {
		printFatal(err, "Starting agent errored")
	}

	md := &mailDir{dir: args[2], agent: a, inbox: &agent.Base{}}
	if err := a.AddBehaviour(md.inbox, nil); err != nil {
		printFatal(err, "Adding inbox errored")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		printFatal(err, "Starting file watcher errored")
	}
	if err := watcher.Add(md.dir); err != nil {
		printFatal(err, "Adding directory to file watcher errored")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go md.storeInbound(ctx)

	if err := md.watch(ctx, watcher); err != nil {
		log.WithError(err).Error("Watching directory errored")
	}

	_ = watcher.Close()
	if err := a.Stop(); err != nil {
		log.WithError(err).Warn("Stopping agent errored")
	}
}

// watch sends every file created in the directory until the Context is cancelled.
func (md *mailDir) watch(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			log.Info("Received interrupt signal")
			return nil

		case e, ok := <-watcher.Events:
			if !ok {
				return errors.New("event channel was closed")
			}
			if e.Op&fsnotify.Create == 0 {
				continue
			}
			if _, own := md.written.LoadAndDelete(filepath.Base(e.Name)); own {
				continue
			}

			go md.sendFile(e.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("error channel was closed")
			}
			return err
		}
	}
}

// sendFile parses a message file and sends it, retrying with an exponential backoff while the file is unreadable.
func (md *mailDir) sendFile(name string) {
	logger := log.WithField("file", name)

	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		env, err := readEnvelope(name)
		if err == nil {
			if err := md.agent.Send(env.Message).Err(); err != nil {
				logger.WithError(err).Error("Sending message errored")
			} else {
				logger.Info("Sent message")
			}
			return
		}

		logger.WithError(err).WithField("attempt", attempt).Debug("Reading message file failed")
		time.Sleep(backoff)
		backoff *= 2
	}

	logger.Error("Failed to read message file, giving up")
}

// readEnvelope from a CBOR file.
func readEnvelope(name string) (*message.Envelope, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	env, parseErr := message.ParseEnvelope(f)
	if closeErr := f.Close(); parseErr == nil {
		parseErr = closeErr
	}
	return env, parseErr
}

// storeInbound writes each Message from the inbox to its own file until the inbox is killed or ctx is cancelled.
func (md *mailDir) storeInbound(ctx context.Context) {
	for {
		msg, err := md.inbox.Receive(ctx)
		if err != nil {
			log.WithError(err).Debug("Inbox closed")
			return
		}

		env := msg.Prepare()
		if err := md.store(env); err != nil {
			log.WithError(err).WithField("envelope", env.ID).Error("Storing received message errored")
		} else {
			log.WithField("envelope", env.ID).Info("Stored received message")
		}
	}
}

// store an Envelope as a file named after its ID.
func (md *mailDir) store(env *message.Envelope) error {
	data, err := env.Bytes()
	if err != nil {
		return err
	}

	// Mark the file before creating it; the watcher must not send it back.
	md.written.Store(env.ID, struct{}{})

	if err := os.WriteFile(filepath.Join(md.dir, env.ID), data, 0644); err != nil {
		md.written.Delete(env.ID)
		return fmt.Errorf("writing %s: %w", env.ID, err)
	}
	return nil
}
