// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Command agentd runs an agent, configured by a TOML file, until it is interrupted.
package main

import (
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
)

// waitSigint blocks the current thread until a SIGINT appears.
func waitSigint() {
	signalSyn := make(chan os.Signal, 1)
	signalAck := make(chan struct{})

	signal.Notify(signalSyn, os.Interrupt)

	go func() {
		<-signalSyn
		close(signalAck)
	}()

	<-signalAck
}

// pruneArchive deletes outdated archived messages periodically until the stop channel is closed.
func pruneArchive(d *daemon, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return

		case <-ticker.C:
			if n, err := d.store.DeleteOlderThan(time.Now().Add(-d.maxAge)); err != nil {
				log.WithError(err).Warn("Pruning archive errored")
			} else if n > 0 {
				log.WithField("deleted", n).Info("Pruned archive")
			}
		}
	}
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	d, err := parseDaemon(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to start agent")
	}

	pruneStop := make(chan struct{})
	if d.store != nil && d.maxAge > 0 {
		go pruneArchive(d, pruneStop)
	}

	waitSigint()
	log.Info("Shutting down..")

	close(pruneStop)
	if err := d.close(); err != nil {
		log.WithError(err).Warn("Shutting down errored")
	}
}
