// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Command agent-relay serves the message network for agents connecting via WebSockets.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-agents/pkg/discovery"
	"github.com/dtn7/dtn7-agents/pkg/relay"
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

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	conf, accounts, announcement, err := parseConfig(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to parse config")
	}

	if err := conf.Logging.Apply(); err != nil {
		log.WithError(err).Fatal("Failed to configure logging")
	}

	r := relay.NewRelay(accounts)
	server := &http.Server{
		Addr:              conf.Relay.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"listen":   conf.Relay.Listen,
			"accounts": accounts.Len(),
		}).Info("Starting relay")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Relay's HTTP server errored")
		}
	}()

	var manager *discovery.Manager
	if conf.Discovery.IPv4 || conf.Discovery.IPv6 {
		manager, err = discovery.NewManager(
			[]discovery.Announcement{announcement}, conf.Discovery.announcementInterval(),
			conf.Discovery.IPv4, conf.Discovery.IPv6, nil)
		if err != nil {
			log.WithError(err).Fatal("Failed to start discovery")
		}
	}

	waitSigint()
	log.Info("Shutting down..")

	if manager != nil {
		manager.Close()
	}

	r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Shutting down HTTP server errored")
	}
}
