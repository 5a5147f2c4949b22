// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-agents/pkg/agent"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

// pinger manages to send ping messages and show their acknowledgment.
type pinger struct {
	receiver message.Address

	agent *agent.Agent
	inbox *agent.Base

	closeChan   chan os.Signal
	msgReadChan chan message.Message
}

// handleMessageRead forwards received messages to the main handle function.
func (p *pinger) handleMessageRead() {
	defer close(p.msgReadChan)

	for {
		if msg, err := p.inbox.Receive(context.Background()); err != nil {
			log.WithError(err).Debug("Reading message errored")
			return
		} else {
			p.msgReadChan <- msg
		}
	}
}

// handle a pinger's task.
func (p *pinger) handle() {
	ticker := time.NewTicker(time.Second)

	defer func() {
		if err := p.agent.Stop(); err != nil {
			log.WithError(err).Warn("Stopping agent errored")
		}
	}()
	defer ticker.Stop()

	sent := make(map[string]time.Time)

	for {
		select {
		case <-p.closeChan:
			return

		case <-ticker.C:
			thread := time.Now().Format(time.RFC3339Nano)
			if err := p.agent.Send(message.Message{To: p.receiver, Body: "ping", Thread: thread}).Err(); err != nil {
				log.WithError(err).Error("Cannot send ping message")
			} else {
				sent[thread] = time.Now()
				log.Info("Sent ping message")
			}

		case msg, ok := <-p.msgReadChan:
			if !ok {
				log.Error("Message reader channel was closed")
				return
			}

			logger := log.WithField("message", msg)
			if start, ok := sent[msg.Thread]; ok {
				logger = logger.WithField("rtt", time.Since(start))
				delete(sent, msg.Thread)
			}
			logger.Info("Received message")
		}
	}
}

// ping another agent
func ping(args []string) {
	if len(args) != 3 {
		printUsage()
	}

	receiver, err := message.ParseAddress(args[2])
	if err != nil {
		printFatal(err, "Parsing receiver errored")
	}

	p := pinger{
		receiver:    receiver,
		inbox:       &agent.Base{},
		closeChan:   make(chan os.Signal, 1),
		msgReadChan: make(chan message.Message),
	}

	if p.agent, err = startAgent(args[0], args[1]); err != nil {
		printFatal(err, "Starting agent errored")
	}
	if err = p.agent.AddBehaviour(p.inbox, message.FieldTemplate{Sender: receiver}); err != nil {
		printFatal(err, "Adding inbox errored")
	}

	signal.Notify(p.closeChan, os.Interrupt)

	go p.handleMessageRead()
	p.handle()
}
