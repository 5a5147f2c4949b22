// SPDX-FileCopyrightText: 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Command agent-tool creates, inspects and exchanges messages with a relay.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-agents/pkg/agent"
	"github.com/dtn7/dtn7-agents/pkg/connection"
	"github.com/dtn7/dtn7-agents/pkg/message"
)

// passwordEnv names the environment variable for an agent's password.
const passwordEnv = "AGENT_PASSWORD"

// printUsage of agent-tool and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s create|show|hash|ping|exchange:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s create sender receiver -|filename message-name\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Creates a new message, addressed from sender to receiver, with the stdin (-) or\n")
	_, _ = fmt.Fprintf(os.Stderr, "  the given file (filename) as body. This message will be saved as message-name.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s show filename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints a human-readable version of the given message.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s hash password\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints a password hash for the agent-relay's account configuration.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s ping websocket sender receiver\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends a ping message every second and prints the answers.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s exchange websocket identity directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  %s registers itself as an agent on the given websocket and writes\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  incoming messages in the directory. If the user drops a new message in the\n")
	_, _ = fmt.Fprintf(os.Stderr, "  directory, it will be sent to the relay.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "The agent's password is read from the %s environment variable.\n", passwordEnv)

	os.Exit(1)
}

// printFatal of an error with a short context description and exits afterwards.
func printFatal(err error, msg string) {
	_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

// startAgent connects an Agent to a relay's websocket.
func startAgent(websocket, identity string) (*agent.Agent, error) {
	addr, err := message.ParseAddress(identity)
	if err != nil {
		return nil, err
	}

	creds := connection.Credentials{
		Identity: addr,
		Password: os.Getenv(passwordEnv),
	}
	return agent.New(creds, connection.WebSocketFactory(websocket), agent.DefaultConfig())
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	switch os.Args[1] {
	case "create":
		createMessage(os.Args[2:])

	case "show":
		showMessage(os.Args[2:])

	case "hash":
		hashPassword(os.Args[2:])

	case "ping":
		ping(os.Args[2:])

	case "exchange":
		startExchange(os.Args[2:])

	default:
		printUsage()
	}
}
