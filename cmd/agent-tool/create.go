// SPDX-FileCopyrightText: 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/dtn7/dtn7-agents/pkg/message"
	"github.com/dtn7/dtn7-agents/pkg/relay"
)

// createMessage for the "create" CLI option.
func createMessage(args []string) {
	if len(args) != 4 {
		printUsage()
	}

	var (
		sender    = args[0]
		receiver  = args[1]
		dataInput = args[2]
		outName   = args[3]

		err  error
		data []byte
		msg  message.Message
		f    *os.File
	)

	if dataInput == "-" {
		data, err = ioutil.ReadAll(os.Stdin)
	} else {
		data, err = ioutil.ReadFile(dataInput)
	}
	if err != nil {
		printFatal(err, "Reading input errored")
	}

	if msg.Sender, err = message.ParseAddress(sender); err != nil {
		printFatal(err, "Parsing sender errored")
	}
	if msg.To, err = message.ParseAddress(receiver); err != nil {
		printFatal(err, "Parsing receiver errored")
	}
	msg.Body = string(data)

	if f, err = os.Create(outName); err != nil {
		printFatal(err, "Creating file errored")
	}
	if err = msg.Prepare().MarshalCbor(f); err != nil {
		printFatal(err, "Writing message errored")
	}
	if err = f.Close(); err != nil {
		printFatal(err, "Closing file errored")
	}
}

// showMessage for the "show" CLI option.
func showMessage(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	f, err := os.Open(args[0])
	if err != nil {
		printFatal(err, "Opening file errored")
	}
	defer f.Close()

	env, err := message.ParseEnvelope(f)
	if err != nil {
		printFatal(err, "Parsing message errored")
	}

	fmt.Printf("ID:       %s\n", env.ID)
	fmt.Printf("Sender:   %s\n", env.Sender)
	fmt.Printf("To:       %s\n", env.To)
	if env.Thread != "" {
		fmt.Printf("Thread:   %s\n", env.Thread)
	}
	for k, v := range env.Metadata {
		fmt.Printf("Metadata: %s = %s\n", k, v)
	}
	fmt.Printf("\n%s\n", env.Body)
}

// hashPassword for the "hash" CLI option.
func hashPassword(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	hash, err := relay.HashPassword(args[0])
	if err != nil {
		printFatal(err, "Hashing password errored")
	}
	fmt.Println(hash)
}
