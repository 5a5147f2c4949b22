// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/dtn7-agents/pkg/discovery"
	"github.com/dtn7/dtn7-agents/internal/logging"
	"github.com/dtn7/dtn7-agents/pkg/message"
	"github.com/dtn7/dtn7-agents/pkg/relay"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Relay     relayConf
	Logging   logging.Conf
	Discovery discoveryConf
	Account   []accountConf
}

// relayConf describes the Relay-configuration block.
type relayConf struct {
	Name   string
	Listen string
}

// discoveryConf describes the Discovery-configuration block.
type discoveryConf struct {
	IPv4     bool
	IPv6     bool
	Interval uint
}

// accountConf describes an account; the hash is created by "agent-tool hash".
type accountConf struct {
	Identity string
	Hash     string
}

// parseListenPort of an address, e.g., ":8080".
func parseListenPort(endpoint string) (port int, err error) {
	var portStr string
	_, portStr, err = net.SplitHostPort(endpoint)
	if err != nil {
		return
	}
	port, err = strconv.Atoi(portStr)
	return
}

// parseConfig reads the TOML configuration and creates the Accounts and the Announcement.
func parseConfig(filename string) (conf tomlConfig, accounts *relay.Accounts, announcement discovery.Announcement, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	var errs error

	if conf.Relay.Listen == "" {
		conf.Relay.Listen = ":8080"
	}

	if port, portErr := parseListenPort(conf.Relay.Listen); portErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("relay.listen: %w", portErr))
	} else {
		announcement = discovery.Announcement{
			Name: conf.Relay.Name,
			Port: uint(port),
			Path: "/ws",
		}
	}

	accounts = relay.NewAccounts()
	for i, acc := range conf.Account {
		if identity, idErr := message.ParseAddress(acc.Identity); idErr != nil {
			errs = multierror.Append(errs, fmt.Errorf("account %d: %w", i, idErr))
		} else if hashErr := accounts.AddHash(identity, acc.Hash); hashErr != nil {
			errs = multierror.Append(errs, fmt.Errorf("account %d (%s): %w", i, identity, hashErr))
		}
	}

	if conf.Discovery.Interval == 0 {
		conf.Discovery.Interval = 10
	}

	err = errs
	return
}

// announcementInterval of the discovery block.
func (conf discoveryConf) announcementInterval() time.Duration {
	return time.Duration(conf.Interval) * time.Second
}
